package crypto

import "runtime"

// Wipe zeroizes b. The write loop is followed by a runtime.KeepAlive so the
// compiler cannot elide the stores as dead.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
