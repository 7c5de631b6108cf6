package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	dime "github.com/darkmail/dime-go"
)

// randReader is the entropy source for the package. It is a variable so tests
// can substitute a failing or deterministic reader.
var randReader io.Reader = rand.Reader

// RandBytes fills a new n-byte buffer from the CSPRNG. A short or failed read
// is returned as an error; the caller never receives partially random data.
func RandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return nil, fmt.Errorf("%w: random source: %v", dime.ErrCryptoFailure, err)
	}
	return buf, nil
}

// RandRead fills buf from the CSPRNG.
func RandRead(buf []byte) error {
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return fmt.Errorf("%w: random source: %v", dime.ErrCryptoFailure, err)
	}
	return nil
}
