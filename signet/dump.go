package signet

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/darkmail/dime-go/internal/armor"
)

// Dump writes a human-readable field listing to w. Debug aid only; the
// output format is not stable.
func (s *Signet) Dump(w io.Writer) error {
	refs, err := s.scan()
	if err != nil {
		return err
	}
	keys := fieldKeysFor(s.typ)

	fmt.Fprintf(w, "%s signet, %d fields, %d body bytes\n", s.typ, len(refs), len(s.data))
	for _, r := range refs {
		key := keys[r.fid]
		data := s.data[r.dataOff : r.dataOff+r.dataLen]
		label := key.name
		if key.hasName {
			label = fmt.Sprintf("%s (%s)", key.name, s.data[r.nameOff:r.nameOff+r.nameLen])
		}
		if key.kind == kindUTF8 && utf8.Valid(data) {
			fmt.Fprintf(w, "  [%3d] %s: %s\n", r.fid, label, data)
		} else {
			fmt.Fprintf(w, "  [%3d] %s: %s\n", r.fid, label, armor.EncodeB64(data))
		}
	}
	return nil
}
