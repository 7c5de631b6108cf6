package signet

import (
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/keys"
)

// keyFileType maps a signet type to the key file type of its holder. SSRs
// belong to users.
func keyFileType(t Type) (keys.Type, error) {
	switch t {
	case TypeOrg:
		return keys.TypeOrg, nil
	case TypeUser, TypeSSR:
		return keys.TypeUser, nil
	}
	return 0, fmt.Errorf("%w: invalid signet type %d", dime.ErrBadParam, int(t))
}

// NewWithKeys creates a signet of the given type together with a freshly
// generated key file written to keysPath. The signet carries the public
// halves; the key file holds the private halves as a matched pair.
func NewWithKeys(t Type, keysPath string) (*Signet, error) {
	kt, err := keyFileType(t)
	if err != nil {
		return nil, err
	}

	pair, err := keys.Generate(kt)
	if err != nil {
		return nil, err
	}
	defer pair.Destroy()

	s, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := s.SetSigningKey(pair.Signing, KeyFormatDefault); err != nil {
		return nil, err
	}
	if err := s.SetEncryptionKey(pair.Encryption, KeyFormatDefault); err != nil {
		return nil, err
	}
	if err := pair.FileCreate(keysPath); err != nil {
		return nil, err
	}
	return s, nil
}
