package signet

import (
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
)

// signKeyFid returns the field id of the main signing key for the type.
func (s *Signet) signKeyFid() byte {
	if s.typ == TypeOrg {
		return FidOrgPOK
	}
	return FidUserSignKey
}

// encKeyFid returns the field id of the encryption key for the type.
func (s *Signet) encKeyFid() byte {
	if s.typ == TypeOrg {
		return FidOrgEncKey
	}
	return FidUserEncKey
}

// SetSigningKey sets the main signing key: the POK for org signets, the user
// signing key otherwise. Only the public half is stored.
func (s *Signet) SetSigningKey(key *crypto.SigningKey, format byte) error {
	if key == nil {
		return fmt.Errorf("%w: nil signing key", dime.ErrBadParam)
	}
	data := append([]byte{format}, key.Public()...)
	return s.FieldDefinedSet(s.signKeyFid(), data)
}

// SigningKey returns the signet's main signing key (public half only).
func (s *Signet) SigningKey() (*crypto.SigningKey, error) {
	data, err := s.FidNumFetch(s.signKeyFid(), 1)
	if err != nil {
		return nil, err
	}
	if len(data) != signKeyFieldSize {
		return nil, fmt.Errorf("%w: malformed signing key field", dime.ErrSchemaViolation)
	}
	return crypto.SigningKeyFromPublic(data[1:])
}

// SetEncryptionKey sets the secp256k1 encryption key. Only the public point
// is stored.
func (s *Signet) SetEncryptionKey(key *crypto.EncryptionKey, format byte) error {
	if key == nil {
		return fmt.Errorf("%w: nil encryption key", dime.ErrBadParam)
	}
	data := append([]byte{format}, key.Public()...)
	return s.FieldDefinedSet(s.encKeyFid(), data)
}

// EncryptionKey returns the signet's encryption key (public point only).
func (s *Signet) EncryptionKey() (*crypto.EncryptionKey, error) {
	data, err := s.FidNumFetch(s.encKeyFid(), 1)
	if err != nil {
		return nil, err
	}
	if len(data) != encKeyFieldSize {
		return nil, fmt.Errorf("%w: malformed encryption key field", dime.ErrSchemaViolation)
	}
	return crypto.EncryptionKeyFromPublic(data[1:])
}

// SOKCreate appends a secondary organizational key with the given permission
// mask. Org signets only.
func (s *Signet) SOKCreate(key *crypto.SigningKey, format byte, perm byte) error {
	if s.typ != TypeOrg {
		return fmt.Errorf("%w: SOKs belong to org signets", dime.ErrSchemaViolation)
	}
	if key == nil {
		return fmt.Errorf("%w: nil SOK", dime.ErrBadParam)
	}
	data := make([]byte, 0, sokFieldSize)
	data = append(data, perm, format)
	data = append(data, key.Public()...)
	return s.FieldDefinedCreate(FidOrgSOK, data)
}

// SOKNumFetch returns the num-th (1-based) secondary organizational key.
func (s *Signet) SOKNumFetch(num int) (*crypto.SigningKey, error) {
	data, err := s.FidNumFetch(FidOrgSOK, num)
	if err != nil {
		return nil, err
	}
	if len(data) != sokFieldSize {
		return nil, fmt.Errorf("%w: malformed SOK field", dime.ErrSchemaViolation)
	}
	return crypto.SigningKeyFromPublic(data[2:])
}

// SignkeysByPermission returns every organizational signing key whose
// permission mask is a superset of perm. The POK is always element 0.
func (s *Signet) SignkeysByPermission(perm byte) ([]*crypto.SigningKey, error) {
	if s.typ != TypeOrg {
		return nil, fmt.Errorf("%w: permissioned key sets belong to org signets", dime.ErrSchemaViolation)
	}
	pok, err := s.SigningKey()
	if err != nil {
		return nil, err
	}
	result := []*crypto.SigningKey{pok}

	refs, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if r.fid != FidOrgSOK {
			continue
		}
		if r.dataLen != sokFieldSize {
			return nil, fmt.Errorf("%w: malformed SOK field", dime.ErrSchemaViolation)
		}
		data := s.data[r.dataOff : r.dataOff+r.dataLen]
		if data[0]&perm != perm {
			continue
		}
		key, err := crypto.SigningKeyFromPublic(data[2:])
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	return result, nil
}

// SignetKeys returns the keys permitted to sign signets: the POK plus every
// SOK carrying PermSignet.
func (s *Signet) SignetKeys() ([]*crypto.SigningKey, error) {
	return s.SignkeysByPermission(PermSignet)
}

// MessageKeys returns the keys permitted to sign messages.
func (s *Signet) MessageKeys() ([]*crypto.SigningKey, error) {
	return s.SignkeysByPermission(PermMsg)
}

// TLSKeys returns the keys permitted for TLS use.
func (s *Signet) TLSKeys() ([]*crypto.SigningKey, error) {
	return s.SignkeysByPermission(PermTLS)
}

// SoftwareKeys returns the keys permitted to sign software.
func (s *Signet) SoftwareKeys() ([]*crypto.SigningKey, error) {
	return s.SignkeysByPermission(PermSoftware)
}

// idFid returns the identifier field id for the type, or 0 for SSRs.
func (s *Signet) idFid() byte {
	switch s.typ {
	case TypeOrg:
		return FidOrgID
	case TypeUser:
		return FidUserID
	}
	return 0
}

// SetID sets the identity string: a domain name for org signets, an email
// address for user signets.
func (s *Signet) SetID(id string) error {
	fid := s.idFid()
	if fid == 0 {
		return fmt.Errorf("%w: SSRs carry no identifier", dime.ErrSchemaViolation)
	}
	if id == "" {
		return fmt.Errorf("%w: empty identifier", dime.ErrBadParam)
	}
	return s.FieldDefinedSet(fid, []byte(id))
}

// ID returns the identity string, or an error when the field is absent.
func (s *Signet) ID() (string, error) {
	fid := s.idFid()
	if fid == 0 {
		return "", fmt.Errorf("%w: SSRs carry no identifier", dime.ErrSchemaViolation)
	}
	data, err := s.FidNumFetch(fid, 1)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
