// Package keys implements the DIME private key file: a PEM-armored record
// holding a party's Ed25519 signing key and secp256k1 encryption key, tagged
// with the user or organizational DIME magic number.
//
// The decoded body layout is:
//
//	[2 bytes DIME magic] [3 bytes inner length]
//	[field id 1] [1-byte length = 32] [raw Ed25519 private seed]
//	[field id 2] [2-byte length]      [DER-encoded EC private key]
//
// The armor carries a trailing CRC-24 checksum line computed over the
// decoded body, as all DIME PEM objects do.
package keys

import (
	"fmt"
	"os"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/armor"
	"github.com/darkmail/dime-go/internal/crypto"
)

// Type discriminates user and organizational key files.
type Type int

const (
	// TypeOrg marks an organization's key file.
	TypeOrg Type = iota + 1
	// TypeUser marks a user's key file.
	TypeUser
)

// Number returns the DIME magic number for the key file type.
func (t Type) Number() (dime.Number, bool) {
	switch t {
	case TypeOrg:
		return dime.NumberOrgKeys, true
	case TypeUser:
		return dime.NumberUserKeys, true
	}
	return 0, false
}

// Body field ids.
const (
	fidSigningKey    byte = 1
	fidEncryptionKey byte = 2
)

const headerSize = 5

// Pair is an in-memory private key pair. Destroy it when done; both halves
// carry secret material.
type Pair struct {
	typ        Type
	Signing    *crypto.SigningKey
	Encryption *crypto.EncryptionKey
}

// Generate creates a fresh signing and encryption keypair of the given type.
func Generate(t Type) (*Pair, error) {
	if _, ok := t.Number(); !ok {
		return nil, fmt.Errorf("%w: invalid key file type %d", dime.ErrBadParam, int(t))
	}
	signing, err := crypto.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	encryption, err := crypto.GenerateEncryptionKey()
	if err != nil {
		signing.Destroy()
		return nil, err
	}
	return &Pair{typ: t, Signing: signing, Encryption: encryption}, nil
}

// Type returns the key file type.
func (p *Pair) Type() Type {
	return p.typ
}

// Destroy wipes the private key material held by the pair.
func (p *Pair) Destroy() {
	if p == nil {
		return
	}
	p.Signing.Destroy()
	p.Encryption.Destroy()
}

// Serialize produces the decoded (pre-armor) body.
func (p *Pair) Serialize() ([]byte, error) {
	num, ok := p.typ.Number()
	if !ok {
		return nil, fmt.Errorf("%w: invalid key file type", dime.ErrUnsupportedType)
	}
	if p.Signing == nil || !p.Signing.CanSign() || p.Encryption == nil || !p.Encryption.HasPrivate() {
		return nil, fmt.Errorf("%w: key file requires both private keys", dime.ErrBadParam)
	}

	der, err := marshalECPrivateKey(p.Encryption)
	if err != nil {
		return nil, err
	}

	seed := p.Signing.Seed()
	inner := make([]byte, 0, 2+len(seed)+3+len(der))
	inner = append(inner, fidSigningKey, byte(len(seed)))
	inner = append(inner, seed...)
	inner = append(inner, fidEncryptionKey, byte(len(der)>>8), byte(len(der)))
	inner = append(inner, der...)

	body := make([]byte, 0, headerSize+len(inner))
	body = append(body, byte(uint16(num)>>8), byte(uint16(num)))
	body = append(body, byte(len(inner)>>16), byte(len(inner)>>8), byte(len(inner)))
	body = append(body, inner...)
	return body, nil
}

// Deserialize parses a decoded key file body.
func Deserialize(body []byte) (*Pair, error) {
	if len(body) < headerSize {
		return nil, fmt.Errorf("%w: input shorter than the key file header", dime.ErrBadParam)
	}

	var typ Type
	switch dime.Number(uint16(body[0])<<8 | uint16(body[1])) {
	case dime.NumberOrgKeys:
		typ = TypeOrg
	case dime.NumberUserKeys:
		typ = TypeUser
	default:
		return nil, fmt.Errorf("%w: input is not a key file", dime.ErrUnsupportedType)
	}

	innerLen := int(body[2])<<16 | int(body[3])<<8 | int(body[4])
	if len(body)-headerSize != innerLen {
		return nil, fmt.Errorf("%w: header declares %d body bytes, input carries %d",
			dime.ErrSizeViolation, innerLen, len(body)-headerSize)
	}

	pair := &Pair{typ: typ}
	at := headerSize
	for at < len(body) {
		fid := body[at]
		at++
		switch fid {
		case fidSigningKey:
			if at >= len(body) {
				return nil, fmt.Errorf("%w: truncated signing key field", dime.ErrSchemaViolation)
			}
			n := int(body[at])
			at++
			if at+n > len(body) {
				return nil, fmt.Errorf("%w: truncated signing key field", dime.ErrSchemaViolation)
			}
			signing, err := crypto.SigningKeyFromSeed(body[at : at+n])
			if err != nil {
				return nil, err
			}
			pair.Signing = signing
			at += n
		case fidEncryptionKey:
			if at+2 > len(body) {
				return nil, fmt.Errorf("%w: truncated encryption key field", dime.ErrSchemaViolation)
			}
			n := int(body[at])<<8 | int(body[at+1])
			at += 2
			if at+n > len(body) {
				return nil, fmt.Errorf("%w: truncated encryption key field", dime.ErrSchemaViolation)
			}
			encryption, err := parseECPrivateKey(body[at : at+n])
			if err != nil {
				return nil, err
			}
			pair.Encryption = encryption
			at += n
		default:
			return nil, fmt.Errorf("%w: unknown key file field id %d", dime.ErrSchemaViolation, fid)
		}
	}

	if pair.Signing == nil || pair.Encryption == nil {
		return nil, fmt.Errorf("%w: key file is missing a private key field", dime.ErrMissingField)
	}
	return pair, nil
}

// armorLabel returns the PEM label for the key file type.
func (t Type) armorLabel() string {
	num, _ := t.Number()
	return num.String()
}

// Armor returns the PEM-armored form of the key file.
func (p *Pair) Armor() (string, error) {
	body, err := p.Serialize()
	if err != nil {
		return "", err
	}
	defer crypto.Wipe(body)
	return armor.Encode(p.typ.armorLabel(), body)
}

// FileCreate writes the armored key file to path with owner-only access.
func (p *Pair) FileCreate(path string) error {
	armored, err := p.Armor()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(armored), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Load reads and parses an armored key file, accepting either label.
func Load(path string) (*Pair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	armored := string(raw)

	for _, t := range []Type{TypeUser, TypeOrg} {
		body, err := armor.Decode(t.armorLabel(), armored)
		if err != nil {
			continue
		}
		defer crypto.Wipe(body)
		pair, err := Deserialize(body)
		if err != nil {
			return nil, err
		}
		if pair.typ != t {
			return nil, fmt.Errorf("%w: armor label does not match key file magic", dime.ErrEncoding)
		}
		return pair, nil
	}
	return nil, fmt.Errorf("%w: input carries no key file armor", dime.ErrEncoding)
}

// FetchSigningKey loads only the private signing key from a key file.
func FetchSigningKey(path string) (*crypto.SigningKey, error) {
	pair, err := Load(path)
	if err != nil {
		return nil, err
	}
	signing := pair.Signing
	pair.Encryption.Destroy()
	return signing, nil
}

// FetchEncryptionKey loads only the private encryption key from a key file.
func FetchEncryptionKey(path string) (*crypto.EncryptionKey, error) {
	pair, err := Load(path)
	if err != nil {
		return nil, err
	}
	encryption := pair.Encryption
	pair.Signing.Destroy()
	return encryption, nil
}
