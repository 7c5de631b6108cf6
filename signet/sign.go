package signet

import (
	"crypto/sha512"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/armor"
	"github.com/darkmail/dime-go/internal/crypto"
)

// requiredUpTo verifies that every required field with an id strictly below
// fid is present.
func (s *Signet) requiredUpTo(fid byte) error {
	keys := fieldKeysFor(s.typ)
	for i := 0; i < int(fid); i++ {
		key := keys[i]
		if key == nil || !key.required {
			continue
		}
		if !s.FidExists(byte(i)) {
			return fmt.Errorf("%w: %s", dime.ErrMissingField, key.name)
		}
	}
	return nil
}

// signField signs every field below fid and installs the signature as the
// fid's sole instance.
func (s *Signet) signField(fid byte, key *crypto.SigningKey) error {
	if key == nil || !key.CanSign() {
		return fmt.Errorf("%w: signing requires a private key", dime.ErrBadParam)
	}
	if err := s.requiredUpTo(fid); err != nil {
		return err
	}
	input, err := s.dataBeforeFid(fid)
	if err != nil {
		return err
	}
	sig, err := key.Sign(input)
	if err != nil {
		return err
	}
	if err := s.removeAll(fid); err != nil {
		return err
	}
	return s.FieldDefinedCreate(fid, sig)
}

// SignSSR applies the user's self-signature to an SSR.
func (s *Signet) SignSSR(key *crypto.SigningKey) error {
	if s.typ != TypeSSR {
		return fmt.Errorf("%w: SSR signatures belong to SSRs", dime.ErrInvalidState)
	}
	return s.signField(FidUserSSRSig, key)
}

// SignCoC applies a chain-of-custody signature to an SSR under the holder's
// previous signing key. It must precede SignSSR, whose input covers it.
func (s *Signet) SignCoC(prev *crypto.SigningKey) error {
	if s.typ != TypeSSR {
		return fmt.Errorf("%w: chain-of-custody signatures belong to SSRs", dime.ErrInvalidState)
	}
	return s.signField(FidUserCoCSig, prev)
}

// SignCrypto applies the cryptographic signet signature. On an SSR the
// operation atomically upgrades the type to USER; the prior type is restored
// if signing fails.
func (s *Signet) SignCrypto(key *crypto.SigningKey) error {
	switch s.typ {
	case TypeOrg:
		return s.signField(FidOrgCryptoSig, key)
	case TypeUser:
		return s.signField(FidUserCryptoSig, key)
	case TypeSSR:
		s.typ = TypeUser
		if err := s.signField(FidUserCryptoSig, key); err != nil {
			s.typ = TypeSSR
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: invalid signet type", dime.ErrUnsupportedType)
}

// SignFull applies the full signet signature.
func (s *Signet) SignFull(key *crypto.SigningKey) error {
	switch s.typ {
	case TypeOrg:
		return s.signField(FidOrgFullSig, key)
	case TypeUser:
		return s.signField(FidUserFullSig, key)
	}
	return fmt.Errorf("%w: full signatures belong to org and user signets", dime.ErrInvalidState)
}

// SignID applies the identifiable signature. The identifier field must have
// been set first.
func (s *Signet) SignID(key *crypto.SigningKey) error {
	var fid byte
	switch s.typ {
	case TypeOrg:
		fid = FidOrgIDSig
	case TypeUser:
		fid = FidUserIDSig
	default:
		return fmt.Errorf("%w: identifiable signatures belong to org and user signets", dime.ErrInvalidState)
	}
	if !s.FidExists(s.idFid()) {
		return fmt.Errorf("%w: identifier", dime.ErrMissingField)
	}
	return s.signField(fid, key)
}

// fingerprintThrough hashes the serialized signet truncated at the end of
// the given signature field and returns the unpadded base64 digest.
func (s *Signet) fingerprintThrough(fid byte) (string, error) {
	body, err := s.dataThroughFid(fid)
	if err != nil {
		return "", err
	}
	num, _ := s.typ.Number()
	serial := make([]byte, 0, headerSize+len(body))
	serial = append(serial, byte(uint16(num)>>8), byte(uint16(num)))
	serial = append(serial, byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	serial = append(serial, body...)

	digest := sha512.Sum512(serial)
	return armor.EncodeB64Raw(digest[:]), nil
}

// FingerprintSSR fingerprints the signet through its SSR signature.
func (s *Signet) FingerprintSSR() (string, error) {
	if s.typ == TypeOrg {
		return "", fmt.Errorf("%w: org signets carry no SSR signature", dime.ErrSchemaViolation)
	}
	return s.fingerprintThrough(FidUserSSRSig)
}

// FingerprintCrypto fingerprints the signet through its cryptographic
// signature.
func (s *Signet) FingerprintCrypto() (string, error) {
	switch s.typ {
	case TypeOrg:
		return s.fingerprintThrough(FidOrgCryptoSig)
	case TypeUser:
		return s.fingerprintThrough(FidUserCryptoSig)
	}
	return "", fmt.Errorf("%w: SSRs carry no cryptographic signature", dime.ErrSchemaViolation)
}

// FingerprintFull fingerprints the signet through its full signature.
func (s *Signet) FingerprintFull() (string, error) {
	switch s.typ {
	case TypeOrg:
		return s.fingerprintThrough(FidOrgFullSig)
	case TypeUser:
		return s.fingerprintThrough(FidUserFullSig)
	}
	return "", fmt.Errorf("%w: SSRs carry no full signature", dime.ErrSchemaViolation)
}

// FingerprintID fingerprints the signet through its identifiable signature.
func (s *Signet) FingerprintID() (string, error) {
	switch s.typ {
	case TypeOrg:
		return s.fingerprintThrough(FidOrgIDSig)
	case TypeUser:
		return s.fingerprintThrough(FidUserIDSig)
	}
	return "", fmt.Errorf("%w: SSRs carry no identifiable signature", dime.ErrSchemaViolation)
}

// splitThrough copies the signet truncated after the last occurrence of fid.
func (s *Signet) splitThrough(fid byte) (*Signet, error) {
	body, err := s.dataThroughFid(fid)
	if err != nil {
		return nil, err
	}
	cp := &Signet{typ: s.typ}
	cp.data = append([]byte(nil), body...)
	if err := cp.reindex(); err != nil {
		return nil, err
	}
	return cp, nil
}

// CryptoSplit returns a copy truncated after the cryptographic signature,
// stripping every informational and identity field above it.
func (s *Signet) CryptoSplit() (*Signet, error) {
	switch s.typ {
	case TypeOrg:
		return s.splitThrough(FidOrgCryptoSig)
	case TypeUser:
		return s.splitThrough(FidUserCryptoSig)
	}
	return nil, fmt.Errorf("%w: SSRs carry no cryptographic signature", dime.ErrSchemaViolation)
}

// FullSplit returns a copy truncated after the full signature, stripping the
// identifier and identifiable signature.
func (s *Signet) FullSplit() (*Signet, error) {
	switch s.typ {
	case TypeOrg:
		return s.splitThrough(FidOrgFullSig)
	case TypeUser:
		return s.splitThrough(FidUserFullSig)
	}
	return nil, fmt.Errorf("%w: SSRs carry no full signature", dime.ErrSchemaViolation)
}

// VerifyMessageSig verifies a message signature produced by the signet's
// holder. User signets verify under the signing key; org signets succeed if
// any message-permitted key verifies.
func (s *Signet) VerifyMessageSig(sig, data []byte) error {
	switch s.typ {
	case TypeUser, TypeSSR:
		key, err := s.SigningKey()
		if err != nil {
			return err
		}
		if !key.Verify(data, sig) {
			return fmt.Errorf("%w: message signature", dime.ErrSignatureInvalid)
		}
		return nil
	case TypeOrg:
		keyset, err := s.MessageKeys()
		if err != nil {
			return err
		}
		for _, key := range keyset {
			if key.Verify(data, sig) {
				return nil
			}
		}
		return fmt.Errorf("%w: message signature", dime.ErrSignatureInvalid)
	}
	return fmt.Errorf("%w: invalid signet type", dime.ErrUnsupportedType)
}
