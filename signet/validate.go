package signet

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
)

// State is the structural/cryptographic classification of a signet. The
// values form a linear lattice; a signet at a given level satisfies every
// requirement of the levels below it.
type State int

const (
	// StateUnknown means the signet could not be classified.
	StateUnknown State = iota
	// StateMalformed means the field format is broken or a unique field
	// repeats.
	StateMalformed
	// StateOverflow means the signet exceeds the maximum serialized size.
	StateOverflow
	// StateIncomplete means required fields for every valid category are
	// missing; the signet is likely unsigned.
	StateIncomplete
	// StateBrokenCoC means the chain-of-custody signature does not verify.
	StateBrokenCoC
	// StateInvalid means one or more signatures do not verify.
	StateInvalid
	// StateSSR is a valid self-signed signing request.
	StateSSR
	// StateCrypto is a valid cryptographic signet.
	StateCrypto
	// StateFull is a valid full signet.
	StateFull
	// StateID is a valid full signet with identifier and identifiable
	// signature.
	StateID
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateMalformed:
		return "malformed"
	case StateOverflow:
		return "overflow"
	case StateIncomplete:
		return "incomplete"
	case StateBrokenCoC:
		return "broken chain of custody"
	case StateInvalid:
		return "invalid"
	case StateSSR:
		return "valid ssr"
	case StateCrypto:
		return "valid cryptographic signet"
	case StateFull:
		return "valid full signet"
	case StateID:
		return "valid identifiable signet"
	}
	return "unknown"
}

// ValidateStructure classifies the signet by shape alone: field order,
// uniqueness, and the presence of the required fields below each terminal
// signature. No signatures are verified.
func (s *Signet) ValidateStructure() State {
	if len(s.data) > maxBodySize {
		return StateOverflow
	}
	if _, err := s.scan(); err != nil {
		return StateMalformed
	}

	switch s.typ {
	case TypeSSR:
		if s.requiredUpTo(FidUserSSRSig+1) != nil || !s.FidExists(FidUserSSRSig) {
			return StateIncomplete
		}
		return StateSSR

	case TypeOrg:
		if s.requiredUpTo(FidOrgCryptoSig+1) != nil || !s.FidExists(FidOrgCryptoSig) {
			return StateIncomplete
		}
		if s.FidExists(FidOrgFullSig) {
			if s.FidExists(FidOrgID) && s.FidExists(FidOrgIDSig) {
				return StateID
			}
			return StateFull
		}
		return StateCrypto

	case TypeUser:
		if s.requiredUpTo(FidUserCryptoSig+1) != nil || !s.FidExists(FidUserCryptoSig) {
			return StateIncomplete
		}
		if s.FidExists(FidUserFullSig) {
			if s.FidExists(FidUserID) && s.FidExists(FidUserIDSig) {
				return StateID
			}
			return StateFull
		}
		return StateCrypto
	}
	return StateUnknown
}

// verifySigField checks the signature stored at fid over every field below
// it, under any of the supplied keys.
func (s *Signet) verifySigField(fid byte, keyset []*crypto.SigningKey) error {
	sig, err := s.FidNumFetch(fid, 1)
	if err != nil {
		return err
	}
	input, err := s.dataBeforeFid(fid)
	if err != nil {
		return err
	}
	for _, key := range keyset {
		if key.Verify(input, sig) {
			return nil
		}
	}
	keys := fieldKeysFor(s.typ)
	return fmt.Errorf("%w: %s", dime.ErrSignatureInvalid, keys[fid].name)
}

// ladder walks the crypto -> full -> id signature chain under keyset and
// returns the highest state reached. A present-but-unverifiable signature
// yields StateInvalid.
func (s *Signet) ladder(cryptoFid, fullFid, idFid, idSigFid byte, keyset []*crypto.SigningKey) (State, error) {
	if err := s.verifySigField(cryptoFid, keyset); err != nil {
		return StateInvalid, err
	}
	if !s.FidExists(fullFid) {
		return StateCrypto, nil
	}
	if err := s.verifySigField(fullFid, keyset); err != nil {
		return StateInvalid, err
	}
	if !s.FidExists(idSigFid) || !s.FidExists(idFid) {
		return StateFull, nil
	}
	if err := s.verifySigField(idSigFid, keyset); err != nil {
		return StateInvalid, err
	}
	return StateID, nil
}

// ValidateAll performs full cryptographic validation and returns the highest
// lattice level the signet reaches.
//
//   - SSR: the self-signature is checked; when previous is supplied and a
//     chain-of-custody signature is present, it is verified under the
//     previous signet's signing key.
//   - Org signet: the POK must be one of dimePOKs (each a 32-byte Ed25519
//     public key from the caller's DIME management record); the signature
//     chain is then verified under it.
//   - User signet: the chain is verified against the organization's
//     signet-permitted key set; chain-of-custody against previous when both
//     are present.
func ValidateAll(s *Signet, previous, orgSignet *Signet, dimePOKs [][]byte) (State, error) {
	if s == nil {
		return StateUnknown, fmt.Errorf("%w: nil signet", dime.ErrBadParam)
	}
	structural := s.ValidateStructure()
	if structural < StateSSR {
		return structural, nil
	}

	switch s.typ {
	case TypeSSR:
		own, err := s.SigningKey()
		if err != nil {
			return StateUnknown, err
		}
		if err := s.verifySigField(FidUserSSRSig, []*crypto.SigningKey{own}); err != nil {
			return StateInvalid, err
		}
		if previous != nil && s.FidExists(FidUserCoCSig) {
			prevKey, err := previous.SigningKey()
			if err != nil {
				return StateUnknown, err
			}
			if err := s.verifySigField(FidUserCoCSig, []*crypto.SigningKey{prevKey}); err != nil {
				return StateBrokenCoC, fmt.Errorf("%w: %v", dime.ErrBrokenChainOfCustody, err)
			}
		}
		return StateSSR, nil

	case TypeOrg:
		if len(dimePOKs) == 0 {
			return StateUnknown, fmt.Errorf("%w: no trusted POKs supplied", dime.ErrBadParam)
		}
		pok, err := s.SigningKey()
		if err != nil {
			return StateUnknown, err
		}
		trusted := false
		for _, candidate := range dimePOKs {
			if bytes.Equal(candidate, pok.Public()) {
				trusted = true
				break
			}
		}
		if !trusted {
			return StateInvalid, fmt.Errorf("%w", dime.ErrPOKNotTrusted)
		}
		return s.ladder(FidOrgCryptoSig, FidOrgFullSig, FidOrgID, FidOrgIDSig,
			[]*crypto.SigningKey{pok})

	case TypeUser:
		if orgSignet == nil {
			return StateUnknown, fmt.Errorf("%w: user validation requires the org signet", dime.ErrBadParam)
		}
		keyset, err := orgSignet.SignetKeys()
		if err != nil {
			return StateUnknown, err
		}
		state, err := s.ladder(FidUserCryptoSig, FidUserFullSig, FidUserID, FidUserIDSig, keyset)
		if err != nil || state < StateCrypto {
			return state, err
		}
		if previous != nil && s.FidExists(FidUserCoCSig) {
			prevKey, err := previous.SigningKey()
			if err != nil {
				return StateUnknown, err
			}
			if err := s.verifySigField(FidUserCoCSig, []*crypto.SigningKey{prevKey}); err != nil {
				return StateBrokenCoC, fmt.Errorf("%w: %v", dime.ErrBrokenChainOfCustody, err)
			}
		}
		return state, nil
	}
	return StateUnknown, fmt.Errorf("%w: invalid signet type", dime.ErrUnsupportedType)
}
