package signet

import (
	"errors"
	"path/filepath"
	"testing"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
	"github.com/darkmail/dime-go/keys"
)

// signOrgChain takes an org signet through crypto, full, and id signatures.
func signOrgChain(t *testing.T, s *Signet, key *crypto.SigningKey, id string) {
	t.Helper()
	if err := s.SignCrypto(key); err != nil {
		t.Fatalf("SignCrypto() error = %v", err)
	}
	if err := s.SignFull(key); err != nil {
		t.Fatalf("SignFull() error = %v", err)
	}
	if err := s.SetID(id); err != nil {
		t.Fatalf("SetID() error = %v", err)
	}
	if err := s.SignID(key); err != nil {
		t.Fatalf("SignID() error = %v", err)
	}
}

func TestValidateAll_IdentityLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Org keys and signet for darkmail.info.
	orgSignet, err := NewWithKeys(TypeOrg, filepath.Join(dir, "org.keys"))
	if err != nil {
		t.Fatalf("NewWithKeys() error = %v", err)
	}
	orgKey, err := keys.FetchSigningKey(filepath.Join(dir, "org.keys"))
	if err != nil {
		t.Fatalf("FetchSigningKey() error = %v", err)
	}
	signOrgChain(t, orgSignet, orgKey, "darkmail.info")

	pok, _ := orgSignet.SigningKey()
	state, err := ValidateAll(orgSignet, nil, nil, [][]byte{pok.Public()})
	if err != nil {
		t.Fatalf("ValidateAll(org) error = %v", err)
	}
	if state != StateID {
		t.Fatalf("org signet state = %s, want id", state)
	}

	// User SSR for ivan@darkmail.info, counter-signed by the org.
	user, err := NewWithKeys(TypeSSR, filepath.Join(dir, "user.keys"))
	if err != nil {
		t.Fatalf("NewWithKeys() error = %v", err)
	}
	userKey, err := keys.FetchSigningKey(filepath.Join(dir, "user.keys"))
	if err != nil {
		t.Fatalf("FetchSigningKey() error = %v", err)
	}
	if err := user.SignSSR(userKey); err != nil {
		t.Fatalf("SignSSR() error = %v", err)
	}

	state, err = ValidateAll(user, nil, nil, nil)
	if err != nil {
		t.Fatalf("ValidateAll(ssr) error = %v", err)
	}
	if state != StateSSR {
		t.Fatalf("ssr state = %s, want ssr", state)
	}

	if err := user.SignCrypto(orgKey); err != nil {
		t.Fatalf("SignCrypto() error = %v", err)
	}
	if err := user.SignFull(orgKey); err != nil {
		t.Fatalf("SignFull() error = %v", err)
	}
	if err := user.SetID("ivan@darkmail.info"); err != nil {
		t.Fatalf("SetID() error = %v", err)
	}
	if err := user.SignID(orgKey); err != nil {
		t.Fatalf("SignID() error = %v", err)
	}

	state, err = ValidateAll(user, nil, orgSignet, nil)
	if err != nil {
		t.Fatalf("ValidateAll(user) error = %v", err)
	}
	if state != StateID {
		t.Fatalf("user signet state = %s, want id", state)
	}
}

func TestValidateAll_POKNotTrusted(t *testing.T) {
	t.Parallel()
	s, key := newOrgWithKeys(t)
	signOrgChain(t, s, key, "darkmail.info")

	stranger, _ := crypto.GenerateSigningKey()
	state, err := ValidateAll(s, nil, nil, [][]byte{stranger.Public()})
	if !errors.Is(err, dime.ErrPOKNotTrusted) {
		t.Fatalf("ValidateAll() error = %v, want ErrPOKNotTrusted", err)
	}
	if state != StateInvalid {
		t.Errorf("state = %s, want invalid", state)
	}
}

func TestValidateAll_WrongOrgKey(t *testing.T) {
	t.Parallel()
	orgSignet, _ := newOrgWithKeys(t)
	impostor, _ := crypto.GenerateSigningKey()
	if err := orgSignet.SignCrypto(impostor); err != nil {
		t.Fatalf("SignCrypto() error = %v", err)
	}

	pok, _ := orgSignet.SigningKey()
	state, err := ValidateAll(orgSignet, nil, nil, [][]byte{pok.Public()})
	if !errors.Is(err, dime.ErrSignatureInvalid) {
		t.Fatalf("ValidateAll() error = %v, want ErrSignatureInvalid", err)
	}
	if state != StateInvalid {
		t.Errorf("state = %s, want invalid", state)
	}
}

func TestValidateAll_ChainOfCustody(t *testing.T) {
	t.Parallel()
	prev, prevKey := newSSRWithKeys(t)
	if err := prev.SignSSR(prevKey); err != nil {
		t.Fatalf("SignSSR() error = %v", err)
	}

	// Rotation: a new SSR chained to the previous signing key.
	next, nextKey := newSSRWithKeys(t)
	if err := next.SignCoC(prevKey); err != nil {
		t.Fatalf("SignCoC() error = %v", err)
	}
	if err := next.SignSSR(nextKey); err != nil {
		t.Fatalf("SignSSR() error = %v", err)
	}

	state, err := ValidateAll(next, prev, nil, nil)
	if err != nil {
		t.Fatalf("ValidateAll() error = %v", err)
	}
	if state != StateSSR {
		t.Fatalf("state = %s, want ssr", state)
	}

	// A chain-of-custody signature from an unrelated key must break.
	bad, badKey := newSSRWithKeys(t)
	unrelated, _ := crypto.GenerateSigningKey()
	if err := bad.SignCoC(unrelated); err != nil {
		t.Fatalf("SignCoC() error = %v", err)
	}
	if err := bad.SignSSR(badKey); err != nil {
		t.Fatalf("SignSSR() error = %v", err)
	}

	state, err = ValidateAll(bad, prev, nil, nil)
	if !errors.Is(err, dime.ErrBrokenChainOfCustody) {
		t.Fatalf("ValidateAll() error = %v, want ErrBrokenChainOfCustody", err)
	}
	if state != StateBrokenCoC {
		t.Errorf("state = %s, want broken chain of custody", state)
	}
}

func TestVerifyMessageSig(t *testing.T) {
	t.Parallel()
	s, key := newOrgWithKeys(t)
	msgKey, _ := crypto.GenerateSigningKey()
	if err := s.SOKCreate(msgKey, KeyFormatDefault, PermMsg); err != nil {
		t.Fatalf("SOKCreate() error = %v", err)
	}

	data := []byte("origin full signature input")
	sig, _ := msgKey.Sign(data)
	if err := s.VerifyMessageSig(sig, data); err != nil {
		t.Errorf("VerifyMessageSig() with SOK error = %v", err)
	}

	pokSig, _ := key.Sign(data)
	if err := s.VerifyMessageSig(pokSig, data); err != nil {
		t.Errorf("VerifyMessageSig() with POK error = %v", err)
	}

	tlsKey, _ := crypto.GenerateSigningKey()
	if err := s.SOKCreate(tlsKey, KeyFormatDefault, PermTLS); err != nil {
		t.Fatalf("SOKCreate() error = %v", err)
	}
	tlsSig, _ := tlsKey.Sign(data)
	if err := s.VerifyMessageSig(tlsSig, data); !errors.Is(err, dime.ErrSignatureInvalid) {
		t.Errorf("TLS-only SOK verified a message signature: %v", err)
	}
}
