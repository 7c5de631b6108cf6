package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	dime "github.com/darkmail/dime-go"
)

const (
	// SigningKeySize is the size of an Ed25519 public key or private seed.
	SigningKeySize = 32
	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = 64
)

// SigningKey holds an Ed25519 keypair. The private half may be nil for keys
// recovered from a signet, which carries only the public point.
type SigningKey struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// GenerateSigningKey generates a new Ed25519 keypair.
func GenerateSigningKey() (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(randReader)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 keygen: %v", dime.ErrCryptoFailure, err)
	}
	return &SigningKey{priv: priv, pub: pub}, nil
}

// SigningKeyFromSeed reconstructs a keypair from a 32-byte private seed.
func SigningKeyFromSeed(seed []byte) (*SigningKey, error) {
	if len(seed) != SigningKeySize {
		return nil, fmt.Errorf("%w: signing key seed must be %d bytes, got %d",
			dime.ErrBadParam, SigningKeySize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &SigningKey{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// SigningKeyFromPublic wraps a bare 32-byte public key. The result can verify
// but not sign.
func SigningKeyFromPublic(pub []byte) (*SigningKey, error) {
	if len(pub) != SigningKeySize {
		return nil, fmt.Errorf("%w: signing public key must be %d bytes, got %d",
			dime.ErrBadParam, SigningKeySize, len(pub))
	}
	cp := make(ed25519.PublicKey, SigningKeySize)
	copy(cp, pub)
	return &SigningKey{pub: cp}, nil
}

// Public returns the 32-byte public key.
func (k *SigningKey) Public() []byte {
	return k.pub
}

// Seed returns the 32-byte private seed, or nil for a public-only key.
func (k *SigningKey) Seed() []byte {
	if k.priv == nil {
		return nil
	}
	return k.priv.Seed()
}

// CanSign reports whether the private half is present.
func (k *SigningKey) CanSign() bool {
	return k.priv != nil
}

// Sign produces a 64-byte Ed25519 signature over msg.
func (k *SigningKey) Sign(msg []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("%w: signing key holds no private half", dime.ErrBadParam)
	}
	return ed25519.Sign(k.priv, msg), nil
}

// Verify checks sig over msg under the public key.
func (k *SigningKey) Verify(msg, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(k.pub, msg, sig)
}

// Destroy wipes the private key material. The key must not be used after.
func (k *SigningKey) Destroy() {
	if k == nil {
		return
	}
	if k.priv != nil {
		Wipe(k.priv)
		k.priv = nil
	}
}
