package crypto

import (
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// EncryptionKeySize is the size of a serialized secp256k1 private scalar.
	EncryptionKeySize = 32
	// EncryptionPubSize is the size of a compressed secp256k1 public point.
	EncryptionPubSize = 33
)

// EncryptionKey holds a secp256k1 keypair used for KEK agreement. The private
// half may be nil for keys recovered from a signet or an ephemeral chunk.
type EncryptionKey struct {
	priv *secp256k1.PrivateKey
	pub  *secp256k1.PublicKey
}

// GenerateEncryptionKey generates a new secp256k1 keypair.
func GenerateEncryptionKey() (*EncryptionKey, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(randReader)
	if err != nil {
		return nil, fmt.Errorf("%w: secp256k1 keygen: %v", dime.ErrCryptoFailure, err)
	}
	return &EncryptionKey{priv: priv, pub: priv.PubKey()}, nil
}

// EncryptionKeyFromScalar reconstructs a keypair from a 32-byte private scalar.
func EncryptionKeyFromScalar(scalar []byte) (*EncryptionKey, error) {
	if len(scalar) != EncryptionKeySize {
		return nil, fmt.Errorf("%w: encryption key scalar must be %d bytes, got %d",
			dime.ErrBadParam, EncryptionKeySize, len(scalar))
	}
	priv := secp256k1.PrivKeyFromBytes(scalar)
	return &EncryptionKey{priv: priv, pub: priv.PubKey()}, nil
}

// EncryptionKeyFromPublic parses a 33-byte compressed public point. The
// result can derive outbound KEKs but holds no private half.
func EncryptionKeyFromPublic(compressed []byte) (*EncryptionKey, error) {
	if len(compressed) != EncryptionPubSize {
		return nil, fmt.Errorf("%w: compressed point must be %d bytes, got %d",
			dime.ErrBadParam, EncryptionPubSize, len(compressed))
	}
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: parse secp256k1 point: %v", dime.ErrCryptoFailure, err)
	}
	return &EncryptionKey{pub: pub}, nil
}

// Public returns the 33-byte compressed public point.
func (k *EncryptionKey) Public() []byte {
	return k.pub.SerializeCompressed()
}

// Scalar returns the 32-byte private scalar, or nil for a public-only key.
func (k *EncryptionKey) Scalar() []byte {
	if k.priv == nil {
		return nil
	}
	return k.priv.Serialize()
}

// HasPrivate reports whether the private half is present.
func (k *EncryptionKey) HasPrivate() bool {
	return k.priv != nil
}

// Destroy wipes the private key material. The key must not be used after.
func (k *EncryptionKey) Destroy() {
	if k == nil {
		return
	}
	if k.priv != nil {
		k.priv.Zero()
		k.priv = nil
	}
}
