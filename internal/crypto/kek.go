package crypto

import (
	"crypto/sha512"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KEK is a key-encryption key: the AES key and IV pair an actor uses to seal
// and unseal keyslots. Both sides of an ECDH exchange derive identical KEKs.
type KEK struct {
	IV  [16]byte
	Key [32]byte
}

// DeriveKEK runs the envelope KDF: ECDH between priv and pub, SHA-512 over
// the raw shared X coordinate, then a fold of the first 32 digest bytes into
// the IV with the remainder as the AES key.
func DeriveKEK(priv, pub *EncryptionKey) (*KEK, error) {
	if priv == nil || pub == nil {
		return nil, fmt.Errorf("%w: nil encryption key", dime.ErrBadParam)
	}
	if priv.priv == nil {
		return nil, fmt.Errorf("%w: KEK derivation requires a private key", dime.ErrBadParam)
	}

	shared := secp256k1.GenerateSharedSecret(priv.priv, pub.pub)
	digest := sha512.Sum512(shared)
	Wipe(shared)

	kek := &KEK{}
	for i := 0; i < 16; i++ {
		kek.IV[i] = digest[i] ^ digest[i+16]
	}
	copy(kek.Key[:], digest[32:])
	Wipe(digest[:])

	return kek, nil
}

// Destroy wipes the KEK material.
func (k *KEK) Destroy() {
	if k == nil {
		return
	}
	Wipe(k.IV[:])
	Wipe(k.Key[:])
}
