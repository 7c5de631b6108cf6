package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	dime "github.com/darkmail/dime-go"
)

const (
	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESBlockSize is the AES block size in bytes.
	AESBlockSize = 16
)

func newCBC(key, iv []byte) (cipher.Block, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: AES key must be %d bytes, got %d",
			dime.ErrBadParam, AESKeySize, len(key))
	}
	if len(iv) != AESBlockSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes, got %d",
			dime.ErrBadParam, AESBlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dime.ErrCryptoFailure, err)
	}
	return block, nil
}

// EncryptCBC encrypts pt with AES-256-CBC and no padding. The input length
// must be a nonzero multiple of the block size; the DIME chunk layer pads
// before encrypting.
func EncryptCBC(key, iv, pt []byte) ([]byte, error) {
	if len(pt) == 0 || len(pt)%AESBlockSize != 0 {
		return nil, fmt.Errorf("%w: plaintext length %d is not a nonzero multiple of %d",
			dime.ErrBadParam, len(pt), AESBlockSize)
	}
	block, err := newCBC(key, iv)
	if err != nil {
		return nil, err
	}
	ct := make([]byte, len(pt))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, pt)
	return ct, nil
}

// DecryptCBC decrypts ct with AES-256-CBC and no padding.
func DecryptCBC(key, iv, ct []byte) ([]byte, error) {
	if len(ct) == 0 || len(ct)%AESBlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a nonzero multiple of %d",
			dime.ErrBadParam, len(ct), AESBlockSize)
	}
	block, err := newCBC(key, iv)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return pt, nil
}
