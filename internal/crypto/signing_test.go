package crypto

import (
	"bytes"
	"testing"
)

func TestSigningKey_SignVerify(t *testing.T) {
	t.Parallel()
	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey() error = %v", err)
	}

	msg := []byte("the quick brown fox")
	sig, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("signature size = %d, want %d", len(sig), SignatureSize)
	}

	if !key.Verify(msg, sig) {
		t.Error("signature did not verify under its own key")
	}

	sig[0] ^= 0x01
	if key.Verify(msg, sig) {
		t.Error("corrupted signature verified")
	}
}

func TestSigningKey_SeedRoundTrip(t *testing.T) {
	t.Parallel()
	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey() error = %v", err)
	}

	restored, err := SigningKeyFromSeed(key.Seed())
	if err != nil {
		t.Fatalf("SigningKeyFromSeed() error = %v", err)
	}
	if !bytes.Equal(restored.Public(), key.Public()) {
		t.Error("seed round trip produced a different public key")
	}

	msg := []byte("payload")
	sig, err := restored.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !key.Verify(msg, sig) {
		t.Error("signature from restored key did not verify under original")
	}
}

func TestSigningKey_PublicOnly(t *testing.T) {
	t.Parallel()
	key, _ := GenerateSigningKey()
	pub, err := SigningKeyFromPublic(key.Public())
	if err != nil {
		t.Fatalf("SigningKeyFromPublic() error = %v", err)
	}
	if pub.CanSign() {
		t.Error("public-only key reports CanSign")
	}
	if _, err := pub.Sign([]byte("x")); err == nil {
		t.Error("public-only key signed")
	}

	msg := []byte("verify me")
	sig, _ := key.Sign(msg)
	if !pub.Verify(msg, sig) {
		t.Error("public-only key failed to verify a valid signature")
	}
}

func TestEncryptionKey_ScalarRoundTrip(t *testing.T) {
	t.Parallel()
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("GenerateEncryptionKey() error = %v", err)
	}
	restored, err := EncryptionKeyFromScalar(key.Scalar())
	if err != nil {
		t.Fatalf("EncryptionKeyFromScalar() error = %v", err)
	}
	if !bytes.Equal(restored.Public(), key.Public()) {
		t.Error("scalar round trip produced a different public point")
	}
	if len(key.Public()) != EncryptionPubSize {
		t.Errorf("compressed point size = %d, want %d", len(key.Public()), EncryptionPubSize)
	}
}

func TestWipe(t *testing.T) {
	t.Parallel()
	buf := []byte{1, 2, 3, 4, 5}
	Wipe(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d] = %d after Wipe", i, b)
		}
	}
}
