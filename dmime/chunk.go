package dmime

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
)

// Chunk flag bits.
const (
	// FlagAlternatePadding selects the alternate padding algorithm for a
	// standard payload.
	FlagAlternatePadding byte = 1 << 0
)

const (
	// standardHeaderSize is the fixed prefix of a standard payload:
	// 64-byte signature, 3-byte data size, flags byte, pad byte.
	standardHeaderSize = 64 + 3 + 1 + 1

	// minimumPayloadSize is the floor a primary-padded payload is grown to.
	minimumPayloadSize = 256

	// keyslotSize is the wire size of one sealed keyslot.
	keyslotSize = 16 + 16 + 32

	// maxPayloadSize is the largest payload the 3-byte size prefix allows.
	maxPayloadSize = 0xFFFFFF

	// ephemeralPayloadSize is a compressed secp256k1 public point.
	ephemeralPayloadSize = crypto.EncryptionPubSize

	// signaturePayloadSize is a bare Ed25519 signature.
	signaturePayloadSize = crypto.SignatureSize
)

// chunkState tracks a chunk through the encode/sign/encrypt lifecycle.
type chunkState int

const (
	chunkStateNone chunkState = iota
	chunkStateUnknown
	chunkStateCreation
	chunkStateEncoded
	chunkStateSigned
	chunkStateEncrypted
)

// Chunk is one DMIME message chunk: a typed payload plus its sealed
// keyslots.
type Chunk struct {
	state    chunkState
	typ      ChunkType
	payload  []byte
	keyslots [][]byte // one 64-byte slot per table-present actor
}

// Type returns the chunk's type byte.
func (c *Chunk) Type() ChunkType {
	return c.typ
}

// serialSize is the on-wire size: type, 3-byte payload size, payload,
// keyslots.
func (c *Chunk) serialSize() int {
	return 4 + len(c.payload) + keyslotSize*len(c.keyslots)
}

// serialize appends the chunk's wire form to buf.
func (c *Chunk) serialize(buf *bytes.Buffer) {
	buf.WriteByte(byte(c.typ))
	buf.WriteByte(byte(len(c.payload) >> 16))
	buf.WriteByte(byte(len(c.payload) >> 8))
	buf.WriteByte(byte(len(c.payload)))
	buf.Write(c.payload)
	for _, slot := range c.keyslots {
		buf.Write(slot)
	}
}

// serialBytes returns the chunk's wire form.
func (c *Chunk) serialBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(c.serialSize())
	c.serialize(&buf)
	return buf.Bytes()
}

// chunkPadding draws one random byte and derives the padding length and pad
// byte for a payload of tsize bytes (the standard header included) under the
// flag-selected algorithm.
func chunkPadding(tsize int, flags byte) (padlen int, padbyte byte, err error) {
	r, err := crypto.RandBytes(1)
	if err != nil {
		return 0, 0, err
	}
	rnd := int(r[0])

	if flags&FlagAlternatePadding != 0 {
		padlen = 16*rnd + 16 - tsize%16
		return padlen, byte(rnd), nil
	}
	if tsize < minimumPayloadSize {
		padlen = minimumPayloadSize - tsize + 16*(rnd%(tsize/16+1))
	} else {
		padlen = 16 - tsize%16 + 16*(rnd%16)
	}
	return padlen, byte(padlen), nil
}

// verifyPadding checks a decrypted standard payload's pad region against the
// declared pad byte and the flag-selected algorithm.
func verifyPadding(tsize, padlen int, flags, padbyte byte, pad []byte) error {
	if flags&FlagAlternatePadding != 0 {
		if padlen != 16*int(padbyte)+16-tsize%16 {
			return fmt.Errorf("%w: alternate padding length %d disagrees with pad byte %d",
				dime.ErrBadPadding, padlen, padbyte)
		}
	} else if byte(padlen) != padbyte {
		return fmt.Errorf("%w: primary padding length %d disagrees with pad byte %d",
			dime.ErrBadPadding, padlen, padbyte)
	}
	for i, b := range pad {
		if b != padbyte {
			return fmt.Errorf("%w: pad byte %d at offset %d", dime.ErrBadPadding, b, i)
		}
	}
	return nil
}

// newChunk encodes data into a fresh chunk of the given type. Standard
// payloads are padded and left with a zeroed signature slot; signature and
// ephemeral payloads must arrive at their exact fixed size.
func newChunk(typ ChunkType, data []byte, flags byte) (*Chunk, error) {
	key := typeKey(typ)
	if key == nil {
		return nil, fmt.Errorf("%w: chunk type %d", dime.ErrUnsupportedType, typ)
	}
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("%w: chunk data of %d bytes", dime.ErrSizeViolation, len(data))
	}

	c := &Chunk{state: chunkStateCreation, typ: typ}

	switch key.payload {
	case PayloadEphemeral:
		if len(data) != ephemeralPayloadSize {
			return nil, fmt.Errorf("%w: ephemeral payload must be %d bytes, got %d",
				dime.ErrSizeViolation, ephemeralPayloadSize, len(data))
		}
		c.payload = append([]byte(nil), data...)

	case PayloadSignature:
		if len(data) != signaturePayloadSize {
			return nil, fmt.Errorf("%w: signature payload must be %d bytes, got %d",
				dime.ErrSizeViolation, signaturePayloadSize, len(data))
		}
		c.payload = append([]byte(nil), data...)

	case PayloadStandard:
		tsize := standardHeaderSize + len(data)
		padlen, padbyte, err := chunkPadding(tsize, flags)
		if err != nil {
			return nil, err
		}
		if tsize+padlen > maxPayloadSize {
			return nil, fmt.Errorf("%w: padded chunk of %d bytes", dime.ErrSizeViolation, tsize+padlen)
		}
		payload := make([]byte, tsize+padlen)
		payload[64] = byte(len(data) >> 16)
		payload[65] = byte(len(data) >> 8)
		payload[66] = byte(len(data))
		payload[67] = flags
		payload[68] = padbyte
		copy(payload[standardHeaderSize:], data)
		for i := standardHeaderSize + len(data); i < len(payload); i++ {
			payload[i] = padbyte
		}
		c.payload = payload
	}

	c.state = chunkStateEncoded
	return c, nil
}

// signChunk signs the padded payload past the signature slot and writes the
// signature into the reserved 64 bytes. Standard payloads only.
func (c *Chunk) signChunk(key *crypto.SigningKey) error {
	k := typeKey(c.typ)
	if k == nil || k.payload != PayloadStandard {
		return fmt.Errorf("%w: only standard payloads carry inner signatures", dime.ErrBadParam)
	}
	if c.state != chunkStateEncoded {
		return fmt.Errorf("%w: chunk must be encoded before signing", dime.ErrInvalidState)
	}
	sig, err := key.Sign(c.payload[64:])
	if err != nil {
		return err
	}
	copy(c.payload[:64], sig)
	c.state = chunkStateSigned
	return nil
}

// sealKeyslot seals a plaintext keyslot in place: the IV region is mixed
// with the random region, then the whole 64 bytes are encrypted under the
// KEK. The mixing makes the sealed slot untraceable even against known
// plaintext in the chunk body.
func sealKeyslot(slot []byte, kek *crypto.KEK) error {
	for i := 0; i < 16; i++ {
		slot[16+i] ^= slot[i]
	}
	sealed, err := crypto.EncryptCBC(kek.Key[:], kek.IV[:], slot)
	if err != nil {
		return err
	}
	copy(slot, sealed)
	crypto.Wipe(sealed)
	return nil
}

// unsealKeyslot reverses sealKeyslot, returning the slot's IV and AES key.
// The caller must wipe both.
func unsealKeyslot(slot []byte, kek *crypto.KEK) (iv, key []byte, err error) {
	plain, err := crypto.DecryptCBC(kek.Key[:], kek.IV[:], slot)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, 16)
	for i := 0; i < 16; i++ {
		iv[i] = plain[i] ^ plain[16+i]
	}
	key = append([]byte(nil), plain[32:]...)
	crypto.Wipe(plain)
	return iv, key, nil
}

// encryptChunk generates a fresh chunk key and IV, encrypts the payload, and
// seals one keyslot per table-present actor under the supplied KEK set.
func (c *Chunk) encryptChunk(keks *[4]*crypto.KEK) error {
	key := typeKey(c.typ)
	if key == nil || !key.encrypted {
		return fmt.Errorf("%w: chunk type %d does not get encrypted", dime.ErrBadParam, c.typ)
	}
	switch key.payload {
	case PayloadSignature:
		if c.state != chunkStateEncoded {
			return fmt.Errorf("%w: signature chunk must be encoded before encryption", dime.ErrInvalidState)
		}
	case PayloadStandard:
		if c.state != chunkStateSigned {
			return fmt.Errorf("%w: standard chunk must be signed before encryption", dime.ErrInvalidState)
		}
	}
	if len(c.payload) == 0 || len(c.payload)%16 != 0 {
		return fmt.Errorf("%w: encrypted payload must be a nonzero multiple of 16 bytes", dime.ErrSizeViolation)
	}

	iv, err := crypto.RandBytes(16)
	if err != nil {
		return err
	}
	aesKey, err := crypto.RandBytes(crypto.AESKeySize)
	if err != nil {
		return err
	}
	defer crypto.Wipe(aesKey)
	defer crypto.Wipe(iv)

	ct, err := crypto.EncryptCBC(aesKey, iv, c.payload)
	if err != nil {
		return err
	}
	crypto.Wipe(c.payload)
	c.payload = ct

	c.keyslots = nil
	for actor := dime.ActorAuthor; actor <= dime.ActorRecipient; actor++ {
		if !key.slots[actor] {
			continue
		}
		kek := keks[actor]
		if kek == nil {
			return fmt.Errorf("%w: missing KEK for %s keyslot", dime.ErrBadParam, actor)
		}
		random, err := crypto.RandBytes(16)
		if err != nil {
			return err
		}
		slot := make([]byte, 0, keyslotSize)
		slot = append(slot, random...)
		slot = append(slot, iv...)
		slot = append(slot, aesKey...)
		crypto.Wipe(random)
		if err := sealKeyslot(slot, kek); err != nil {
			return err
		}
		c.keyslots = append(c.keyslots, slot)
	}

	c.state = chunkStateEncrypted
	return nil
}

// decryptPayload unseals the actor's keyslot and decrypts the chunk payload.
// The chunk itself is left untouched.
func (c *Chunk) decryptPayload(actor dime.Actor, kek *crypto.KEK) ([]byte, error) {
	key := typeKey(c.typ)
	if key == nil || !key.encrypted {
		return nil, fmt.Errorf("%w: chunk type %d is not encrypted", dime.ErrBadParam, c.typ)
	}
	if c.state != chunkStateEncrypted {
		return nil, fmt.Errorf("%w: chunk is not in encrypted state", dime.ErrInvalidState)
	}
	idx, ok := key.slotIndex(actor)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds no keyslot on %s chunks", dime.ErrRoleDenied, actor, key.name)
	}
	if idx >= len(c.keyslots) {
		return nil, fmt.Errorf("%w: chunk carries %d keyslots, slot %d required",
			dime.ErrMissingChunk, len(c.keyslots), idx+1)
	}
	if len(c.payload)%16 != 0 || len(c.payload) == 0 {
		return nil, fmt.Errorf("%w: encrypted payload must be a nonzero multiple of 16 bytes", dime.ErrSizeViolation)
	}

	iv, aesKey, err := unsealKeyslot(c.keyslots[idx], kek)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(iv)
	defer crypto.Wipe(aesKey)

	return crypto.DecryptCBC(aesKey, iv, c.payload)
}

// standardPayload is the decoded form of a decrypted standard payload.
type standardPayload struct {
	signature []byte
	flags     byte
	data      []byte
}

// parseStandardPayload splits a decrypted standard payload and verifies its
// declared sizes and padding.
func parseStandardPayload(payload []byte) (*standardPayload, error) {
	if len(payload) < standardHeaderSize {
		return nil, fmt.Errorf("%w: standard payload of %d bytes", dime.ErrSizeViolation, len(payload))
	}
	dataSize := int(payload[64])<<16 | int(payload[65])<<8 | int(payload[66])
	flags := payload[67]
	padbyte := payload[68]

	tsize := standardHeaderSize + dataSize
	if tsize > len(payload) {
		return nil, fmt.Errorf("%w: declared data size %d overruns payload", dime.ErrSizeViolation, dataSize)
	}
	padlen := len(payload) - tsize
	if err := verifyPadding(tsize, padlen, flags, padbyte, payload[tsize:]); err != nil {
		return nil, err
	}

	return &standardPayload{
		signature: payload[:64],
		flags:     flags,
		data:      payload[standardHeaderSize : standardHeaderSize+dataSize],
	}, nil
}

// sigVerifier is the slice of the signet API chunk decryption needs: inner
// chunk signatures verify the same way message signatures do.
type sigVerifier interface {
	VerifyMessageSig(sig, data []byte) error
}

// decryptStandard decrypts a standard chunk, checks its padding, and
// verifies the inner signature against the author's signet.
func (c *Chunk) decryptStandard(actor dime.Actor, kek *crypto.KEK, author sigVerifier) (*standardPayload, error) {
	plain, err := c.decryptPayload(actor, kek)
	if err != nil {
		return nil, err
	}
	sp, err := parseStandardPayload(plain)
	if err != nil {
		crypto.Wipe(plain)
		return nil, err
	}
	if author != nil {
		if err := author.VerifyMessageSig(sp.signature, plain[64:]); err != nil {
			crypto.Wipe(plain)
			return nil, err
		}
	}
	return sp, nil
}

// decryptSignature decrypts a signature chunk and returns the bare 64-byte
// signature.
func (c *Chunk) decryptSignature(actor dime.Actor, kek *crypto.KEK) ([]byte, error) {
	key := typeKey(c.typ)
	if key == nil || key.payload != PayloadSignature {
		return nil, fmt.Errorf("%w: chunk type %d carries no signature payload", dime.ErrBadParam, c.typ)
	}
	plain, err := c.decryptPayload(actor, kek)
	if err != nil {
		return nil, err
	}
	if len(plain) != signaturePayloadSize {
		crypto.Wipe(plain)
		return nil, fmt.Errorf("%w: signature chunk payload of %d bytes", dime.ErrSizeViolation, len(plain))
	}
	return plain, nil
}

// replaceSignature overwrites a signature chunk's payload with sig,
// re-encrypted under the chunk key recovered from the actor's keyslot. Used
// by the origin to fill the signature chunks the author reserved for it.
func (c *Chunk) replaceSignature(actor dime.Actor, kek *crypto.KEK, sig []byte) error {
	key := typeKey(c.typ)
	if key == nil || key.payload != PayloadSignature {
		return fmt.Errorf("%w: chunk type %d carries no signature payload", dime.ErrBadParam, c.typ)
	}
	if len(sig) != signaturePayloadSize {
		return fmt.Errorf("%w: signature must be %d bytes", dime.ErrSizeViolation, signaturePayloadSize)
	}
	idx, ok := key.slotIndex(actor)
	if !ok {
		return fmt.Errorf("%w: %s holds no keyslot on %s chunks", dime.ErrRoleDenied, actor, key.name)
	}
	if idx >= len(c.keyslots) {
		return fmt.Errorf("%w: chunk carries %d keyslots, slot %d required",
			dime.ErrMissingChunk, len(c.keyslots), idx+1)
	}

	iv, aesKey, err := unsealKeyslot(c.keyslots[idx], kek)
	if err != nil {
		return err
	}
	defer crypto.Wipe(iv)
	defer crypto.Wipe(aesKey)

	ct, err := crypto.EncryptCBC(aesKey, iv, sig)
	if err != nil {
		return err
	}
	copy(c.payload, ct)
	return nil
}

// deserializeChunk reads one chunk from in, returning the chunk and the
// number of bytes consumed.
func deserializeChunk(in []byte) (*Chunk, int, error) {
	if len(in) < 4 {
		return nil, 0, fmt.Errorf("%w: truncated chunk header", dime.ErrSizeViolation)
	}
	typ := ChunkType(in[0])
	key := typeKey(typ)
	if key == nil {
		return nil, 0, fmt.Errorf("%w: chunk type %d", dime.ErrUnsupportedType, typ)
	}

	payloadSize := int(in[1])<<16 | int(in[2])<<8 | int(in[3])
	at := 4
	if at+payloadSize > len(in) {
		return nil, 0, fmt.Errorf("%w: chunk payload overruns message", dime.ErrSizeViolation)
	}

	c := &Chunk{typ: typ}
	c.payload = append([]byte(nil), in[at:at+payloadSize]...)
	at += payloadSize

	for i := 0; i < key.numKeyslots(); i++ {
		if at+keyslotSize > len(in) {
			return nil, 0, fmt.Errorf("%w: chunk keyslots overrun message", dime.ErrSizeViolation)
		}
		c.keyslots = append(c.keyslots, append([]byte(nil), in[at:at+keyslotSize]...))
		at += keyslotSize
	}

	if key.encrypted {
		if payloadSize == 0 || payloadSize%16 != 0 {
			return nil, 0, fmt.Errorf("%w: encrypted chunk payload of %d bytes", dime.ErrSizeViolation, payloadSize)
		}
		c.state = chunkStateEncrypted
	} else {
		c.state = chunkStateEncoded
	}
	return c, at, nil
}
