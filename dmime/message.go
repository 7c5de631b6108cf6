package dmime

import (
	"bytes"
	"crypto/sha512"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
	"github.com/darkmail/dime-go/signet"
)

// MessageState is the send-side lifecycle of a message.
type MessageState int

const (
	// MessageStateNone is an uninitialized message.
	MessageStateNone MessageState = iota
	// MessageStateIncomplete is a parsed message missing required chunks.
	MessageStateIncomplete
	// MessageStateEmpty has its structure allocated but no encoded chunks.
	MessageStateEmpty
	// MessageStateEncoded has plaintext chunks in place.
	MessageStateEncoded
	// MessageStateChunksSigned has every standard chunk inner-signed.
	MessageStateChunksSigned
	// MessageStateEncrypted has every chunk sealed into keyslots.
	MessageStateEncrypted
	// MessageStateAuthorSigned carries the author tree and full signatures.
	MessageStateAuthorSigned
	// MessageStateComplete carries every required chunk.
	MessageStateComplete
)

// String returns the state name.
func (s MessageState) String() string {
	switch s {
	case MessageStateIncomplete:
		return "incomplete"
	case MessageStateEmpty:
		return "empty"
	case MessageStateEncoded:
		return "encoded"
	case MessageStateChunksSigned:
		return "chunks signed"
	case MessageStateEncrypted:
		return "encrypted"
	case MessageStateAuthorSigned:
		return "author signed"
	case MessageStateComplete:
		return "complete"
	}
	return "none"
}

// Message is a sealed DMIME message: typed slots for the unique chunks plus
// the ordered display and attachment arrays.
type Message struct {
	tracing []byte

	ephemeral     *Chunk
	altEnvelope   *Chunk
	origin        *Chunk
	destination   *Chunk
	commonHeaders *Chunk
	otherHeaders  *Chunk
	display       []*Chunk
	attach        []*Chunk

	authorTreeSig          *Chunk
	authorFullSig          *Chunk
	originMetaBounceSig    *Chunk
	originDisplayBounceSig *Chunk
	originFullSig          *Chunk

	state MessageState
}

// State returns the message's current state.
func (m *Message) State() MessageState {
	return m.state
}

// SetTracing attaches an opaque tracing blob owned by the transport. The
// format beyond its length prefix is not interpreted here.
func (m *Message) SetTracing(tracing []byte) error {
	if len(tracing) > 0xFFFF {
		return fmt.Errorf("%w: tracing blob of %d bytes", dime.ErrSizeViolation, len(tracing))
	}
	m.tracing = append([]byte(nil), tracing...)
	return nil
}

// Tracing returns the tracing blob, if any.
func (m *Message) Tracing() []byte {
	return m.tracing
}

// chunkSlots returns the typed unique-chunk slots in ascending type order,
// as assignable pointers. Display and attach are handled separately.
func (m *Message) chunkSlots() []struct {
	typ  ChunkType
	slot **Chunk
} {
	return []struct {
		typ  ChunkType
		slot **Chunk
	}{
		{ChunkEphemeral, &m.ephemeral},
		{ChunkAltEnvelope, &m.altEnvelope},
		{ChunkOrigin, &m.origin},
		{ChunkDestination, &m.destination},
		{ChunkCommonHeaders, &m.commonHeaders},
		{ChunkOtherHeaders, &m.otherHeaders},
		{ChunkAuthorTreeSig, &m.authorTreeSig},
		{ChunkAuthorFullSig, &m.authorFullSig},
		{ChunkOriginMetaBounceSig, &m.originMetaBounceSig},
		{ChunkOriginDisplayBounceSig, &m.originDisplayBounceSig},
		{ChunkOriginFullSig, &m.originFullSig},
	}
}

// chunksInRange returns every present chunk whose type lies in [first, last],
// in serialization order.
func (m *Message) chunksInRange(first, last ChunkType) []*Chunk {
	var result []*Chunk
	appendIf := func(typ ChunkType, c *Chunk) {
		if c != nil && typ >= first && typ <= last {
			result = append(result, c)
		}
	}
	appendIf(ChunkEphemeral, m.ephemeral)
	appendIf(ChunkAltEnvelope, m.altEnvelope)
	appendIf(ChunkOrigin, m.origin)
	appendIf(ChunkDestination, m.destination)
	appendIf(ChunkCommonHeaders, m.commonHeaders)
	appendIf(ChunkOtherHeaders, m.otherHeaders)
	for _, c := range m.display {
		appendIf(ChunkDisplayContent, c)
	}
	for _, c := range m.attach {
		appendIf(ChunkAttachContent, c)
	}
	appendIf(ChunkAuthorTreeSig, m.authorTreeSig)
	appendIf(ChunkAuthorFullSig, m.authorFullSig)
	appendIf(ChunkOriginMetaBounceSig, m.originMetaBounceSig)
	appendIf(ChunkOriginDisplayBounceSig, m.originDisplayBounceSig)
	appendIf(ChunkOriginFullSig, m.originFullSig)
	return result
}

// chunksInSections returns every present chunk whose section bit is set in
// sections, in serialization order.
func (m *Message) chunksInSections(sections Section) []*Chunk {
	var result []*Chunk
	for _, c := range m.chunksInRange(0, ChunkOriginFullSig) {
		if typeKey(c.typ).section&sections != 0 {
			result = append(result, c)
		}
	}
	return result
}

// serializeChunks concatenates the wire forms of the given chunks.
func serializeChunks(chunks []*Chunk) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		c.serialize(&buf)
	}
	return buf.Bytes()
}

// treeSigData concatenates the SHA-512 digest of every content chunk's wire
// form, in serialization order. Content chunks are everything below the
// author tree signature.
func (m *Message) treeSigData() []byte {
	chunks := m.chunksInRange(ChunkEphemeral, ChunkAttachContent)
	data := make([]byte, 0, sha512.Size*len(chunks))
	for _, c := range chunks {
		digest := sha512.Sum512(c.serialBytes())
		data = append(data, digest[:]...)
	}
	return data
}

// classify sets the message state by which required chunks are present.
func (m *Message) classify() MessageState {
	if m.ephemeral != nil && m.origin != nil && m.destination != nil &&
		m.commonHeaders != nil && m.authorTreeSig != nil &&
		m.authorFullSig != nil && m.originFullSig != nil {
		m.state = MessageStateComplete
	} else {
		m.state = MessageStateIncomplete
	}
	return m.state
}

// Encrypt converts a complete draft into a fully sealed message as the
// author: chunks are encoded, inner-signed, encrypted under fresh per-chunk
// keys sealed to each actor the chunk type grants a keyslot, then tree- and
// full-signed. The origin
// signature chunks are reserved (zero-filled) for the origin server to fill
// after transport.
func Encrypt(obj *Object, signkey *crypto.SigningKey) (*Message, error) {
	if obj == nil || signkey == nil {
		return nil, fmt.Errorf("%w: draft and signing key are required", dime.ErrBadParam)
	}
	if obj.Actor != dime.ActorAuthor {
		return nil, fmt.Errorf("%w: only the author encrypts a draft", dime.ErrRoleDenied)
	}
	if obj.StateInit() != ObjectStateComplete {
		return nil, fmt.Errorf("%w: draft is %s", dime.ErrInvalidState, obj.state)
	}

	m := &Message{state: MessageStateEmpty}

	if err := m.encodeChunks(obj); err != nil {
		return nil, err
	}
	if err := m.signChunks(signkey); err != nil {
		return nil, err
	}

	ephemeral, err := crypto.GenerateEncryptionKey()
	if err != nil {
		return nil, err
	}
	defer ephemeral.Destroy()

	ephChunk, err := newChunk(ChunkEphemeral, ephemeral.Public(), 0)
	if err != nil {
		return nil, err
	}
	m.ephemeral = ephChunk

	keks, err := deriveOutboundKEKs(obj, ephemeral)
	if err != nil {
		return nil, err
	}
	defer destroyKEKs(keks)

	if err := m.encryptChunks(keks); err != nil {
		return nil, err
	}
	if err := m.signAsAuthor(signkey, keks); err != nil {
		return nil, err
	}

	m.classify()
	return m, nil
}

// encodeChunks builds the plaintext chunks of the message from the draft.
func (m *Message) encodeChunks(obj *Object) error {
	originData, err := formatEnvelope(ChunkOrigin, obj.Author, obj.Destination, obj.FPAuthor, obj.FPDestination)
	if err != nil {
		return err
	}
	if m.origin, err = newChunk(ChunkOrigin, originData, 0); err != nil {
		return err
	}

	destData, err := formatEnvelope(ChunkDestination, obj.Recipient, obj.Origin, obj.FPRecipient, obj.FPOrigin)
	if err != nil {
		return err
	}
	if m.destination, err = newChunk(ChunkDestination, destData, 0); err != nil {
		return err
	}

	headerData, err := formatHeaders(obj.CommonHeaders)
	if err != nil {
		return err
	}
	if m.commonHeaders, err = newChunk(ChunkCommonHeaders, headerData, 0); err != nil {
		return err
	}

	if len(obj.OtherHeaders) > 0 {
		if m.otherHeaders, err = newChunk(ChunkOtherHeaders, obj.OtherHeaders, 0); err != nil {
			return err
		}
	}

	for _, oc := range obj.Display {
		if oc.Type != ChunkDisplayContent {
			return fmt.Errorf("%w: chunk type %d in display list", dime.ErrBadParam, oc.Type)
		}
		c, err := newChunk(ChunkDisplayContent, oc.Data, oc.Flags)
		if err != nil {
			return err
		}
		m.display = append(m.display, c)
	}
	for _, oc := range obj.Attach {
		if oc.Type != ChunkAttachContent {
			return fmt.Errorf("%w: chunk type %d in attachment list", dime.ErrBadParam, oc.Type)
		}
		c, err := newChunk(ChunkAttachContent, oc.Data, oc.Flags)
		if err != nil {
			return err
		}
		m.attach = append(m.attach, c)
	}

	m.state = MessageStateEncoded
	return nil
}

// signChunks inner-signs every standard chunk with the author's key.
func (m *Message) signChunks(signkey *crypto.SigningKey) error {
	if m.state != MessageStateEncoded {
		return fmt.Errorf("%w: message is %s, want encoded", dime.ErrInvalidState, m.state)
	}
	for _, c := range m.chunksInRange(ChunkAltEnvelope, ChunkAttachContent) {
		if typeKey(c.typ).payload != PayloadStandard {
			continue
		}
		if err := c.signChunk(signkey); err != nil {
			return err
		}
	}
	m.state = MessageStateChunksSigned
	return nil
}

// deriveOutboundKEKs runs the envelope KDF between the ephemeral private key
// and each actor's signet encryption key.
func deriveOutboundKEKs(obj *Object, ephemeral *crypto.EncryptionKey) (*[4]*crypto.KEK, error) {
	keks := &[4]*crypto.KEK{}
	signets := [4]*signet.Signet{
		dime.ActorAuthor:      obj.SignetAuthor,
		dime.ActorOrigin:      obj.SignetOrigin,
		dime.ActorDestination: obj.SignetDestination,
		dime.ActorRecipient:   obj.SignetRecipient,
	}
	for actor := dime.ActorAuthor; actor <= dime.ActorRecipient; actor++ {
		enc, err := signets[actor].EncryptionKey()
		if err != nil {
			destroyKEKs(keks)
			return nil, fmt.Errorf("fetch %s encryption key: %w", actor, err)
		}
		kek, err := crypto.DeriveKEK(ephemeral, enc)
		if err != nil {
			destroyKEKs(keks)
			return nil, fmt.Errorf("derive %s KEK: %w", actor, err)
		}
		keks[actor] = kek
	}
	return keks, nil
}

// destroyKEKs wipes a KEK set.
func destroyKEKs(keks *[4]*crypto.KEK) {
	for _, kek := range keks {
		kek.Destroy()
	}
}

// encryptChunks encrypts every encrypted-table chunk currently present.
func (m *Message) encryptChunks(keks *[4]*crypto.KEK) error {
	if m.state != MessageStateChunksSigned {
		return fmt.Errorf("%w: message is %s, want chunks signed", dime.ErrInvalidState, m.state)
	}
	for _, c := range m.chunksInRange(ChunkAltEnvelope, ChunkAttachContent) {
		if err := c.encryptChunk(keks); err != nil {
			return err
		}
	}
	m.state = MessageStateEncrypted
	return nil
}

// signAsAuthor adds the author tree and full signature chunks and reserves
// the zero-filled origin signature chunks.
func (m *Message) signAsAuthor(signkey *crypto.SigningKey, keks *[4]*crypto.KEK) error {
	if m.state != MessageStateEncrypted {
		return fmt.Errorf("%w: message is %s, want encrypted", dime.ErrInvalidState, m.state)
	}

	treeSig, err := signkey.Sign(m.treeSigData())
	if err != nil {
		return err
	}
	if m.authorTreeSig, err = newChunk(ChunkAuthorTreeSig, treeSig, 0); err != nil {
		return err
	}
	if err := m.authorTreeSig.encryptChunk(keks); err != nil {
		return err
	}

	fullData := serializeChunks(m.chunksInRange(ChunkEphemeral, ChunkAuthorTreeSig))
	fullSig, err := signkey.Sign(fullData)
	if err != nil {
		return err
	}
	if m.authorFullSig, err = newChunk(ChunkAuthorFullSig, fullSig, 0); err != nil {
		return err
	}
	if err := m.authorFullSig.encryptChunk(keks); err != nil {
		return err
	}
	m.state = MessageStateAuthorSigned

	// Reserve the origin signature chunks: zero-filled signatures the origin
	// server fills in after transport.
	zeros := make([]byte, signaturePayloadSize)
	for _, reserve := range []struct {
		typ  ChunkType
		slot **Chunk
	}{
		{ChunkOriginMetaBounceSig, &m.originMetaBounceSig},
		{ChunkOriginDisplayBounceSig, &m.originDisplayBounceSig},
		{ChunkOriginFullSig, &m.originFullSig},
	} {
		c, err := newChunk(reserve.typ, zeros, 0)
		if err != nil {
			return err
		}
		if err := c.encryptChunk(keks); err != nil {
			return err
		}
		*reserve.slot = c
	}

	m.state = MessageStateComplete
	return nil
}
