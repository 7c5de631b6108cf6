package dmime

import dime "github.com/darkmail/dime-go"

// ChunkType is the one-byte chunk discriminator. Types not present in the
// chunk-key table are reserved and rejected on parse.
type ChunkType byte

// The fixed chunk type assignments.
const (
	ChunkEphemeral              ChunkType = 2
	ChunkAltEnvelope            ChunkType = 3
	ChunkOrigin                 ChunkType = 4
	ChunkDestination            ChunkType = 5
	ChunkCommonHeaders          ChunkType = 33
	ChunkOtherHeaders           ChunkType = 34
	ChunkDisplayContent         ChunkType = 67
	ChunkAttachContent          ChunkType = 131
	ChunkAuthorTreeSig          ChunkType = 225
	ChunkAuthorFullSig          ChunkType = 226
	ChunkOriginMetaBounceSig    ChunkType = 248
	ChunkOriginDisplayBounceSig ChunkType = 249
	ChunkOriginFullSig          ChunkType = 255
)

// Section identifies the message region a chunk belongs to. The values form
// a bitmask for partial serialization.
type Section int

const (
	// SectionEnvelope holds the ephemeral key and the two routing chunks.
	SectionEnvelope Section = 1 << iota
	// SectionMetadata holds the common and other header chunks.
	SectionMetadata
	// SectionDisplay holds the displayable message content.
	SectionDisplay
	// SectionAttach holds attachments.
	SectionAttach
	// SectionSig holds the author and origin signature chunks.
	SectionSig
)

// SectionsAll selects every section.
const SectionsAll = SectionEnvelope | SectionMetadata | SectionDisplay | SectionAttach | SectionSig

// PayloadKind discriminates the three chunk payload layouts.
type PayloadKind int

const (
	// PayloadEphemeral is a bare 33-byte compressed secp256k1 point.
	PayloadEphemeral PayloadKind = iota + 1
	// PayloadStandard is signature + size + flags + pad byte + data + padding,
	// encrypted as a whole.
	PayloadStandard
	// PayloadSignature is a bare 64-byte Ed25519 signature, encrypted but
	// never inner-signed.
	PayloadSignature
)

// chunkKey describes one chunk type: lifecycle flags, section membership,
// payload layout, and which actors hold a keyslot on it.
type chunkKey struct {
	name       string
	required   bool
	unique     bool
	encrypted  bool
	sequential bool
	section    Section
	payload    PayloadKind
	// keyslot presence in actor order: author, origin, destination, recipient.
	slots [4]bool
}

// chunkKeys is the process-wide chunk type table, read-only after init.
var chunkKeys [256]*chunkKey

func init() {
	chunkKeys[ChunkEphemeral] = &chunkKey{
		name: "ephemeral", required: true, unique: true,
		section: SectionEnvelope, payload: PayloadEphemeral,
	}
	chunkKeys[ChunkAltEnvelope] = &chunkKey{
		name: "alternate envelope", unique: true, encrypted: true,
		section: SectionEnvelope, payload: PayloadStandard,
		slots: [4]bool{true, false, false, true},
	}
	chunkKeys[ChunkOrigin] = &chunkKey{
		name: "origin envelope", required: true, unique: true, encrypted: true,
		section: SectionEnvelope, payload: PayloadStandard,
		slots: [4]bool{true, true, false, true},
	}
	chunkKeys[ChunkDestination] = &chunkKey{
		name: "destination envelope", required: true, unique: true, encrypted: true,
		section: SectionEnvelope, payload: PayloadStandard,
		slots: [4]bool{true, false, true, true},
	}
	chunkKeys[ChunkCommonHeaders] = &chunkKey{
		name: "common headers", required: true, unique: true, encrypted: true,
		section: SectionMetadata, payload: PayloadStandard,
		slots: [4]bool{true, false, false, true},
	}
	chunkKeys[ChunkOtherHeaders] = &chunkKey{
		name: "other headers", unique: true, encrypted: true,
		section: SectionMetadata, payload: PayloadStandard,
		slots: [4]bool{true, false, false, true},
	}
	chunkKeys[ChunkDisplayContent] = &chunkKey{
		name: "display content", encrypted: true, sequential: true,
		section: SectionDisplay, payload: PayloadStandard,
		slots: [4]bool{true, false, false, true},
	}
	chunkKeys[ChunkAttachContent] = &chunkKey{
		name: "attachment content", encrypted: true, sequential: true,
		section: SectionAttach, payload: PayloadStandard,
		slots: [4]bool{true, false, false, true},
	}
	// The destination domain holds no author signet and never verifies the
	// author's signatures, so it gets no keyslot on these two chunks.
	chunkKeys[ChunkAuthorTreeSig] = &chunkKey{
		name: "author tree signature", required: true, unique: true, encrypted: true,
		section: SectionSig, payload: PayloadSignature,
		slots: [4]bool{true, true, false, true},
	}
	chunkKeys[ChunkAuthorFullSig] = &chunkKey{
		name: "author full signature", required: true, unique: true, encrypted: true,
		section: SectionSig, payload: PayloadSignature,
		slots: [4]bool{true, true, false, true},
	}
	chunkKeys[ChunkOriginMetaBounceSig] = &chunkKey{
		name: "origin meta bounce signature", unique: true, encrypted: true,
		section: SectionSig, payload: PayloadSignature,
		slots: [4]bool{true, true, true, true},
	}
	chunkKeys[ChunkOriginDisplayBounceSig] = &chunkKey{
		name: "origin display bounce signature", unique: true, encrypted: true,
		section: SectionSig, payload: PayloadSignature,
		slots: [4]bool{true, true, true, true},
	}
	chunkKeys[ChunkOriginFullSig] = &chunkKey{
		name: "origin full signature", required: true, unique: true, encrypted: true,
		section: SectionSig, payload: PayloadSignature,
		slots: [4]bool{true, true, true, true},
	}
}

// typeKey returns the table entry for a chunk type, or nil for reserved
// types.
func typeKey(t ChunkType) *chunkKey {
	return chunkKeys[t]
}

// numKeyslots returns how many keyslots a chunk of this type carries on the
// wire.
func (k *chunkKey) numKeyslots() int {
	if !k.encrypted {
		return 0
	}
	n := 0
	for _, present := range k.slots {
		if present {
			n++
		}
	}
	return n
}

// slotIndex returns the zero-based keyslot position for an actor, counting
// only the slots present on the chunk type.
func (k *chunkKey) slotIndex(actor dime.Actor) (int, bool) {
	if actor < dime.ActorAuthor || actor > dime.ActorRecipient || !k.slots[actor] {
		return 0, false
	}
	idx := 0
	for i := 0; i < int(actor); i++ {
		if k.slots[i] {
			idx++
		}
	}
	return idx, true
}
