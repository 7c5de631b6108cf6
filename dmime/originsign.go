package dmime

import (
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
)

// Bounce flag bits for origin signing.
const (
	// MetaBounce requests a signature over the envelope and metadata
	// sections, used when bouncing a message without its content.
	MetaBounce byte = 1 << 0
	// DisplayBounce requests a signature that additionally covers the
	// display section.
	DisplayBounce byte = 1 << 1
)

// SignAsOrigin fills the origin signature chunks the author reserved. The
// bounce signatures are written or discarded according to bounceFlags; the
// origin full signature is always written. The signing key's public half
// must appear in the origin signet as the POK or a message-permitted SOK.
//
// Whether and when a bounce signature is honored is policy belonging to the
// caller; this operation only produces the signatures.
func SignAsOrigin(msg *Message, bounceFlags byte, kek *crypto.KEK, signkey *crypto.SigningKey) error {
	if msg == nil || kek == nil || signkey == nil {
		return fmt.Errorf("%w: message, KEK, and signing key are required", dime.ErrBadParam)
	}
	if msg.originFullSig == nil {
		return fmt.Errorf("%w: origin full signature", dime.ErrMissingChunk)
	}

	if msg.originMetaBounceSig != nil {
		if bounceFlags&MetaBounce != 0 {
			data := serializeChunks(msg.chunksInSections(SectionEnvelope | SectionMetadata))
			sig, err := signkey.Sign(data)
			if err != nil {
				return err
			}
			if err := msg.originMetaBounceSig.replaceSignature(dime.ActorOrigin, kek, sig); err != nil {
				return err
			}
			crypto.Wipe(sig)
		} else {
			msg.originMetaBounceSig = nil
		}
	}

	if msg.originDisplayBounceSig != nil {
		if bounceFlags&DisplayBounce != 0 {
			data := serializeChunks(msg.chunksInSections(SectionEnvelope | SectionMetadata | SectionDisplay))
			sig, err := signkey.Sign(data)
			if err != nil {
				return err
			}
			if err := msg.originDisplayBounceSig.replaceSignature(dime.ActorOrigin, kek, sig); err != nil {
				return err
			}
			crypto.Wipe(sig)
		} else {
			msg.originDisplayBounceSig = nil
		}
	}

	data := serializeChunks(msg.chunksInRange(ChunkEphemeral, ChunkOriginDisplayBounceSig))
	sig, err := signkey.Sign(data)
	if err != nil {
		return err
	}
	defer crypto.Wipe(sig)
	return msg.originFullSig.replaceSignature(dime.ActorOrigin, kek, sig)
}
