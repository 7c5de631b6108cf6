package dmime

import (
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
)

// DeriveKEKIn recovers the ephemeral public point from the message and runs
// the envelope KDF against the actor's private encryption key. The result is
// the same KEK the author derived for that actor on send.
func DeriveKEKIn(msg *Message, enckey *crypto.EncryptionKey) (*crypto.KEK, error) {
	if msg == nil || enckey == nil {
		return nil, fmt.Errorf("%w: message and encryption key are required", dime.ErrBadParam)
	}
	if msg.ephemeral == nil {
		return nil, fmt.Errorf("%w: ephemeral", dime.ErrMissingChunk)
	}
	ephPub, err := crypto.EncryptionKeyFromPublic(msg.ephemeral.payload)
	if err != nil {
		return nil, err
	}
	return crypto.DeriveKEK(enckey, ephPub)
}

// DecryptEnvelope decrypts the envelope chunks the actor may read and
// returns an initial draft in the loaded-envelope state. Signets are not yet
// attached, so inner chunk signatures are not verified here.
func DecryptEnvelope(msg *Message, actor dime.Actor, kek *crypto.KEK) (*Object, error) {
	if msg == nil || kek == nil {
		return nil, fmt.Errorf("%w: message and KEK are required", dime.ErrBadParam)
	}
	if msg.state != MessageStateComplete {
		return nil, fmt.Errorf("%w: message is %s", dime.ErrInvalidState, msg.state)
	}

	obj := &Object{Actor: actor, state: ObjectStateCreation}

	if actor == dime.ActorAuthor || actor == dime.ActorOrigin || actor == dime.ActorRecipient {
		if err := obj.loadOriginChunk(msg, kek, nil); err != nil {
			return nil, err
		}
	}
	if actor == dime.ActorAuthor || actor == dime.ActorDestination || actor == dime.ActorRecipient {
		if err := obj.loadDestinationChunk(msg, kek, nil); err != nil {
			return nil, err
		}
	}

	obj.state = ObjectStateLoadedEnvelope
	return obj, nil
}

// loadOriginChunk decrypts and parses the origin envelope chunk into the
// draft's author and destination fields.
func (o *Object) loadOriginChunk(msg *Message, kek *crypto.KEK, author sigVerifier) error {
	if msg.origin == nil {
		return fmt.Errorf("%w: origin envelope", dime.ErrMissingChunk)
	}
	sp, err := msg.origin.decryptStandard(o.Actor, kek, author)
	if err != nil {
		return err
	}
	env, err := parseEnvelope(sp.data, ChunkOrigin)
	if err != nil {
		return err
	}
	o.Author, o.FPAuthor = env.userID, env.userFP
	o.Destination, o.FPDestination = env.orgID, env.orgFP
	return nil
}

// loadDestinationChunk decrypts and parses the destination envelope chunk
// into the draft's recipient and origin fields.
func (o *Object) loadDestinationChunk(msg *Message, kek *crypto.KEK, author sigVerifier) error {
	if msg.destination == nil {
		return fmt.Errorf("%w: destination envelope", dime.ErrMissingChunk)
	}
	sp, err := msg.destination.decryptStandard(o.Actor, kek, author)
	if err != nil {
		return err
	}
	env, err := parseEnvelope(sp.data, ChunkDestination)
	if err != nil {
		return err
	}
	o.Recipient, o.FPRecipient = env.userID, env.userFP
	o.Origin, o.FPOrigin = env.orgID, env.orgFP
	return nil
}

// allZero reports whether b holds only zero bytes. A zero signature marks an
// origin signature chunk the origin server has not filled yet.
func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// verifyAuthorSigs checks the author tree and full signature chunks against
// the author's signet. The destination domain holds no author signet and
// must not call this.
func (o *Object) verifyAuthorSigs(msg *Message, kek *crypto.KEK) error {
	if o.Actor == dime.ActorDestination {
		return fmt.Errorf("%w: destination cannot verify author signatures", dime.ErrRoleDenied)
	}
	if msg.authorTreeSig == nil || msg.authorFullSig == nil {
		return fmt.Errorf("%w: author signature", dime.ErrMissingChunk)
	}

	treeSig, err := msg.authorTreeSig.decryptSignature(o.Actor, kek)
	if err != nil {
		return err
	}
	defer crypto.Wipe(treeSig)
	if err := o.SignetAuthor.VerifyMessageSig(treeSig, msg.treeSigData()); err != nil {
		return fmt.Errorf("author tree signature: %w", err)
	}

	fullSig, err := msg.authorFullSig.decryptSignature(o.Actor, kek)
	if err != nil {
		return err
	}
	defer crypto.Wipe(fullSig)
	fullData := serializeChunks(msg.chunksInRange(ChunkEphemeral, ChunkAuthorTreeSig))
	if err := o.SignetAuthor.VerifyMessageSig(fullSig, fullData); err != nil {
		return fmt.Errorf("author full signature: %w", err)
	}
	return nil
}

// verifyOriginSigs checks whichever origin signature chunks are present and
// filled against the origin's signet. Zero-filled signatures mean the
// message has not transited the origin server and are skipped.
func (o *Object) verifyOriginSigs(msg *Message, kek *crypto.KEK) error {
	if msg.originFullSig == nil {
		return fmt.Errorf("%w: origin full signature", dime.ErrMissingChunk)
	}

	if msg.originMetaBounceSig != nil {
		sig, err := msg.originMetaBounceSig.decryptSignature(o.Actor, kek)
		if err != nil {
			return err
		}
		if !allZero(sig) {
			data := serializeChunks(msg.chunksInSections(SectionEnvelope | SectionMetadata))
			if err := o.SignetOrigin.VerifyMessageSig(sig, data); err != nil {
				crypto.Wipe(sig)
				return fmt.Errorf("origin meta bounce signature: %w", err)
			}
		}
		crypto.Wipe(sig)
	}

	if msg.originDisplayBounceSig != nil {
		sig, err := msg.originDisplayBounceSig.decryptSignature(o.Actor, kek)
		if err != nil {
			return err
		}
		if !allZero(sig) {
			data := serializeChunks(msg.chunksInSections(SectionEnvelope | SectionMetadata | SectionDisplay))
			if err := o.SignetOrigin.VerifyMessageSig(sig, data); err != nil {
				crypto.Wipe(sig)
				return fmt.Errorf("origin display bounce signature: %w", err)
			}
		}
		crypto.Wipe(sig)
	}

	sig, err := msg.originFullSig.decryptSignature(o.Actor, kek)
	if err != nil {
		return err
	}
	defer crypto.Wipe(sig)
	if !allZero(sig) {
		data := serializeChunks(msg.chunksInRange(ChunkEphemeral, ChunkOriginDisplayBounceSig))
		if err := o.SignetOrigin.VerifyMessageSig(sig, data); err != nil {
			return fmt.Errorf("origin full signature: %w", err)
		}
	}
	return nil
}

// loadCommonHeaders decrypts, verifies, and parses the common headers chunk.
// Author and recipient only.
func (o *Object) loadCommonHeaders(msg *Message, kek *crypto.KEK) error {
	if o.Actor == dime.ActorOrigin || o.Actor == dime.ActorDestination {
		return fmt.Errorf("%w: only the author and recipient read metadata", dime.ErrRoleDenied)
	}
	if msg.commonHeaders == nil {
		return fmt.Errorf("%w: common headers", dime.ErrMissingChunk)
	}
	sp, err := msg.commonHeaders.decryptStandard(o.Actor, kek, o.SignetAuthor)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(sp.data)
	if err != nil {
		return err
	}
	o.CommonHeaders = headers
	return nil
}

// loadOtherHeaders decrypts the free-form other-headers chunk when present.
func (o *Object) loadOtherHeaders(msg *Message, kek *crypto.KEK) error {
	if msg.otherHeaders == nil {
		return nil
	}
	sp, err := msg.otherHeaders.decryptStandard(o.Actor, kek, o.SignetAuthor)
	if err != nil {
		return err
	}
	o.OtherHeaders = append([]byte(nil), sp.data...)
	return nil
}

// loadContent decrypts the display and attachment chunks in authored order.
func (o *Object) loadContent(msg *Message, kek *crypto.KEK) error {
	for _, c := range msg.display {
		sp, err := c.decryptStandard(o.Actor, kek, o.SignetAuthor)
		if err != nil {
			return err
		}
		o.Display = append(o.Display, &ObjectChunk{
			Type:  ChunkDisplayContent,
			Data:  append([]byte(nil), sp.data...),
			Flags: sp.flags,
		})
	}
	for _, c := range msg.attach {
		sp, err := c.decryptStandard(o.Actor, kek, o.SignetAuthor)
		if err != nil {
			return err
		}
		o.Attach = append(o.Attach, &ObjectChunk{
			Type:  ChunkAttachContent,
			Data:  append([]byte(nil), sp.data...),
			Flags: sp.flags,
		})
	}
	return nil
}

// requireSignets verifies the draft carries an identifier and a signet for
// each of the named parties. The envelope a domain reads never names that
// domain itself, so the origin and destination actors need only their own
// signet, not their own identifier.
func (o *Object) requireSignets(author, origin, destination, recipient bool) error {
	if author && (o.Author == "" || o.SignetAuthor == nil) {
		return fmt.Errorf("%w: author signet", dime.ErrMissingField)
	}
	if origin && ((o.Origin == "" && o.Actor != dime.ActorOrigin) || o.SignetOrigin == nil) {
		return fmt.Errorf("%w: origin signet", dime.ErrMissingField)
	}
	if destination && ((o.Destination == "" && o.Actor != dime.ActorDestination) || o.SignetDestination == nil) {
		return fmt.Errorf("%w: destination signet", dime.ErrMissingField)
	}
	if recipient && (o.Recipient == "" || o.SignetRecipient == nil) {
		return fmt.Errorf("%w: recipient signet", dime.ErrMissingField)
	}
	return nil
}

// beginRoleDecrypt runs the shared preamble of every role decrypt.
func (o *Object) beginRoleDecrypt(msg *Message, kek *crypto.KEK, actor dime.Actor) error {
	if o == nil || msg == nil || kek == nil {
		return fmt.Errorf("%w: draft, message, and KEK are required", dime.ErrBadParam)
	}
	if msg.state != MessageStateComplete {
		return fmt.Errorf("%w: message is %s", dime.ErrInvalidState, msg.state)
	}
	if o.Actor != actor {
		return fmt.Errorf("%w: draft actor is %s, want %s", dime.ErrRoleDenied, o.Actor, actor)
	}
	if o.state < ObjectStateLoadedEnvelope {
		return fmt.Errorf("%w: draft is %s", dime.ErrInvalidState, o.state)
	}
	return nil
}

// DecryptAsAuthor decrypts and verifies everything the author may read. The
// draft must carry all four signets. On any verification failure the draft
// is destroyed.
func DecryptAsAuthor(obj *Object, msg *Message, kek *crypto.KEK) error {
	if err := obj.beginRoleDecrypt(msg, kek, dime.ActorAuthor); err != nil {
		return err
	}
	if err := obj.requireSignets(true, true, true, true); err != nil {
		return err
	}
	obj.state = ObjectStateLoadedSignets

	if err := obj.decryptAll(msg, kek); err != nil {
		obj.Destroy()
		return err
	}
	obj.state = ObjectStateComplete
	return nil
}

// DecryptAsOrigin decrypts the origin envelope and verifies the author
// signatures, the origin domain's entire view of a message.
func DecryptAsOrigin(obj *Object, msg *Message, kek *crypto.KEK) error {
	if err := obj.beginRoleDecrypt(msg, kek, dime.ActorOrigin); err != nil {
		return err
	}
	if err := obj.requireSignets(true, true, true, false); err != nil {
		return err
	}
	obj.state = ObjectStateLoadedSignets

	if err := obj.loadOriginChunk(msg, kek, obj.SignetAuthor); err != nil {
		obj.Destroy()
		return err
	}
	if err := obj.verifyAuthorSigs(msg, kek); err != nil {
		obj.Destroy()
		return err
	}
	obj.state = ObjectStateComplete
	return nil
}

// DecryptAsDestination decrypts the destination envelope and verifies the
// origin signatures. The destination holds no author signet, so author
// signatures are outside its reach by design.
func DecryptAsDestination(obj *Object, msg *Message, kek *crypto.KEK) error {
	if err := obj.beginRoleDecrypt(msg, kek, dime.ActorDestination); err != nil {
		return err
	}
	if err := obj.requireSignets(false, true, true, true); err != nil {
		return err
	}
	obj.state = ObjectStateLoadedSignets

	if err := obj.loadDestinationChunk(msg, kek, nil); err != nil {
		obj.Destroy()
		return err
	}
	if err := obj.verifyOriginSigs(msg, kek); err != nil {
		obj.Destroy()
		return err
	}
	obj.state = ObjectStateComplete
	return nil
}

// DecryptAsRecipient decrypts and verifies everything the recipient may
// read: both envelopes, author and origin signatures, headers, and content.
func DecryptAsRecipient(obj *Object, msg *Message, kek *crypto.KEK) error {
	if err := obj.beginRoleDecrypt(msg, kek, dime.ActorRecipient); err != nil {
		return err
	}
	if err := obj.requireSignets(true, true, true, true); err != nil {
		return err
	}
	obj.state = ObjectStateLoadedSignets

	if err := obj.decryptAll(msg, kek); err != nil {
		obj.Destroy()
		return err
	}
	if err := obj.verifyOriginSigs(msg, kek); err != nil {
		obj.Destroy()
		return err
	}
	obj.state = ObjectStateComplete
	return nil
}

// decryptAll is the shared author/recipient path: both envelopes with inner
// signature verification, author signatures, then metadata and content.
func (o *Object) decryptAll(msg *Message, kek *crypto.KEK) error {
	if err := o.loadOriginChunk(msg, kek, o.SignetAuthor); err != nil {
		return err
	}
	if err := o.loadDestinationChunk(msg, kek, o.SignetAuthor); err != nil {
		return err
	}
	if err := o.verifyAuthorSigs(msg, kek); err != nil {
		return err
	}
	if err := o.loadCommonHeaders(msg, kek); err != nil {
		return err
	}
	if err := o.loadOtherHeaders(msg, kek); err != nil {
		return err
	}
	return o.loadContent(msg, kek)
}
