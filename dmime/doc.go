// Package dmime implements DMIME messages: multi-chunk encrypted envelopes
// carrying an email-like message from an author, through the origin and
// destination domain servers, to a recipient.
//
// # Model
//
// A message is a sequence of typed chunks serialized in ascending type
// order. Every encrypted chunk is AES-256-CBC encrypted under its own random
// key, and that key is sealed into one 64-byte keyslot per actor allowed to
// read the chunk. All keyslots on a message are sealed under key-encryption
// keys (KEKs) derived from a single ephemeral secp256k1 keypair whose public
// point rides in the ephemeral chunk.
//
// Authoring:
//
//	obj := &dmime.Object{Actor: dime.ActorAuthor, ...}
//	msg, err := dmime.Encrypt(obj, authorSigningKey)
//	wire, err := msg.Serialize(dmime.SectionsAll, true)
//
// Origin signing happens after transport to the origin server:
//
//	kek, _ := dmime.DeriveKEKIn(msg, originEncryptionKey)
//	err := dmime.SignAsOrigin(msg, dmime.MetaBounce|dmime.DisplayBounce, kek, originSigningKey)
//
// Receiving, for any actor:
//
//	msg, _ := dmime.Deserialize(wire)
//	kek, _ := dmime.DeriveKEKIn(msg, myEncryptionKey)
//	obj, _ := dmime.DecryptEnvelope(msg, dime.ActorRecipient, kek)
//	// ... fetch signets out of band, attach them to obj ...
//	err := dmime.DecryptAsRecipient(obj, msg, kek)
//
// Each actor can decrypt exactly the chunks its role carries a keyslot for;
// everything else fails with a role error.
package dmime
