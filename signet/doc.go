// Package signet implements DIME signets: length-prefixed TLV identity
// documents binding a public key set to a user, an organization, or a
// signet-signing request (SSR).
//
// A signet is an ordered sequence of schema-defined fields. Field ids are
// chosen so the three signature fields always satisfy crypto < full < id,
// and each signature covers the serialization of every field with a strictly
// lower id. That ordering is what makes [Signet.CryptoSplit] and
// [Signet.FullSplit] safe: a split merely truncates the byte buffer to a
// well-defined, signed prefix.
//
// The lifecycle of a user identity:
//
//	ssr, _ := signet.New(signet.TypeSSR)            // keys + self-signature
//	ssr.SetSigningKey(userSign, signet.KeyFormatDefault)
//	ssr.SetEncryptionKey(userEnc, signet.KeyFormatDefault)
//	ssr.SignSSR(userSign)
//	ssr.SignCrypto(orgSign)                         // SSR -> USER upgrade
//	ssr.SignFull(orgSign)
//	ssr.SetID("ivan@darkmail.info")
//	ssr.SignID(orgSign)                             // state: id
//
// Validation classifies a signet into a linear state lattice; see [State].
// [Signet.ValidateStructure] checks shape only, [ValidateAll] additionally
// verifies every signature against the supplied trust material.
package signet
