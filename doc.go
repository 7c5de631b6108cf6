// Package dime implements the DIME cryptographic messaging core: signets
// (cryptographic identity documents), private key files, and DMIME encrypted
// message envelopes.
//
// # Overview
//
// A DIME message travels from an Author through two intermediary domain
// servers (Origin and Destination) to a Recipient. Each of the four actors
// holds a distinct key-encryption key derived from a single per-message
// ephemeral secp256k1 keypair, and each message chunk carries one sealed
// keyslot per actor allowed to read it. The result is that every party can
// decrypt precisely the chunks its role requires and nothing more.
//
// The module is split into focused packages:
//
//   - [github.com/darkmail/dime-go/signet]: identity documents for users,
//     organizations, and signing requests (SSRs), with a graduated
//     signing-state lifecycle.
//   - [github.com/darkmail/dime-go/keys]: the PEM-armored private key file
//     format holding an Ed25519 signing key and a secp256k1 encryption key.
//   - [github.com/darkmail/dime-go/dmime]: chunked message envelopes; the
//     send, origin-signing, and role-scoped receive paths.
//
// This root package holds what those packages share: the DIME magic numbers,
// the actor enumeration, and the sentinel errors every fallible operation
// wraps.
//
// # Algorithm Suite
//
//   - Ed25519: all signatures (signets, chunks, message trees).
//   - secp256k1 ECDH + SHA-512: key-encryption-key derivation.
//   - AES-256-CBC: chunk payloads and keyslots (padding handled by the
//     DIME chunk layer, not the cipher).
//   - CRC-24 (RFC 4880): armor checksums.
//
// # Concurrency
//
// Objects are exclusively owned while any operation executes on them. There
// are no background tasks and no callbacks; all operations are synchronous
// and CPU-bounded. Immutable signets and messages may be shared between
// readers.
package dime
