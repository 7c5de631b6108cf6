// Package crypto provides the cryptographic primitives for the DIME protocol.
//
// # Algorithm Suite
//
// The package wraps the following algorithms behind DIME-shaped operations:
//
//   - Ed25519: digital signatures for signets, message chunks, and
//     tree/full message signatures.
//
//   - secp256k1 ECDH: per-message key agreement between the ephemeral
//     message key and each actor's encryption key.
//
//   - SHA-512 over the shared X coordinate, folded into a 16-byte IV and a
//     32-byte AES key: the envelope KDF producing a key-encryption key (KEK).
//
//   - AES-256-CBC with padding disabled: chunk payloads and keyslots. All
//     padding is handled by the DIME chunk layer, so inputs must already be
//     16-byte aligned.
//
// # Security Model
//
// Both ends of an ECDH exchange arrive at an identical KEK: the sender runs
// [DeriveKEK] with the ephemeral private key and the actor's public key, the
// receiver with the actor's private key and the ephemeral public point.
//
// Random bytes come exclusively from the platform CSPRNG. A failing random
// source is a hard error for the calling operation; the package never falls
// back to zeroed or non-cryptographic output.
//
// Secret material (private keys, KEKs, chunk keys, unsealed keyslots) must be
// wiped with [Wipe] before its backing storage is released.
package crypto
