package dime

import "errors"

// Sentinel errors for errors.Is() checks. Every fallible operation in the
// module returns one of these, usually wrapped with call-site context.
var (
	// ErrBadParam is returned when a required input is nil or empty.
	ErrBadParam = errors.New("bad parameter")

	// ErrSchemaViolation is returned when a signet field violates the schema's
	// presence, prefix, or payload rules.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrSizeViolation is returned when field or payload data exceeds the size
	// its length prefix can describe.
	ErrSizeViolation = errors.New("size violation")

	// ErrDuplicateUnique is returned when a second instance of a unique field
	// or chunk is created.
	ErrDuplicateUnique = errors.New("duplicate unique field")

	// ErrFieldOutOfOrder is returned when signet fields are not in
	// nondecreasing field-id order.
	ErrFieldOutOfOrder = errors.New("field out of order")

	// ErrMissingField is returned when a required signet field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrUnsupportedType is returned for an unknown DIME magic number, signet
	// type, or chunk type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidState is returned when an operation is attempted in the wrong
	// lifecycle state.
	ErrInvalidState = errors.New("invalid object state")

	// ErrCryptoFailure is returned when an underlying primitive (RNG, AES,
	// ECDH, Ed25519) fails.
	ErrCryptoFailure = errors.New("cryptographic operation failed")

	// ErrSignatureInvalid is returned when a signature verifies as wrong.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrRoleDenied is returned when an actor requests a chunk or operation
	// outside its permitted set.
	ErrRoleDenied = errors.New("role not permitted")

	// ErrBrokenChainOfCustody is returned when an SSR's chain-of-custody
	// signature does not verify under the prior signet.
	ErrBrokenChainOfCustody = errors.New("broken chain of custody")

	// ErrPOKNotTrusted is returned when an org signet's primary key is not
	// among the caller's trusted POK set.
	ErrPOKNotTrusted = errors.New("POK not present in DIME record")

	// ErrEncoding is returned on a base64, PEM, or CRC-24 mismatch.
	ErrEncoding = errors.New("encoding error")

	// ErrChunkOutOfOrder is returned when message chunks are not in ascending
	// type order on the wire.
	ErrChunkOutOfOrder = errors.New("chunk out of order")

	// ErrBadPadding is returned when a decrypted chunk's padding does not
	// match its declared pad length and byte.
	ErrBadPadding = errors.New("bad chunk padding")

	// ErrMissingChunk is returned when a chunk required for the operation or
	// role is absent from the message.
	ErrMissingChunk = errors.New("missing required chunk")
)
