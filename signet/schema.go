package signet

import dime "github.com/darkmail/dime-go"

// Type discriminates the three signet categories.
type Type int

const (
	// TypeOrg is an organizational signet rooted in a POK.
	TypeOrg Type = iota + 1
	// TypeUser is a user signet counter-signed by an organization.
	TypeUser
	// TypeSSR is a signet-signing request: a self-signed user proto-signet
	// awaiting organizational counter-signature.
	TypeSSR
)

// String returns the lowercase type name.
func (t Type) String() string {
	switch t {
	case TypeOrg:
		return "org"
	case TypeUser:
		return "user"
	case TypeSSR:
		return "ssr"
	}
	return "invalid"
}

// Number returns the DIME magic number for the serialized form.
func (t Type) Number() (dime.Number, bool) {
	switch t {
	case TypeOrg:
		return dime.NumberOrgSignet, true
	case TypeUser:
		return dime.NumberUserSignet, true
	case TypeSSR:
		return dime.NumberSSR, true
	}
	return 0, false
}

// Organizational signet field ids.
const (
	FidOrgPOK       byte = 1
	FidOrgSOK       byte = 2
	FidOrgEncKey    byte = 3
	FidOrgCryptoSig byte = 4
	FidOrgName      byte = 16
	FidOrgPhone     byte = 17
	FidOrgUndefined byte = 160
	FidOrgFullSig   byte = 253
	FidOrgID        byte = 254
	FidOrgIDSig     byte = 255
)

// User and SSR field ids. An SSR is the prefix of a user signet through the
// SSR signature; SignCrypto upgrades the type in place.
const (
	FidUserSignKey   byte = 1
	FidUserEncKey    byte = 2
	FidUserCoCSig    byte = 3
	FidUserSSRSig    byte = 4
	FidUserCryptoSig byte = 5
	FidUserUndefined byte = 160
	FidUserFullSig   byte = 253
	FidUserID        byte = 254
	FidUserIDSig     byte = 255
)

// SOK permission bits.
const (
	PermSignet byte = 1 << iota
	PermMsg
	PermTLS
	PermSoftware
)

// KeyFormatDefault is the key format byte written ahead of raw Ed25519 and
// compressed secp256k1 key material.
const KeyFormatDefault byte = 0x04

// Fixed field payload sizes.
const (
	signKeyFieldSize = 1 + 32     // format byte + Ed25519 public key
	encKeyFieldSize  = 1 + 33     // format byte + compressed secp256k1 point
	sokFieldSize     = 1 + 1 + 32 // permissions + format + Ed25519 public key
	sigFieldSize     = 64
)

// dataKind tags how a field's payload is interpreted when dumped.
type dataKind int

const (
	kindBinary dataKind = iota
	kindB64
	kindUTF8
	kindPNG
)

// fieldKey describes one field id in a signet schema: presence and
// uniqueness rules plus the length-prefix layout of each occurrence.
type fieldKey struct {
	name     string
	required bool
	unique   bool
	hasName  bool // 1-byte name-length prefix precedes the payload
	lenSize  int  // 0..3 bytes of big-endian data-length prefix
	dataSize int  // fixed payload size when lenSize == 0
	kind     dataKind
}

// The schema tables. A nil entry means the field id is disallowed for the
// signet type and must be rejected on parse.
var (
	orgFieldKeys  [256]*fieldKey
	userFieldKeys [256]*fieldKey
	ssrFieldKeys  [256]*fieldKey
)

func init() {
	orgFieldKeys[FidOrgPOK] = &fieldKey{name: "Primary-Organizational-Key", required: true, unique: true, dataSize: signKeyFieldSize}
	orgFieldKeys[FidOrgSOK] = &fieldKey{name: "Secondary-Organizational-Key", lenSize: 1}
	orgFieldKeys[FidOrgEncKey] = &fieldKey{name: "Encryption-Key", required: true, unique: true, dataSize: encKeyFieldSize}
	orgFieldKeys[FidOrgCryptoSig] = &fieldKey{name: "Organizational-Signature", required: true, unique: true, dataSize: sigFieldSize}
	orgFieldKeys[FidOrgName] = &fieldKey{name: "Name", unique: true, lenSize: 1, kind: kindUTF8}
	orgFieldKeys[FidOrgPhone] = &fieldKey{name: "Phone-Number", lenSize: 1, kind: kindUTF8}
	orgFieldKeys[FidOrgUndefined] = &fieldKey{name: "Undefined-Field", hasName: true, lenSize: 2}
	orgFieldKeys[FidOrgFullSig] = &fieldKey{name: "Organizational-Full-Signature", unique: true, dataSize: sigFieldSize}
	orgFieldKeys[FidOrgID] = &fieldKey{name: "Organizational-Identifier", unique: true, lenSize: 1, kind: kindUTF8}
	orgFieldKeys[FidOrgIDSig] = &fieldKey{name: "Organizational-Identifiable-Signature", unique: true, dataSize: sigFieldSize}

	userFieldKeys[FidUserSignKey] = &fieldKey{name: "User-Signing-Key", required: true, unique: true, dataSize: signKeyFieldSize}
	userFieldKeys[FidUserEncKey] = &fieldKey{name: "User-Encryption-Key", required: true, unique: true, dataSize: encKeyFieldSize}
	userFieldKeys[FidUserCoCSig] = &fieldKey{name: "Chain-Of-Custody-Signature", unique: true, dataSize: sigFieldSize}
	userFieldKeys[FidUserSSRSig] = &fieldKey{name: "User-SSR-Signature", required: true, unique: true, dataSize: sigFieldSize}
	userFieldKeys[FidUserCryptoSig] = &fieldKey{name: "Organizational-Signature", required: true, unique: true, dataSize: sigFieldSize}
	userFieldKeys[FidUserUndefined] = &fieldKey{name: "Undefined-Field", hasName: true, lenSize: 2}
	userFieldKeys[FidUserFullSig] = &fieldKey{name: "Organizational-Full-Signature", unique: true, dataSize: sigFieldSize}
	userFieldKeys[FidUserID] = &fieldKey{name: "User-Identifier", unique: true, lenSize: 1, kind: kindUTF8}
	userFieldKeys[FidUserIDSig] = &fieldKey{name: "Organizational-Identifiable-Signature", unique: true, dataSize: sigFieldSize}

	// An SSR carries only the user fields through the SSR signature.
	ssrFieldKeys[FidUserSignKey] = userFieldKeys[FidUserSignKey]
	ssrFieldKeys[FidUserEncKey] = userFieldKeys[FidUserEncKey]
	ssrFieldKeys[FidUserCoCSig] = userFieldKeys[FidUserCoCSig]
	ssrFieldKeys[FidUserSSRSig] = userFieldKeys[FidUserSSRSig]
}

// fieldKeysFor returns the schema table for a signet type.
func fieldKeysFor(t Type) *[256]*fieldKey {
	switch t {
	case TypeOrg:
		return &orgFieldKeys
	case TypeUser:
		return &userFieldKeys
	case TypeSSR:
		return &ssrFieldKeys
	}
	return nil
}
