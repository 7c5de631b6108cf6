package keys

import (
	encasn1 "encoding/asn1"
	"fmt"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// oidSecp256k1 is the named-curve identifier 1.3.132.0.10.
var oidSecp256k1 = encasn1.ObjectIdentifier{1, 3, 132, 0, 10}

// ecPrivateKeyVersion is the RFC 5915 structure version.
const ecPrivateKeyVersion = 1

// marshalECPrivateKey encodes the private scalar as an RFC 5915 ECPrivateKey
// with the secp256k1 named curve and the compressed public point.
func marshalECPrivateKey(key *crypto.EncryptionKey) ([]byte, error) {
	scalar := key.Scalar()
	if scalar == nil {
		return nil, fmt.Errorf("%w: encryption key holds no private half", dime.ErrBadParam)
	}
	defer crypto.Wipe(scalar)

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(ecPrivateKeyVersion)
		b.AddASN1OctetString(scalar)
		b.AddASN1(asn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidSecp256k1)
		})
		b.AddASN1(asn1.Tag(1).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1BitString(key.Public())
		})
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: DER encode EC private key: %v", dime.ErrEncoding, err)
	}
	return der, nil
}

// parseECPrivateKey decodes an RFC 5915 ECPrivateKey, requiring the
// secp256k1 named curve when the parameters field is present.
func parseECPrivateKey(der []byte) (*crypto.EncryptionKey, error) {
	var (
		input   = cryptobyte.String(der)
		inner   cryptobyte.String
		version int64
		scalar  []byte
	)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(&version) ||
		!inner.ReadASN1Bytes(&scalar, asn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: malformed EC private key", dime.ErrEncoding)
	}
	if version != ecPrivateKeyVersion {
		return nil, fmt.Errorf("%w: unsupported EC private key version %d", dime.ErrEncoding, version)
	}

	var (
		params    cryptobyte.String
		hasParams bool
		curve     encasn1.ObjectIdentifier
	)
	if !inner.ReadOptionalASN1(&params, &hasParams, asn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, fmt.Errorf("%w: malformed EC key parameters", dime.ErrEncoding)
	}
	if hasParams {
		if !params.ReadASN1ObjectIdentifier(&curve) {
			return nil, fmt.Errorf("%w: malformed EC curve identifier", dime.ErrEncoding)
		}
		if !curve.Equal(oidSecp256k1) {
			return nil, fmt.Errorf("%w: EC key curve is not secp256k1", dime.ErrUnsupportedType)
		}
	}

	if len(scalar) != crypto.EncryptionKeySize {
		return nil, fmt.Errorf("%w: EC private scalar must be %d bytes, got %d",
			dime.ErrEncoding, crypto.EncryptionKeySize, len(scalar))
	}
	return crypto.EncryptionKeyFromScalar(scalar)
}
