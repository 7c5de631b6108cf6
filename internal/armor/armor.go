// Package armor implements the PEM-like framing DIME uses for signets and
// key files: a BEGIN/END fence around 64-column base64 with a trailing
// Radix-64 checksum line in the OpenPGP style (RFC 4880 §6.1).
package armor

import (
	"encoding/base64"
	"fmt"
	"strings"

	dime "github.com/darkmail/dime-go"
)

const lineLength = 64

// crc24Init and crc24Poly are the RFC 4880 Radix-64 checksum parameters.
const (
	crc24Init = 0xB704CE
	crc24Poly = 0x1864CFB
)

// Crc24 computes the RFC 4880 CRC over data. The result occupies the low 24
// bits of the returned value.
func Crc24(data []byte) uint32 {
	crc := uint32(crc24Init)
	for _, b := range data {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc ^= crc24Poly
			}
		}
	}
	return crc & 0xFFFFFF
}

func checksumLine(body []byte) string {
	crc := Crc24(body)
	raw := []byte{byte(crc >> 16), byte(crc >> 8), byte(crc)}
	return "=" + base64.StdEncoding.EncodeToString(raw)
}

// Encode wraps body in an armored block with the given label.
func Encode(label string, body []byte) (string, error) {
	if label == "" || len(body) == 0 {
		return "", fmt.Errorf("%w: armor label and body are required", dime.ErrBadParam)
	}

	var b strings.Builder
	b.WriteString("-----BEGIN ")
	b.WriteString(label)
	b.WriteString("-----\n")

	encoded := base64.StdEncoding.EncodeToString(body)
	for len(encoded) > lineLength {
		b.WriteString(encoded[:lineLength])
		b.WriteByte('\n')
		encoded = encoded[lineLength:]
	}
	b.WriteString(encoded)
	b.WriteByte('\n')

	b.WriteString(checksumLine(body))
	b.WriteByte('\n')

	b.WriteString("-----END ")
	b.WriteString(label)
	b.WriteString("-----\n")

	return b.String(), nil
}

// Decode unwraps an armored block, verifying the label and the checksum line.
func Decode(label, armored string) ([]byte, error) {
	if label == "" || armored == "" {
		return nil, fmt.Errorf("%w: armor label and input are required", dime.ErrBadParam)
	}

	begin := "-----BEGIN " + label + "-----"
	end := "-----END " + label + "-----"

	lines := strings.Split(strings.ReplaceAll(armored, "\r\n", "\n"), "\n")
	var (
		inBody   bool
		ended    bool
		b64      strings.Builder
		checksum string
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == begin:
			if inBody || ended {
				return nil, fmt.Errorf("%w: repeated armor header", dime.ErrEncoding)
			}
			inBody = true
		case line == end:
			if !inBody {
				return nil, fmt.Errorf("%w: armor trailer before header", dime.ErrEncoding)
			}
			inBody = false
			ended = true
		case inBody && strings.HasPrefix(line, "="):
			checksum = line
		case inBody:
			b64.WriteString(line)
		default:
			return nil, fmt.Errorf("%w: unexpected data outside armor fence", dime.ErrEncoding)
		}
	}
	if !ended {
		return nil, fmt.Errorf("%w: missing armor trailer for %q", dime.ErrEncoding, label)
	}

	body, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", dime.ErrEncoding, err)
	}
	if checksum == "" {
		return nil, fmt.Errorf("%w: missing armor checksum line", dime.ErrEncoding)
	}
	if checksum != checksumLine(body) {
		return nil, fmt.Errorf("%w: armor checksum mismatch", dime.ErrEncoding)
	}

	return body, nil
}

// EncodeB64 is the bare base64 form of a serialized object, without the
// armor fence. Standard alphabet, with padding.
func EncodeB64(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

// DecodeB64 reverses EncodeB64.
func DecodeB64(s string) ([]byte, error) {
	body, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", dime.ErrEncoding, err)
	}
	return body, nil
}

// EncodeB64Raw encodes without padding. Fingerprints use this form.
func EncodeB64Raw(body []byte) string {
	return base64.RawStdEncoding.EncodeToString(body)
}
