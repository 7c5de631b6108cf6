package dmime

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
)

// envelopeData is the parsed content of an origin or destination envelope
// chunk: a user identifier, an organizational identifier, and the signet
// fingerprint for each.
type envelopeData struct {
	userID string
	userFP string
	orgID  string
	orgFP  string
}

// envelopeLabels returns the four labels for an envelope chunk type, in the
// exact order the grammar requires.
func envelopeLabels(typ ChunkType) (user, userFP, org, orgFP string, err error) {
	switch typ {
	case ChunkOrigin:
		return "Author: <", "Author-Signet: [", "Destination: <", "Destination-Signet: [", nil
	case ChunkDestination:
		return "Recipient: <", "Recipient-Signet: [", "Origin: <", "Origin-Signet: [", nil
	}
	return "", "", "", "", fmt.Errorf("%w: chunk type %d carries no envelope labels",
		dime.ErrUnsupportedType, typ)
}

// formatEnvelope builds the text payload of an envelope chunk: identifiers
// in angle brackets, fingerprints in square brackets, each line CRLF
// terminated.
func formatEnvelope(typ ChunkType, userID, orgID, userFP, orgFP string) ([]byte, error) {
	if userID == "" || orgID == "" || userFP == "" || orgFP == "" {
		return nil, fmt.Errorf("%w: envelope requires both identifiers and both fingerprints",
			dime.ErrBadParam)
	}
	l1, l2, l3, l4, err := envelopeLabels(typ)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(l1)
	buf.WriteString(userID)
	buf.WriteString(">\r\n")
	buf.WriteString(l2)
	buf.WriteString(userFP)
	buf.WriteString("]\r\n")
	buf.WriteString(l3)
	buf.WriteString(orgID)
	buf.WriteString(">\r\n")
	buf.WriteString(l4)
	buf.WriteString(orgFP)
	buf.WriteString("]\r\n")
	return buf.Bytes(), nil
}

// envelopeValue consumes one "label value<close>\r\n" line, rejecting
// non-printable bytes in the value.
func envelopeValue(in []byte, label string, closer byte) (string, []byte, error) {
	if !bytes.HasPrefix(in, []byte(label)) {
		return "", nil, fmt.Errorf("%w: expected envelope label %q", dime.ErrSchemaViolation, label)
	}
	in = in[len(label):]

	end := bytes.IndexByte(in, closer)
	if end < 0 {
		return "", nil, fmt.Errorf("%w: unterminated envelope value for %q", dime.ErrSchemaViolation, label)
	}
	value := in[:end]
	for _, b := range value {
		if b < 0x21 || b > 0x7E {
			return "", nil, fmt.Errorf("%w: non-printable byte %#x in envelope value", dime.ErrSchemaViolation, b)
		}
	}
	if len(value) == 0 {
		return "", nil, fmt.Errorf("%w: empty envelope value for %q", dime.ErrBadParam, label)
	}

	rest := in[end+1:]
	if !bytes.HasPrefix(rest, []byte("\r\n")) {
		return "", nil, fmt.Errorf("%w: envelope line for %q lacks CRLF", dime.ErrSchemaViolation, label)
	}
	return string(value), rest[2:], nil
}

// parseEnvelope parses an envelope chunk payload, accepting exactly the
// four labeled lines of the requested chunk type in order.
func parseEnvelope(in []byte, typ ChunkType) (*envelopeData, error) {
	l1, l2, l3, l4, err := envelopeLabels(typ)
	if err != nil {
		return nil, err
	}

	result := &envelopeData{}
	if result.userID, in, err = envelopeValue(in, l1, '>'); err != nil {
		return nil, err
	}
	if result.userFP, in, err = envelopeValue(in, l2, ']'); err != nil {
		return nil, err
	}
	if result.orgID, in, err = envelopeValue(in, l3, '>'); err != nil {
		return nil, err
	}
	if result.orgFP, in, err = envelopeValue(in, l4, ']'); err != nil {
		return nil, err
	}
	if len(in) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after envelope fields", dime.ErrSchemaViolation)
	}
	return result, nil
}
