package dmime

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
)

// CommonHeaders carries the six well-known message headers. Date, To, From,
// and Subject are required; CC and Organization are optional.
type CommonHeaders struct {
	Date         string
	To           string
	CC           string
	From         string
	Organization string
	Subject      string
}

// headerKey pairs a header label with its presence rule. The table is
// read-only after init.
type headerKey struct {
	label    string
	required bool
	get      func(*CommonHeaders) *string
}

var headerKeys = []headerKey{
	{"Date: ", true, func(h *CommonHeaders) *string { return &h.Date }},
	{"To: ", true, func(h *CommonHeaders) *string { return &h.To }},
	{"CC: ", false, func(h *CommonHeaders) *string { return &h.CC }},
	{"From: ", true, func(h *CommonHeaders) *string { return &h.From }},
	{"Organization: ", false, func(h *CommonHeaders) *string { return &h.Organization }},
	{"Subject: ", true, func(h *CommonHeaders) *string { return &h.Subject }},
}

// formatHeaders emits the populated headers as "Label: value\r\n" lines in
// table order, erroring on a missing required header.
func formatHeaders(h *CommonHeaders) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil common headers", dime.ErrBadParam)
	}
	var buf bytes.Buffer
	for _, key := range headerKeys {
		value := *key.get(h)
		if value == "" {
			if key.required {
				return nil, fmt.Errorf("%w: common header %q", dime.ErrMissingField,
					key.label[:len(key.label)-2])
			}
			continue
		}
		buf.WriteString(key.label)
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}
	return buf.Bytes(), nil
}

// parseHeaders consumes "Label: value\r\n" lines in any order, rejecting
// duplicates, unknown labels, and missing required headers.
func parseHeaders(in []byte) (*CommonHeaders, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: empty headers chunk", dime.ErrBadParam)
	}

	result := &CommonHeaders{}
	seen := make([]bool, len(headerKeys))
	at := 0
	for at < len(in) {
		matched := -1
		for i, key := range headerKeys {
			if bytes.HasPrefix(in[at:], []byte(key.label)) {
				matched = i
				break
			}
		}
		if matched < 0 {
			return nil, fmt.Errorf("%w: unknown common header at offset %d", dime.ErrSchemaViolation, at)
		}
		if seen[matched] {
			return nil, fmt.Errorf("%w: duplicate common header %q", dime.ErrSchemaViolation,
				headerKeys[matched].label[:len(headerKeys[matched].label)-2])
		}
		seen[matched] = true
		at += len(headerKeys[matched].label)

		end := bytes.Index(in[at:], []byte("\r\n"))
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated common header line", dime.ErrSchemaViolation)
		}
		*headerKeys[matched].get(result) = string(in[at : at+end])
		at += end + 2
	}

	for i, key := range headerKeys {
		if key.required && !seen[i] {
			return nil, fmt.Errorf("%w: common header %q", dime.ErrMissingField,
				key.label[:len(key.label)-2])
		}
	}
	return result, nil
}
