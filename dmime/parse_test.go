package dmime

import (
	"bytes"
	"errors"
	"testing"

	dime "github.com/darkmail/dime-go"
)

func TestHeadersRoundTrip(t *testing.T) {
	t.Parallel()
	h := &CommonHeaders{
		Date:         "12 minutes ago",
		To:           "Ryan <ryan@lavabit.com>",
		From:         "Ivan <ivan@darkmail.info>",
		Organization: "Lavabit",
		Subject:      "Mr.Watson - Come here - I want to see you",
	}

	formatted, err := formatHeaders(h)
	if err != nil {
		t.Fatalf("formatHeaders() error = %v", err)
	}
	if !bytes.Contains(formatted, []byte("Subject: Mr.Watson - Come here - I want to see you\r\n")) {
		t.Error("formatted headers lack the subject line")
	}

	parsed, err := parseHeaders(formatted)
	if err != nil {
		t.Fatalf("parseHeaders() error = %v", err)
	}
	if *parsed != *h {
		t.Errorf("round trip = %+v, want %+v", parsed, h)
	}
}

func TestHeaders_AnyOrder(t *testing.T) {
	t.Parallel()
	in := []byte("Subject: hi\r\nFrom: a@b.c\r\nDate: now\r\nTo: d@e.f\r\n")
	parsed, err := parseHeaders(in)
	if err != nil {
		t.Fatalf("parseHeaders() error = %v", err)
	}
	if parsed.Subject != "hi" || parsed.To != "d@e.f" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestHeaders_Rejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
	}{
		{"unknown label", "Date: now\r\nTo: a\r\nFrom: b\r\nSubject: c\r\nX-Spam: yes\r\n"},
		{"duplicate", "Date: now\r\nDate: later\r\nTo: a\r\nFrom: b\r\nSubject: c\r\n"},
		{"missing required", "Date: now\r\nTo: a\r\nFrom: b\r\n"},
		{"unterminated", "Date: now\r\nTo: a\r\nFrom: b\r\nSubject: c"},
	}
	for _, tc := range cases {
		if _, err := parseHeaders([]byte(tc.in)); err == nil {
			t.Errorf("%s: parseHeaders accepted %q", tc.name, tc.in)
		}
	}
}

func TestHeaders_MissingRequiredOnFormat(t *testing.T) {
	t.Parallel()
	h := &CommonHeaders{Date: "now", To: "a", From: "b"}
	if _, err := formatHeaders(h); !errors.Is(err, dime.ErrMissingField) {
		t.Errorf("formatHeaders() error = %v, want ErrMissingField", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()
	for _, typ := range []ChunkType{ChunkOrigin, ChunkDestination} {
		formatted, err := formatEnvelope(typ, "ivan@darkmail.info", "lavabit.com", "FPUSER", "FPORG")
		if err != nil {
			t.Fatalf("formatEnvelope(%d) error = %v", typ, err)
		}
		parsed, err := parseEnvelope(formatted, typ)
		if err != nil {
			t.Fatalf("parseEnvelope(%d) error = %v", typ, err)
		}
		if parsed.userID != "ivan@darkmail.info" || parsed.orgID != "lavabit.com" {
			t.Errorf("parsed ids = %q, %q", parsed.userID, parsed.orgID)
		}
		if parsed.userFP != "FPUSER" || parsed.orgFP != "FPORG" {
			t.Errorf("parsed fingerprints = %q, %q", parsed.userFP, parsed.orgFP)
		}
	}
}

func TestEnvelope_TypeMismatch(t *testing.T) {
	t.Parallel()
	formatted, _ := formatEnvelope(ChunkOrigin, "ivan@darkmail.info", "lavabit.com", "FP1", "FP2")
	if _, err := parseEnvelope(formatted, ChunkDestination); err == nil {
		t.Error("parseEnvelope accepted origin labels for a destination chunk")
	}
}

func TestEnvelope_Rejects(t *testing.T) {
	t.Parallel()
	if _, err := parseEnvelope([]byte("Author: <a>\r\n"), ChunkOrigin); err == nil {
		t.Error("parseEnvelope accepted a truncated envelope")
	}

	// Non-printable bytes inside a value.
	bad := []byte("Author: <iv\x01an>\r\nAuthor-Signet: [F]\r\nDestination: <d>\r\nDestination-Signet: [F]\r\n")
	if _, err := parseEnvelope(bad, ChunkOrigin); err == nil {
		t.Error("parseEnvelope accepted a non-printable identifier")
	}

	// Trailing garbage after the four fields.
	formatted, _ := formatEnvelope(ChunkOrigin, "a@b.c", "d.e", "F1", "F2")
	if _, err := parseEnvelope(append(formatted, 'x'), ChunkOrigin); err == nil {
		t.Error("parseEnvelope accepted trailing bytes")
	}

	// Envelope chunks only exist for origin and destination types.
	if _, _, _, _, err := envelopeLabels(ChunkCommonHeaders); !errors.Is(err, dime.ErrUnsupportedType) {
		t.Errorf("envelopeLabels() error = %v, want ErrUnsupportedType", err)
	}
}
