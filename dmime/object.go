package dmime

import (
	"fmt"
	"io"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/crypto"
	"github.com/darkmail/dime-go/signet"
)

// ObjectState is the lifecycle of a draft object.
type ObjectState int

const (
	// ObjectStateNone is an uninitialized draft.
	ObjectStateNone ObjectState = iota
	// ObjectStateCreation is a draft under construction.
	ObjectStateCreation
	// ObjectStateLoadedEnvelope holds decrypted envelope identifiers but no
	// signets.
	ObjectStateLoadedEnvelope
	// ObjectStateLoadedSignets has the signets its actor requires attached.
	ObjectStateLoadedSignets
	// ObjectStateIncompleteEnvelope is missing envelope identifiers or
	// signets.
	ObjectStateIncompleteEnvelope
	// ObjectStateIncompleteMetadata is missing required common headers.
	ObjectStateIncompleteMetadata
	// ObjectStateComplete is ready to encrypt, or fully decrypted.
	ObjectStateComplete
)

// String returns the state name.
func (s ObjectState) String() string {
	switch s {
	case ObjectStateCreation:
		return "creation"
	case ObjectStateLoadedEnvelope:
		return "loaded envelope"
	case ObjectStateLoadedSignets:
		return "loaded signets"
	case ObjectStateIncompleteEnvelope:
		return "incomplete envelope"
	case ObjectStateIncompleteMetadata:
		return "incomplete metadata"
	case ObjectStateComplete:
		return "complete"
	}
	return "none"
}

// ObjectChunk is one unit of display or attachment content in a draft.
type ObjectChunk struct {
	Type  ChunkType
	Data  []byte
	Flags byte
}

// NewObjectChunk copies data into a fresh content chunk for a draft's
// display or attachment list.
func NewObjectChunk(typ ChunkType, data []byte, flags byte) (*ObjectChunk, error) {
	if typ != ChunkDisplayContent && typ != ChunkAttachContent {
		return nil, fmt.Errorf("%w: chunk type %d is not message content", dime.ErrBadParam, typ)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content chunk", dime.ErrBadParam)
	}
	return &ObjectChunk{Type: typ, Data: append([]byte(nil), data...), Flags: flags}, nil
}

// Destroy wipes the chunk's content.
func (c *ObjectChunk) Destroy() {
	if c == nil {
		return
	}
	crypto.Wipe(c.Data)
	c.Data = nil
}

// Object is the mutable authoring and decryption structure: the four
// identifiers and signet references, parsed headers, and ordered content
// lists. Signets are held by reference; an Object never mutates them.
type Object struct {
	Actor dime.Actor

	// The author's and recipient's addresses, and the two domains.
	Author      string
	Recipient   string
	Origin      string
	Destination string

	// Cryptographic signet fingerprints for each party.
	FPAuthor      string
	FPRecipient   string
	FPOrigin      string
	FPDestination string

	SignetAuthor      *signet.Signet
	SignetRecipient   *signet.Signet
	SignetOrigin      *signet.Signet
	SignetDestination *signet.Signet

	CommonHeaders *CommonHeaders
	OtherHeaders  []byte

	Display []*ObjectChunk
	Attach  []*ObjectChunk

	state ObjectState
}

// State returns the draft's current state.
func (o *Object) State() ObjectState {
	return o.state
}

// StateInit classifies a draft by what it carries and records the result.
// An authoring draft needs all four identifiers, fingerprints, and signets
// plus the required common headers to reach ObjectStateComplete.
func (o *Object) StateInit() ObjectState {
	if o.Author == "" || o.SignetAuthor == nil || o.FPAuthor == "" ||
		o.Recipient == "" || o.SignetRecipient == nil || o.FPRecipient == "" ||
		o.Origin == "" || o.SignetOrigin == nil || o.FPOrigin == "" ||
		o.Destination == "" || o.SignetDestination == nil || o.FPDestination == "" {
		o.state = ObjectStateIncompleteEnvelope
		return o.state
	}
	if o.CommonHeaders == nil {
		o.state = ObjectStateIncompleteMetadata
		return o.state
	}
	if _, err := formatHeaders(o.CommonHeaders); err != nil {
		o.state = ObjectStateIncompleteMetadata
		return o.state
	}
	o.state = ObjectStateComplete
	return o.state
}

// Destroy wipes the draft's content chunks and other headers. Signets are
// borrowed and left untouched.
func (o *Object) Destroy() {
	if o == nil {
		return
	}
	for _, c := range o.Display {
		c.Destroy()
	}
	for _, c := range o.Attach {
		c.Destroy()
	}
	o.Display, o.Attach = nil, nil
	crypto.Wipe(o.OtherHeaders)
	o.OtherHeaders = nil
	o.state = ObjectStateNone
}

// Dump writes a human-readable draft listing to w. Debug aid only.
func (o *Object) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s draft, state %s\n", o.Actor, o.state)
	fmt.Fprintf(w, "  author      : %s [%s]\n", o.Author, o.FPAuthor)
	fmt.Fprintf(w, "  origin      : %s [%s]\n", o.Origin, o.FPOrigin)
	fmt.Fprintf(w, "  destination : %s [%s]\n", o.Destination, o.FPDestination)
	fmt.Fprintf(w, "  recipient   : %s [%s]\n", o.Recipient, o.FPRecipient)
	if o.CommonHeaders != nil {
		if formatted, err := formatHeaders(o.CommonHeaders); err == nil {
			fmt.Fprintf(w, "  headers     :\n%s", formatted)
		}
	}
	for i, c := range o.Display {
		fmt.Fprintf(w, "  display %d   : %d bytes\n", i+1, len(c.Data))
	}
	for i, c := range o.Attach {
		fmt.Fprintf(w, "  attach %d    : %d bytes\n", i+1, len(c.Data))
	}
}
