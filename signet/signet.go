package signet

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
)

const (
	// headerSize is the serialized prefix: 2-byte magic + 3-byte body length.
	headerSize = 5
	// maxBodySize is the largest body the 3-byte length prefix can describe.
	maxBodySize = 0xFFFFFF
)

// Signet is an ordered TLV identity document. The zero value is not usable;
// construct with [New] or one of the deserializers.
//
// The body is kept in serialized form at all times. The flight-check index
// maps each field id to the byte offset one past its first occurrence's id
// byte (zero meaning absent), and is rebuilt after every mutation.
type Signet struct {
	typ    Type
	data   []byte
	fields [256]uint32
}

// fieldRef locates one field occurrence inside the body.
type fieldRef struct {
	fid     byte
	start   int // offset of the field id byte
	nameOff int
	nameLen int
	dataOff int
	dataLen int
	end     int // offset one past the occurrence
}

// New returns an empty signet of the given type.
func New(t Type) (*Signet, error) {
	if fieldKeysFor(t) == nil {
		return nil, fmt.Errorf("%w: invalid signet type %d", dime.ErrBadParam, int(t))
	}
	return &Signet{typ: t}, nil
}

// Type returns the signet's type.
func (s *Signet) Type() Type {
	return s.typ
}

// Size returns the body size in bytes, excluding the 5-byte header.
func (s *Signet) Size() int {
	return len(s.data)
}

// Dupe returns a deep copy of the signet.
func (s *Signet) Dupe() *Signet {
	cp := &Signet{typ: s.typ, fields: s.fields}
	cp.data = append([]byte(nil), s.data...)
	return cp
}

// scan walks the body, validating field order, schema membership, and
// length-prefix consistency, and returns one ref per occurrence.
func (s *Signet) scan() ([]fieldRef, error) {
	keys := fieldKeysFor(s.typ)
	if keys == nil {
		return nil, fmt.Errorf("%w: invalid signet type", dime.ErrUnsupportedType)
	}

	var refs []fieldRef
	at := 0
	last := -1
	for at < len(s.data) {
		fid := s.data[at]
		key := keys[fid]
		if key == nil {
			return nil, fmt.Errorf("%w: field id %d is disallowed for %s signets",
				dime.ErrSchemaViolation, fid, s.typ)
		}
		if int(fid) < last {
			return nil, fmt.Errorf("%w: field id %d after %d", dime.ErrFieldOutOfOrder, fid, last)
		}
		if int(fid) == last && key.unique {
			return nil, fmt.Errorf("%w: field id %d", dime.ErrDuplicateUnique, fid)
		}

		ref := fieldRef{fid: fid, start: at}
		at++

		if key.hasName {
			if at >= len(s.data) {
				return nil, fmt.Errorf("%w: truncated name prefix at offset %d", dime.ErrSchemaViolation, at)
			}
			ref.nameLen = int(s.data[at])
			at++
			ref.nameOff = at
			if at+ref.nameLen > len(s.data) {
				return nil, fmt.Errorf("%w: truncated field name at offset %d", dime.ErrSchemaViolation, at)
			}
			at += ref.nameLen
		}

		dlen := key.dataSize
		if key.lenSize > 0 {
			if at+key.lenSize > len(s.data) {
				return nil, fmt.Errorf("%w: truncated length prefix at offset %d", dime.ErrSchemaViolation, at)
			}
			dlen = 0
			for i := 0; i < key.lenSize; i++ {
				dlen = dlen<<8 | int(s.data[at+i])
			}
			at += key.lenSize
		}
		ref.dataOff = at
		ref.dataLen = dlen
		if at+dlen > len(s.data) {
			return nil, fmt.Errorf("%w: field %d data overruns body", dime.ErrSchemaViolation, fid)
		}
		at += dlen
		ref.end = at

		refs = append(refs, ref)
		last = int(fid)
	}
	return refs, nil
}

// reindex rebuilds the flight-check index from the body.
func (s *Signet) reindex() error {
	refs, err := s.scan()
	if err != nil {
		return err
	}
	s.fields = [256]uint32{}
	for _, r := range refs {
		if s.fields[r.fid] == 0 {
			s.fields[r.fid] = uint32(r.start) + 1
		}
	}
	return nil
}

// FidExists reports whether at least one occurrence of fid is present.
func (s *Signet) FidExists(fid byte) bool {
	return s.fields[fid] != 0
}

// FidCount returns the number of occurrences of fid.
func (s *Signet) FidCount(fid byte) int {
	if s.fields[fid] == 0 {
		return 0
	}
	refs, err := s.scan()
	if err != nil {
		return 0
	}
	n := 0
	for _, r := range refs {
		if r.fid == fid {
			n++
		}
	}
	return n
}

// FidNumFetch returns a copy of the payload of the num-th (1-based)
// occurrence of fid.
func (s *Signet) FidNumFetch(fid byte, num int) ([]byte, error) {
	if num < 1 {
		return nil, fmt.Errorf("%w: field instance numbers are 1-based", dime.ErrBadParam)
	}
	refs, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if r.fid != fid {
			continue
		}
		if num--; num == 0 {
			return append([]byte(nil), s.data[r.dataOff:r.dataOff+r.dataLen]...), nil
		}
	}
	return nil, fmt.Errorf("%w: field id %d", dime.ErrMissingField, fid)
}

// FidNumRemove removes the num-th (1-based) occurrence of fid.
func (s *Signet) FidNumRemove(fid byte, num int) error {
	if num < 1 {
		return fmt.Errorf("%w: field instance numbers are 1-based", dime.ErrBadParam)
	}
	refs, err := s.scan()
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.fid != fid {
			continue
		}
		if num--; num == 0 {
			s.data = append(s.data[:r.start], s.data[r.end:]...)
			return s.reindex()
		}
	}
	return fmt.Errorf("%w: field id %d", dime.ErrMissingField, fid)
}

// removeAll removes every occurrence of fid.
func (s *Signet) removeAll(fid byte) error {
	for s.FidExists(fid) {
		if err := s.FidNumRemove(fid, 1); err != nil {
			return err
		}
	}
	return nil
}

// fieldSerial builds the wire bytes of one field occurrence, enforcing the
// schema's name and length limits.
func (s *Signet) fieldSerial(fid byte, name, data []byte) ([]byte, error) {
	keys := fieldKeysFor(s.typ)
	key := keys[fid]
	if key == nil {
		return nil, fmt.Errorf("%w: field id %d is disallowed for %s signets",
			dime.ErrSchemaViolation, fid, s.typ)
	}

	var buf bytes.Buffer
	buf.WriteByte(fid)

	if key.hasName {
		if len(name) == 0 || len(name) > 0xFF {
			return nil, fmt.Errorf("%w: field name length %d", dime.ErrSizeViolation, len(name))
		}
		buf.WriteByte(byte(len(name)))
		buf.Write(name)
	} else if len(name) != 0 {
		return nil, fmt.Errorf("%w: field id %d carries no name", dime.ErrBadParam, fid)
	}

	switch key.lenSize {
	case 0:
		if len(data) != key.dataSize {
			return nil, fmt.Errorf("%w: field id %d payload must be %d bytes, got %d",
				dime.ErrSizeViolation, fid, key.dataSize, len(data))
		}
	default:
		if len(data) >= 1<<(8*key.lenSize) {
			return nil, fmt.Errorf("%w: field id %d payload of %d bytes exceeds its %d-byte length prefix",
				dime.ErrSizeViolation, fid, len(data), key.lenSize)
		}
		for i := key.lenSize - 1; i >= 0; i-- {
			buf.WriteByte(byte(len(data) >> (8 * i)))
		}
	}
	buf.Write(data)

	return buf.Bytes(), nil
}

// insertField splices serial into the body at the position that keeps field
// ids nondecreasing (after any existing occurrences of the same id).
func (s *Signet) insertField(fid byte, serial []byte) error {
	if len(s.data)+len(serial) > maxBodySize {
		return fmt.Errorf("%w: signet would exceed %d bytes", dime.ErrSizeViolation, maxBodySize)
	}
	refs, err := s.scan()
	if err != nil {
		return err
	}
	pos := len(s.data)
	for _, r := range refs {
		if r.fid > fid {
			pos = r.start
			break
		}
	}
	grown := make([]byte, 0, len(s.data)+len(serial))
	grown = append(grown, s.data[:pos]...)
	grown = append(grown, serial...)
	grown = append(grown, s.data[pos:]...)
	s.data = grown
	return s.reindex()
}

// FieldDefinedCreate appends a defined (schema-described) field. Creating a
// second instance of a unique field fails.
func (s *Signet) FieldDefinedCreate(fid byte, data []byte) error {
	keys := fieldKeysFor(s.typ)
	if keys[fid] == nil {
		return fmt.Errorf("%w: field id %d is disallowed for %s signets",
			dime.ErrSchemaViolation, fid, s.typ)
	}
	if keys[fid].hasName {
		return fmt.Errorf("%w: field id %d requires a name; use FieldUndefinedCreate",
			dime.ErrBadParam, fid)
	}
	if keys[fid].unique && s.FidExists(fid) {
		return fmt.Errorf("%w: field id %d", dime.ErrDuplicateUnique, fid)
	}
	serial, err := s.fieldSerial(fid, nil, data)
	if err != nil {
		return err
	}
	return s.insertField(fid, serial)
}

// FieldDefinedSet replaces every existing instance of fid with the given
// payload, creating the field if absent.
func (s *Signet) FieldDefinedSet(fid byte, data []byte) error {
	keys := fieldKeysFor(s.typ)
	if keys[fid] == nil {
		return fmt.Errorf("%w: field id %d is disallowed for %s signets",
			dime.ErrSchemaViolation, fid, s.typ)
	}
	serial, err := s.fieldSerial(fid, nil, data)
	if err != nil {
		return err
	}
	if err := s.removeAll(fid); err != nil {
		return err
	}
	return s.insertField(fid, serial)
}

// undefinedFid returns the free-form name/value field id for the signet
// type, or 0 when the type carries none.
func (s *Signet) undefinedFid() byte {
	switch s.typ {
	case TypeOrg:
		return FidOrgUndefined
	case TypeUser:
		return FidUserUndefined
	}
	return 0
}

// FieldUndefinedCreate appends a free-form name/value field.
func (s *Signet) FieldUndefinedCreate(name, data []byte) error {
	fid := s.undefinedFid()
	if fid == 0 {
		return fmt.Errorf("%w: %s signets carry no undefined fields", dime.ErrSchemaViolation, s.typ)
	}
	serial, err := s.fieldSerial(fid, name, data)
	if err != nil {
		return err
	}
	return s.insertField(fid, serial)
}

// FieldUndefinedFetch returns a copy of the payload of the first undefined
// field with the given name.
func (s *Signet) FieldUndefinedFetch(name []byte) ([]byte, error) {
	fid := s.undefinedFid()
	if fid == 0 {
		return nil, fmt.Errorf("%w: %s signets carry no undefined fields", dime.ErrSchemaViolation, s.typ)
	}
	refs, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		if r.fid != fid {
			continue
		}
		if bytes.Equal(s.data[r.nameOff:r.nameOff+r.nameLen], name) {
			return append([]byte(nil), s.data[r.dataOff:r.dataOff+r.dataLen]...), nil
		}
	}
	return nil, fmt.Errorf("%w: undefined field %q", dime.ErrMissingField, name)
}

// FieldUndefinedRemove removes the first undefined field with the given name.
func (s *Signet) FieldUndefinedRemove(name []byte) error {
	fid := s.undefinedFid()
	if fid == 0 {
		return fmt.Errorf("%w: %s signets carry no undefined fields", dime.ErrSchemaViolation, s.typ)
	}
	refs, err := s.scan()
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.fid != fid {
			continue
		}
		if bytes.Equal(s.data[r.nameOff:r.nameOff+r.nameLen], name) {
			s.data = append(s.data[:r.start], s.data[r.end:]...)
			return s.reindex()
		}
	}
	return fmt.Errorf("%w: undefined field %q", dime.ErrMissingField, name)
}

// dataBeforeFid returns the body prefix holding every field with an id
// strictly below fid. That prefix is the input to the fid's signature.
func (s *Signet) dataBeforeFid(fid byte) ([]byte, error) {
	refs, err := s.scan()
	if err != nil {
		return nil, err
	}
	end := len(s.data)
	for _, r := range refs {
		if r.fid >= fid {
			end = r.start
			break
		}
	}
	return s.data[:end], nil
}

// dataThroughFid returns the body prefix through the last occurrence of fid.
func (s *Signet) dataThroughFid(fid byte) ([]byte, error) {
	refs, err := s.scan()
	if err != nil {
		return nil, err
	}
	end := -1
	for _, r := range refs {
		if r.fid == fid {
			end = r.end
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("%w: field id %d", dime.ErrMissingField, fid)
	}
	return s.data[:end], nil
}
