package dmime

import (
	"bytes"
	"fmt"

	dime "github.com/darkmail/dime-go"
)

// Serialize emits the wire form of the message: an optional tracing record,
// the encrypted-message magic, a 4-byte total chunk length, and the chunks
// of the selected sections in ascending type order.
func (m *Message) Serialize(sections Section, tracing bool) ([]byte, error) {
	if sections == 0 {
		return nil, fmt.Errorf("%w: no sections selected", dime.ErrBadParam)
	}
	chunks := m.chunksInSections(sections)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: selected sections are empty", dime.ErrMissingChunk)
	}

	total := 0
	for _, c := range chunks {
		total += c.serialSize()
	}
	if total > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: message of %d bytes", dime.ErrSizeViolation, total)
	}

	var buf bytes.Buffer
	if tracing && len(m.tracing) > 0 {
		buf.WriteByte(byte(uint16(dime.NumberMsgTracing) >> 8))
		buf.WriteByte(byte(uint16(dime.NumberMsgTracing) & 0xFF))
		buf.WriteByte(byte(len(m.tracing) >> 8))
		buf.WriteByte(byte(len(m.tracing)))
		buf.Write(m.tracing)
	}

	buf.WriteByte(byte(uint16(dime.NumberEncryptedMsg) >> 8))
	buf.WriteByte(byte(uint16(dime.NumberEncryptedMsg) & 0xFF))
	buf.WriteByte(byte(total >> 24))
	buf.WriteByte(byte(total >> 16))
	buf.WriteByte(byte(total >> 8))
	buf.WriteByte(byte(total))
	for _, c := range chunks {
		c.serialize(&buf)
	}
	return buf.Bytes(), nil
}

// Deserialize parses a wire message. Chunks must appear in ascending type
// order (display and attachment chunks may repeat), unique chunks at most
// once, and every keyslot count must agree with the chunk-key table.
func Deserialize(in []byte) (*Message, error) {
	if len(in) < 2 {
		return nil, fmt.Errorf("%w: input shorter than a DIME magic", dime.ErrBadParam)
	}

	m := &Message{}
	at := 0

	if dime.Number(uint16(in[0])<<8|uint16(in[1])) == dime.NumberMsgTracing {
		if len(in) < 4 {
			return nil, fmt.Errorf("%w: truncated tracing record", dime.ErrSizeViolation)
		}
		traceLen := int(in[2])<<8 | int(in[3])
		at = 4
		if at+traceLen > len(in) {
			return nil, fmt.Errorf("%w: tracing record overruns input", dime.ErrSizeViolation)
		}
		m.tracing = append([]byte(nil), in[at:at+traceLen]...)
		at += traceLen
	}

	if at+6 > len(in) {
		return nil, fmt.Errorf("%w: input shorter than the message header", dime.ErrSizeViolation)
	}
	if dime.Number(uint16(in[at])<<8|uint16(in[at+1])) != dime.NumberEncryptedMsg {
		return nil, fmt.Errorf("%w: invalid encrypted message magic", dime.ErrUnsupportedType)
	}
	at += 2
	total := int(in[at])<<24 | int(in[at+1])<<16 | int(in[at+2])<<8 | int(in[at+3])
	at += 4
	if at+total != len(in) {
		return nil, fmt.Errorf("%w: header declares %d chunk bytes, input carries %d",
			dime.ErrSizeViolation, total, len(in)-at)
	}

	lastType := -1
	for at < len(in) {
		typ := ChunkType(in[at])
		key := typeKey(typ)
		if key == nil {
			return nil, fmt.Errorf("%w: chunk type %d", dime.ErrUnsupportedType, typ)
		}
		if int(typ) < lastType {
			return nil, fmt.Errorf("%w: chunk type %d after %d", dime.ErrChunkOutOfOrder, typ, lastType)
		}
		if int(typ) == lastType && !key.sequential {
			return nil, fmt.Errorf("%w: repeated unique chunk type %d", dime.ErrDuplicateUnique, typ)
		}

		c, n, err := deserializeChunk(in[at:])
		if err != nil {
			return nil, err
		}
		at += n
		lastType = int(typ)

		switch typ {
		case ChunkDisplayContent:
			m.display = append(m.display, c)
		case ChunkAttachContent:
			m.attach = append(m.attach, c)
		default:
			assigned := false
			for _, slot := range m.chunkSlots() {
				if slot.typ != typ {
					continue
				}
				if *slot.slot != nil {
					return nil, fmt.Errorf("%w: repeated unique chunk type %d", dime.ErrDuplicateUnique, typ)
				}
				*slot.slot = c
				assigned = true
				break
			}
			if !assigned {
				return nil, fmt.Errorf("%w: chunk type %d", dime.ErrUnsupportedType, typ)
			}
		}
	}

	m.classify()
	return m, nil
}
