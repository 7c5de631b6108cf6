package signet

import (
	"fmt"
	"os"
	"strings"

	dime "github.com/darkmail/dime-go"
	"github.com/darkmail/dime-go/internal/armor"
)

// Serialize produces the on-wire binary form: 2-byte magic, 3-byte body
// length, body.
func (s *Signet) Serialize() ([]byte, error) {
	num, ok := s.typ.Number()
	if !ok {
		return nil, fmt.Errorf("%w: invalid signet type", dime.ErrUnsupportedType)
	}
	if len(s.data) > maxBodySize {
		return nil, fmt.Errorf("%w: signet body of %d bytes", dime.ErrSizeViolation, len(s.data))
	}
	serial := make([]byte, 0, headerSize+len(s.data))
	serial = append(serial, byte(uint16(num)>>8), byte(uint16(num)))
	serial = append(serial, byte(len(s.data)>>16), byte(len(s.data)>>8), byte(len(s.data)))
	serial = append(serial, s.data...)
	return serial, nil
}

// Deserialize parses the on-wire binary form, verifying that the header
// length matches the tail and that fields occur in schema order.
func Deserialize(in []byte) (*Signet, error) {
	if len(in) < headerSize {
		return nil, fmt.Errorf("%w: input shorter than the signet header", dime.ErrBadParam)
	}

	var typ Type
	switch dime.Number(uint16(in[0])<<8 | uint16(in[1])) {
	case dime.NumberOrgSignet:
		typ = TypeOrg
	case dime.NumberUserSignet:
		typ = TypeUser
	case dime.NumberSSR:
		typ = TypeSSR
	default:
		return nil, fmt.Errorf("%w: input is not a signet", dime.ErrUnsupportedType)
	}

	bodyLen := int(in[2])<<16 | int(in[3])<<8 | int(in[4])
	if len(in)-headerSize != bodyLen {
		return nil, fmt.Errorf("%w: header declares %d body bytes, input carries %d",
			dime.ErrSizeViolation, bodyLen, len(in)-headerSize)
	}

	s := &Signet{typ: typ}
	s.data = append([]byte(nil), in[headerSize:]...)
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

// B64Serialize returns the bare base64 form of the binary serialization.
func (s *Signet) B64Serialize() (string, error) {
	serial, err := s.Serialize()
	if err != nil {
		return "", err
	}
	return armor.EncodeB64(serial), nil
}

// B64Deserialize parses the bare base64 form.
func B64Deserialize(in string) (*Signet, error) {
	serial, err := armor.DecodeB64(in)
	if err != nil {
		return nil, err
	}
	return Deserialize(serial)
}

// armorLabel returns the PEM label for the signet type.
func (s *Signet) armorLabel() string {
	num, _ := s.typ.Number()
	return num.String()
}

// Armor returns the PEM-armored form with the type's label and a trailing
// CRC-24 checksum line.
func (s *Signet) Armor() (string, error) {
	serial, err := s.Serialize()
	if err != nil {
		return "", err
	}
	return armor.Encode(s.armorLabel(), serial)
}

// FileCreate writes the armored signet to path.
func (s *Signet) FileCreate(path string) error {
	armored, err := s.Armor()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(armored), 0o600); err != nil {
		return fmt.Errorf("write signet file: %w", err)
	}
	return nil
}

// Unarmor parses a PEM-armored signet, accepting any of the three labels.
func Unarmor(armored string) (*Signet, error) {
	label := ""
	for _, candidate := range []dime.Number{
		dime.NumberOrgSignet, dime.NumberUserSignet, dime.NumberSSR,
	} {
		if strings.Contains(armored, "-----BEGIN "+candidate.String()+"-----") {
			label = candidate.String()
			break
		}
	}
	if label == "" {
		return nil, fmt.Errorf("%w: input carries no signet armor header", dime.ErrEncoding)
	}
	serial, err := armor.Decode(label, armored)
	if err != nil {
		return nil, err
	}
	s, err := Deserialize(serial)
	if err != nil {
		return nil, err
	}
	if s.armorLabel() != label {
		return nil, fmt.Errorf("%w: armor label %q does not match signet type %s",
			dime.ErrEncoding, label, s.typ)
	}
	return s, nil
}

// Load reads and parses an armored signet file.
func Load(path string) (*Signet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signet file: %w", err)
	}
	return Unarmor(string(raw))
}
