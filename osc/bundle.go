package osc

import (
	"encoding/binary"
	"fmt"
)

const (
	bundleTagString = "#bundle"
)

// Bundle represents an OSC bundle. It consists of the OSC-string "#bundle"
// followed by an OSC Time Tag, followed by zero or more OSC bundle/message
// elements. The OSC-timetag is a 64-bit fixed point time tag. See
// http://opensoundcontrol.org/spec-1_0.html for more information.
type Bundle struct {
	Timetag  Timetag
	Elements []Packet
}

// Verify that Bundle implements the Packet interface.
var _ Packet = (*Bundle)(nil)

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	// Add the '#bundle' string
	buf := appendPaddedString(make([]byte, 0, 64), bundleTagString)

	// Add the time tag
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Timetag))

	// Process all Bundle elements
	for _, m := range b.Elements {
		bb, err := m.MarshalBinary()
		if err != nil {
			return nil, err
		}

		// Write the size of the element
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(bb)))
		buf = append(buf, bb...)
	}

	if len(buf) > MaxPacketSize {
		return nil, fmt.Errorf("MarshalBinary: bundle too large: %d", len(buf))
	}

	return buf, nil
}

// NewBundle returns a bundle holding elements, due immediately.
func NewBundle(elements ...Packet) *Bundle {
	return &Bundle{Timetag: ImmediateTimetag, Elements: elements}
}

// Append appends an OSC bundle or OSC message to the bundle.
func (b *Bundle) Append(pck Packet) error {
	switch t := pck.(type) {
	default:
		return fmt.Errorf("unsupported OSC packet type: only Bundle and Message are supported")

	case *Bundle, *Message:
		b.Elements = append(b.Elements, t)
	}

	return nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (b *Bundle) UnmarshalBinary(data []byte) error {
	if (len(data) % bit32Size) != 0 {
		return fmt.Errorf("UnmarshalBinary: data isn't padded properly")
	}

	if len(data) < 16 {
		return fmt.Errorf("UnmarshalBinary: bundle is too short")
	}

	// Read the '#bundle' OSC string
	startTag, n, err := parsePaddedString(data)
	if err != nil {
		return err
	}
	data = data[n:]

	if startTag != bundleTagString {
		return fmt.Errorf("invalid bundle start tag: %s", startTag)
	}

	b.Timetag = Timetag(binary.BigEndian.Uint64(data[:bit64Size]))
	data = data[bit64Size:]
	b.Elements = nil

	// Read until the end of the buffer
	for len(data) > 0 {
		if len(data) < bit32Size {
			return fmt.Errorf("invalid bundle element header")
		}

		// Read the size of the bundle element
		length := int(binary.BigEndian.Uint32(data[:bit32Size]))
		data = data[bit32Size:]
		if length <= 0 || length > len(data) {
			return fmt.Errorf("invalid bundle element length: %d", length)
		}

		p, err := ParsePacket(data[:length])
		if err != nil {
			return err
		}
		data = data[length:]
		b.Elements = append(b.Elements, p)
	}

	return nil
}
