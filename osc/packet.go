package osc

import (
	"encoding"
	"errors"
	"fmt"
)

// Packet is the interface for Message and Bundle.
type Packet interface {
	encoding.BinaryMarshaler
}

// ErrEmptyPacket is returned when decoding a zero length buffer.
var ErrEmptyPacket = errors.New("osc: empty packet")

// ParsePacket parses an OSC packet that spans the whole of data.
func ParsePacket(data []byte) (Packet, error) {
	p, rest, err := DecodePacket(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("ParsePacket: %d trailing bytes", len(rest))
	}
	return p, nil
}

// DecodePacket parses one OSC packet from the front of data and returns the
// bytes that follow it. A bundle always consumes the rest of data. The
// returned packet never aliases data.
func DecodePacket(data []byte) (Packet, []byte, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyPacket
	}

	switch data[0] {
	case '/':
		m := &Message{}
		n, err := m.decode(data)
		if err != nil {
			return nil, nil, err
		}
		return m, data[n:], nil

	case '#':
		b := &Bundle{}
		if err := b.UnmarshalBinary(data); err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}

	return nil, nil, fmt.Errorf("DecodePacket: invalid packet start byte %#x", data[0])
}
