package osc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// Message represents a single OSC message. An OSC message consists of an OSC
// address pattern and zero or more arguments.
type Message struct {
	Address   string
	Arguments []interface{}
}

// Verify that Messages implements the Packet interface.
var _ Packet = (*Message)(nil)

// NewMessage returns a new Message. The address parameter is the OSC address.
func NewMessage(addr string, args ...interface{}) *Message {
	return &Message{Address: addr, Arguments: args}
}

// Append appends the given arguments to the arguments list.
func (m *Message) Append(args ...interface{}) error {
	for _, a := range args {
		if ToTypeTag(a) == TypeInvalid {
			return fmt.Errorf("Append: unsupported type: %T", a)
		}
	}
	m.Arguments = append(m.Arguments, args...)
	return nil
}

// Match returns true, if the OSC address pattern of the OSC Message matches the given
// address. The match is case sensitive!
func (m *Message) Match(addr string) bool {
	p, err := CompilePattern(m.Address)
	if err != nil {
		return false
	}
	return p.Match(addr)
}

// TypeTags returns the type tag string.
func (m *Message) TypeTags() (string, error) {
	if m == nil {
		return "", fmt.Errorf("TypeTags: message is nil")
	}
	return GetTypeTag(m.Arguments)
}

// String implements the fmt.Stringer interface.
func (m *Message) String() string {
	if m == nil {
		return ""
	}

	tags, _ := m.TypeTags()

	var sb strings.Builder
	sb.WriteString(m.Address)
	if len(m.Arguments) == 0 {
		return sb.String()
	}

	sb.WriteByte(' ')
	sb.WriteString(tags)

	for _, arg := range m.Arguments {
		switch arg := arg.(type) {
		case bool, int32, int64, float32, float64, string:
			fmt.Fprintf(&sb, " %v", arg)

		case nil:
			sb.WriteString(" Nil")

		case []byte:
			sb.WriteString(" blob")

		case Timetag:
			fmt.Fprintf(&sb, " %d", uint64(arg))
		}
	}

	return sb.String()
}

// MarshalBinary implements the encoding.BinaryMarshaler interface. The
// result is the padded address, the padded type tag string, then the
// arguments.
func (m *Message) MarshalBinary() ([]byte, error) {
	typetags, err := m.TypeTags()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 64)
	b = appendPaddedString(b, m.Address)
	b = appendPaddedString(b, typetags)

	for _, arg := range m.Arguments {
		switch t := arg.(type) {
		case bool, nil:
			continue
		case int32:
			b = binary.BigEndian.AppendUint32(b, uint32(t))
		case float32:
			b = binary.BigEndian.AppendUint32(b, math.Float32bits(t))
		case int64:
			b = binary.BigEndian.AppendUint64(b, uint64(t))
		case float64:
			b = binary.BigEndian.AppendUint64(b, math.Float64bits(t))
		case string:
			b = appendPaddedString(b, t)
		case []byte:
			b = appendBlob(b, t)
		case Timetag:
			b = binary.BigEndian.AppendUint64(b, uint64(t))
		}
	}

	if len(b) > MaxPacketSize {
		return nil, fmt.Errorf("MarshalBinary: packet too large: %d", len(b))
	}

	return b, nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface. The
// whole of data must be consumed.
func (m *Message) UnmarshalBinary(data []byte) error {
	n, err := m.decode(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("UnmarshalBinary: %d trailing bytes", len(data)-n)
	}
	return nil
}

// AddressOnly reports whether data is exactly one padded address with no
// type tag string after it. A sender that splits a message between datagrams
// can leave this behind at the end of the first one.
func AddressOnly(data []byte) bool {
	if len(data) == 0 || data[0] != '/' {
		return false
	}
	_, n, err := parsePaddedString(data)
	return err == nil && n == len(data)
}

// decode parses a message from the front of data and returns the number of
// bytes consumed.
func (m *Message) decode(data []byte) (int, error) {
	if len(data) == 0 || data[0] != '/' {
		return 0, fmt.Errorf("decode: data not a valid OSC message")
	}

	addr, n, err := parsePaddedString(data)
	if err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	m.Address = addr
	m.Arguments = nil

	// Messages without a type tag string predate OSC 1.0.
	if n == len(data) || data[n] != ',' {
		return n, nil
	}

	an, err := m.readArguments(data[n:])
	if err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}

	return n + an, nil
}

// readArguments reads the type tag string and the arguments it announces,
// returning the number of bytes consumed.
func (m *Message) readArguments(data []byte) (int, error) {
	typetags, n, err := parsePaddedString(data)
	if err != nil {
		return 0, fmt.Errorf("readArguments: %w", err)
	}

	// If the typetag doesn't start with ',', it's not valid
	if len(typetags) == 0 || typetags[0] != ',' {
		return 0, fmt.Errorf("unsupported typetag string: %s", typetags)
	}

	if len(typetags) > 1 {
		m.Arguments = make([]interface{}, 0, len(typetags)-1)
	}

	need := func(size int) error {
		if len(data)-n < size {
			return fmt.Errorf("readArguments: %w", io.ErrUnexpectedEOF)
		}
		return nil
	}

	for _, c := range typetags[1:] {
		switch TypeTag(c) {
		default:
			return 0, fmt.Errorf("unsupported typetag: %c", c)

		case TypeInt32:
			if err := need(bit32Size); err != nil {
				return 0, err
			}
			m.Arguments = append(m.Arguments, int32(binary.BigEndian.Uint32(data[n:])))
			n += bit32Size

		case TypeInt64:
			if err := need(bit64Size); err != nil {
				return 0, err
			}
			m.Arguments = append(m.Arguments, int64(binary.BigEndian.Uint64(data[n:])))
			n += bit64Size

		case TypeFloat32:
			if err := need(bit32Size); err != nil {
				return 0, err
			}
			m.Arguments = append(m.Arguments, math.Float32frombits(binary.BigEndian.Uint32(data[n:])))
			n += bit32Size

		case TypeFloat64:
			if err := need(bit64Size); err != nil {
				return 0, err
			}
			m.Arguments = append(m.Arguments, math.Float64frombits(binary.BigEndian.Uint64(data[n:])))
			n += bit64Size

		case TypeString:
			str, sn, err := parsePaddedString(data[n:])
			if err != nil {
				return 0, fmt.Errorf("readArguments: %w", err)
			}
			m.Arguments = append(m.Arguments, str)
			n += sn

		case TypeBlob:
			blob, bn, err := parseBlob(data[n:])
			if err != nil {
				return 0, fmt.Errorf("readArguments: %w", err)
			}
			m.Arguments = append(m.Arguments, blob)
			n += bn

		case TypeTimeTag:
			if err := need(bit64Size); err != nil {
				return 0, err
			}
			m.Arguments = append(m.Arguments, Timetag(binary.BigEndian.Uint64(data[n:])))
			n += bit64Size

		case TypeNil:
			m.Arguments = append(m.Arguments, nil)

		case TypeTrue:
			m.Arguments = append(m.Arguments, true)

		case TypeFalse:
			m.Arguments = append(m.Arguments, false)
		}
	}

	return n, nil
}
