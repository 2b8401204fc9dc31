package bcontrol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

var (
	// ErrMalformed is returned when SysEx bytes do not form a valid
	// B-Control message. Callers drop the offending message.
	ErrMalformed = errors.New("bcontrol: malformed sysex")

	// ErrNotBControl is returned by FromMIDI for messages that are not
	// Behringer system exclusive messages.
	ErrNotBControl = errors.New("bcontrol: not a Behringer sysex")
)

// Behringer is Behringer's extended MIDI manufacturer ID.
var Behringer = []byte{0x00, 0x20, 0x32}

const eox = 0xf7

// Device is a B-Control device number. Each controller answers queries
// addressed to its own number, 0 through 15, or to AnyDevice. Front panels
// and editors usually show the numbers as 1 through 16.
type Device uint8

// AnyDevice addresses every device.
const AnyDevice Device = 0x7f

const maxDevice = 15

// Matches reports whether a message carrying d concerns device n.
func (d Device) Matches(n uint8) bool {
	return d == AnyDevice || uint8(d) == n
}

func (d Device) String() string {
	if d == AnyDevice {
		return "any"
	}
	return strconv.Itoa(int(d))
}

func (d Device) wire() byte {
	if d == AnyDevice {
		return byte(AnyDevice)
	}
	return byte(min(d, maxDevice))
}

// Model selects the B-Control model a message is addressed to, or reports
// the model that sent it.
type Model uint8

// B-Control models.
const (
	BCF      Model = 0x14
	BCR      Model = 0x15
	AnyModel Model = 0x7f
)

func (m Model) String() string {
	switch m {
	case BCR:
		return "BCR"
	case BCF:
		return "BCF"
	}
	return "?"
}

// ParseModel parses a model name: bcr, bcf or any, in any case.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(s) {
	case "bcr", "bcr2000":
		return BCR, nil
	case "bcf", "bcf2000":
		return BCF, nil
	case "any":
		return AnyModel, nil
	}
	return 0, fmt.Errorf("unknown model %q", s)
}

// Message is one B-Control system exclusive message.
type Message struct {
	Device  Device
	Model   Model
	Command Command
}

// Encode returns the SysEx payload of m, without the SysEx framing and
// manufacturer ID. It panics if m has no Command, if m.Model is not a known
// model, if a 14-bit field overflows, or if the payload holds a byte above
// 0x7f. Check text with CheckText first.
func (m Message) Encode() []byte {
	return m.AppendEncode(nil)
}

// AppendEncode appends the SysEx payload of m to b.
func (m Message) AppendEncode(b []byte) []byte {
	switch m.Model {
	case BCF, BCR, AnyModel:
	default:
		panic(fmt.Sprintf("bcontrol: invalid model 0x%02x", byte(m.Model)))
	}
	if m.Command == nil {
		panic("bcontrol: message without command")
	}
	b = append(b, m.Device.wire(), byte(m.Model), m.Command.Opcode())
	start := len(b)
	b = m.Command.appendPayload(b)
	for i, c := range b[start:] {
		if c > 0x7f {
			panic(fmt.Sprintf("bcontrol: %T payload byte %d is 0x%02x", m.Command, i, c))
		}
	}
	return b
}

// CheckText reports an error if s cannot be carried in a text field. System
// exclusive data is 7-bit, so only ASCII is allowed.
func CheckText(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return fmt.Errorf("bcontrol: non-ASCII byte 0x%02x at offset %d in %q", s[i], i, s)
		}
	}
	return nil
}

// Decode parses a SysEx payload as produced by Encode. A single trailing
// end-of-exclusive byte is ignored.
func Decode(data []byte) (Message, error) {
	if n := len(data); n > 0 && data[n-1] == eox {
		data = data[:n-1]
	}
	if len(data) < 3 {
		return Message{}, fmt.Errorf("%w: unexpected end", ErrMalformed)
	}

	var m Message
	switch d := Device(data[0]); {
	case d <= maxDevice, d == AnyDevice:
		m.Device = d
	default:
		return Message{}, fmt.Errorf("%w: invalid device id %d", ErrMalformed, data[0])
	}
	switch md := Model(data[1]); md {
	case BCF, BCR, AnyModel:
		m.Model = md
	default:
		return Message{}, fmt.Errorf("%w: bad model number 0x%02x", ErrMalformed, data[1])
	}

	cmd, err := decodeCommand(data[2], data[3:], len(data))
	if err != nil {
		return Message{}, err
	}
	m.Command = cmd
	return m, nil
}

// MIDI returns m as a complete system exclusive MIDI message.
func (m Message) MIDI() midi.Message {
	return midi.SysEx(m.AppendEncode(append([]byte(nil), Behringer...)))
}

// FromMIDI decodes a B-Control message from a system exclusive MIDI message.
// It returns ErrNotBControl for any other message.
func FromMIDI(msg midi.Message) (Message, error) {
	var data []byte
	if !msg.GetSysEx(&data) || !bytes.HasPrefix(data, Behringer) {
		return Message{}, ErrNotBControl
	}
	return Decode(data[len(Behringer):])
}
