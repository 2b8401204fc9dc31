package bcontrol

import (
	"fmt"
	"unicode/utf8"
)

// Command is the opcode and payload of a B-Control message. The concrete
// types in this package are the only implementations.
type Command interface {
	Opcode() byte
	appendPayload(b []byte) []byte
}

// Opcodes.
const (
	OpRequestIdentity    = 0x01
	OpIdentity           = 0x02
	OpBclLine            = 0x20
	OpBclReply           = 0x21
	OpSelectPreset       = 0x22
	OpFirmware           = 0x34
	OpFirmwareAck        = 0x35
	OpRequestData        = 0x40
	OpRequestGlobalSetup = 0x41
	OpRequestPresetName  = 0x42
	OpRequestSnapshot    = 0x43
	OpRequestTextMode    = 0x78
)

// presetNameMinLen is the shortest decoded length of a 0x21 message that is
// read as a preset name rather than a BCL acknowledgement.
const presetNameMinLen = 7

// RequestIdentity asks devices to report their identity.
type RequestIdentity struct{}

// Identity is a device's identity report, such as "BCR2000 1.10". ID must be
// ASCII.
type Identity struct {
	ID string
}

// BclLine carries one line of a BCL script. Text must be ASCII.
type BclLine struct {
	Index uint16
	Text  string
}

// PresetName reports the name of a preset. Names shorter than three bytes
// cannot be told apart from a BclAck on the wire. Name must be ASCII.
type PresetName struct {
	Slot PresetSlot
	Name string
}

// BclAck acknowledges a received BclLine. A Code of zero means success.
type BclAck struct {
	Index uint16
	Code  byte
}

// SelectPreset switches the device to a preset. Devices do not confirm it.
type SelectPreset struct {
	Index uint8
}

// Firmware is one chunk of a firmware upload.
type Firmware struct {
	Data []byte
}

// FirmwareAck acknowledges a firmware chunk written at Address.
type FirmwareAck struct {
	Address uint16
	Code    byte
}

// RequestData asks for the BCL dump of a preset.
type RequestData struct {
	Slot PresetSlot
}

// RequestGlobalSetup asks for the BCL dump of the global setup.
type RequestGlobalSetup struct{}

// RequestPresetName asks for the name of a preset.
type RequestPresetName struct {
	Slot PresetSlot
}

// RequestSnapshot asks for the current value of every control.
type RequestSnapshot struct{}

// RequestTextMode switches the device into BCL text mode.
type RequestTextMode struct{}

func (RequestIdentity) Opcode() byte    { return OpRequestIdentity }
func (Identity) Opcode() byte           { return OpIdentity }
func (BclLine) Opcode() byte            { return OpBclLine }
func (PresetName) Opcode() byte         { return OpBclReply }
func (BclAck) Opcode() byte             { return OpBclReply }
func (SelectPreset) Opcode() byte       { return OpSelectPreset }
func (Firmware) Opcode() byte           { return OpFirmware }
func (FirmwareAck) Opcode() byte        { return OpFirmwareAck }
func (RequestData) Opcode() byte        { return OpRequestData }
func (RequestGlobalSetup) Opcode() byte { return OpRequestGlobalSetup }
func (RequestPresetName) Opcode() byte  { return OpRequestPresetName }
func (RequestSnapshot) Opcode() byte    { return OpRequestSnapshot }
func (RequestTextMode) Opcode() byte    { return OpRequestTextMode }

func (RequestIdentity) appendPayload(b []byte) []byte    { return b }
func (RequestGlobalSetup) appendPayload(b []byte) []byte { return b }
func (RequestSnapshot) appendPayload(b []byte) []byte    { return b }
func (RequestTextMode) appendPayload(b []byte) []byte    { return b }

func (c Identity) appendPayload(b []byte) []byte { return append(b, c.ID...) }
func (c Firmware) appendPayload(b []byte) []byte { return append(b, c.Data...) }

func (c BclLine) appendPayload(b []byte) []byte {
	return append(AppendUint14(b, c.Index), c.Text...)
}

func (c PresetName) appendPayload(b []byte) []byte {
	return append(append(b, byte(c.Slot)&0x7f), c.Name...)
}

func (c BclAck) appendPayload(b []byte) []byte {
	return append(AppendUint14(b, c.Index), c.Code&0x7f)
}

func (c SelectPreset) appendPayload(b []byte) []byte {
	return append(b, c.Index&0x7f)
}

func (c FirmwareAck) appendPayload(b []byte) []byte {
	return append(AppendUint14(b, c.Address), c.Code&0x7f)
}

func (c RequestData) appendPayload(b []byte) []byte {
	return append(b, byte(c.Slot)&0x7f)
}

func (c RequestPresetName) appendPayload(b []byte) []byte {
	return append(b, byte(c.Slot)&0x7f)
}

// decodeCommand parses the payload p of opcode op. total is the decoded
// length of the whole message, which selects the meaning of opcode 0x21.
func decodeCommand(op byte, p []byte, total int) (Command, error) {
	switch op {
	case OpRequestIdentity:
		return RequestIdentity{}, nil
	case OpIdentity:
		s, err := text(p)
		return Identity{ID: s}, err
	case OpBclLine:
		idx, err := Uint14(p)
		if err != nil {
			return nil, err
		}
		s, err := text(p[2:])
		return BclLine{Index: idx, Text: s}, err
	case OpBclReply:
		if total >= presetNameMinLen {
			slot, err := decodePresetSlot(p)
			if err != nil {
				return nil, err
			}
			s, err := text(p[1:])
			return PresetName{Slot: slot, Name: s}, err
		}
		idx, code, err := uint14Code(p)
		return BclAck{Index: idx, Code: code}, err
	case OpSelectPreset:
		idx, err := uint7(p)
		return SelectPreset{Index: idx}, err
	case OpFirmware:
		return Firmware{Data: append([]byte(nil), p...)}, nil
	case OpFirmwareAck:
		addr, code, err := uint14Code(p)
		return FirmwareAck{Address: addr, Code: code}, err
	case OpRequestData:
		slot, err := decodePresetSlot(p)
		return RequestData{Slot: slot}, err
	case OpRequestGlobalSetup:
		return RequestGlobalSetup{}, nil
	case OpRequestPresetName:
		slot, err := decodePresetSlot(p)
		return RequestPresetName{Slot: slot}, err
	case OpRequestSnapshot:
		return RequestSnapshot{}, nil
	case OpRequestTextMode:
		return RequestTextMode{}, nil
	}
	return nil, fmt.Errorf("%w: invalid command 0x%02x", ErrMalformed, op)
}

func uint14Code(p []byte) (uint16, byte, error) {
	n, err := Uint14(p)
	if err != nil {
		return 0, 0, err
	}
	code, err := uint7(p[2:])
	return n, code, err
}

func text(p []byte) (string, error) {
	if !utf8.Valid(p) {
		return "", fmt.Errorf("%w: invalid text", ErrMalformed)
	}
	return string(p), nil
}
