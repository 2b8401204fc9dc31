package bcontrol

import (
	"fmt"
	"strconv"
)

// PresetSlot addresses a preset memory: 0 through 31, all presets, or the
// temporary (edit buffer) preset.
type PresetSlot uint8

const (
	// AllPresets selects every preset.
	AllPresets PresetSlot = 0x7e
	// TemporaryPreset selects the edit buffer.
	TemporaryPreset PresetSlot = 0x7f

	maxPresetIndex = 31
)

// Preset returns the slot for preset index n, 0 through 31.
func Preset(n uint8) PresetSlot {
	return PresetSlot(n)
}

// Index reports the preset index of an indexed slot.
func (p PresetSlot) Index() (uint8, bool) {
	if p <= maxPresetIndex {
		return uint8(p), true
	}
	return 0, false
}

func (p PresetSlot) String() string {
	switch p {
	case AllPresets:
		return "all"
	case TemporaryPreset:
		return "temp"
	}
	return strconv.Itoa(int(p))
}

// ParsePresetSlot parses the String form of a slot.
func ParsePresetSlot(s string) (PresetSlot, error) {
	switch s {
	case "all":
		return AllPresets, nil
	case "temp", "temporary":
		return TemporaryPreset, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > maxPresetIndex {
		return 0, fmt.Errorf("invalid preset slot %q", s)
	}
	return PresetSlot(n), nil
}

func decodePresetSlot(b []byte) (PresetSlot, error) {
	v, err := uint7(b)
	if err != nil {
		return 0, err
	}
	switch p := PresetSlot(v); {
	case p <= maxPresetIndex, p == AllPresets, p == TemporaryPreset:
		return p, nil
	}
	return 0, fmt.Errorf("%w: bad preset index %d", ErrMalformed, v)
}
