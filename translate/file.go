package translate

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a rule set. Channels are numbered 1 through 16,
// as on the devices' front panels.
//
//	rules:
//	  - type: range
//	    address: /encoder/1
//	    channel: 1
//	    controller: 1
//	  - type: bool
//	    address: /key/1
//	    channel: 1
//	    controller: 0x41
type File struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec describes one rule. Range rules use Low and High, bool rules Off
// and On; the upper bound defaults to 127.
type RuleSpec struct {
	Type        string  `yaml:"type"`
	Address     string  `yaml:"address"`
	Channel     uint8   `yaml:"channel"`
	Controller  uint8   `yaml:"controller"`
	Controllers []uint8 `yaml:"controllers,omitempty"`
	Low         uint8   `yaml:"low,omitempty"`
	High        *uint8  `yaml:"high,omitempty"`
	Off         uint8   `yaml:"off,omitempty"`
	On          *uint8  `yaml:"on,omitempty"`
}

// Rule builds the rule described by s.
func (s RuleSpec) Rule() (Rule, error) {
	if s.Channel < 1 || s.Channel > 16 {
		return nil, fmt.Errorf("%w: channel %d not in 1..16", ErrInvalidRule, s.Channel)
	}
	ch := s.Channel - 1

	var controls Control
	if len(s.Controllers) > 0 {
		controls = Controllers(s.Controllers...)
	}

	switch s.Type {
	case "range":
		r := NewRangeRule(ch, s.Controller, s.Low, orMax(s.High), s.Address)
		if controls != nil {
			r = r.WithControls(controls)
		}
		return r, r.Validate()
	case "bool":
		r := NewBoolRule(ch, s.Controller, s.Off, orMax(s.On), s.Address)
		if controls != nil {
			r = r.WithControls(controls)
		}
		return r, r.Validate()
	}
	return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, s.Type)
}

func orMax(v *uint8) uint8 {
	if v == nil {
		return 127
	}
	return *v
}

// Load reads a YAML rule file.
func Load(r io.Reader) (*Set, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("translate: parsing rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, spec := range f.Rules {
		r, err := spec.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.Address, err)
		}
		rules = append(rules, r)
	}
	return NewSet(rules...)
}

// LoadFile reads the YAML rule file at path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the rules for the stock surface: encoder 1 as /encoder/1
// and the first button as /key/1, both on channel 1.
func Default() *Set {
	return &Set{rules: []Rule{
		NewRangeRule(0, 1, 0, 127, "/encoder/1"),
		NewBoolRule(0, 0x41, 0, 127, "/key/1"),
	}}
}
