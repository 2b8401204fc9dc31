package translate

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/osc"
)

// Set is an ordered collection of rules.
type Set struct {
	rules []Rule
}

// NewSet validates rules and returns them as a Set, in the given order.
func NewSet(rules ...Rule) (*Set, error) {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return &Set{rules: append([]Rule(nil), rules...)}, nil
}

// Len returns the number of rules in s.
func (s *Set) Len() int {
	return len(s.rules)
}

// Addresses returns the distinct OSC addresses of the rules in s, in rule
// order.
func (s *Set) Addresses() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range s.rules {
		a, ok := r.(interface{ OSCAddress() string })
		if !ok || seen[a.OSCAddress()] {
			continue
		}
		seen[a.OSCAddress()] = true
		out = append(out, a.OSCAddress())
	}
	return out
}

// MIDIToOSC translates msg with every rule in order. It returns nil if no
// rule applies, the single message if one does, and an immediate bundle
// holding the messages in rule order otherwise.
func (s *Set) MIDIToOSC(msg midi.Message) osc.Packet {
	var msgs []osc.Packet
	for _, r := range s.rules {
		if m, ok := r.MIDIToOSC(msg); ok {
			msgs = append(msgs, m)
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return msgs[0]
	}
	return &osc.Bundle{Timetag: 0, Elements: msgs}
}

// OSCToMIDI translates one OSC message. Its address may be a pattern; every
// rule whose address it selects contributes, in rule order.
func (s *Set) OSCToMIDI(msg *osc.Message) ([]midi.Message, error) {
	pattern, err := osc.CompilePattern(msg.Address)
	if err != nil {
		return nil, fmt.Errorf("translate: address %q: %w", msg.Address, err)
	}
	var out []midi.Message
	for _, r := range s.rules {
		if m, ok := r.OSCToMIDI(pattern, msg.Arguments); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// OSCPacketToMIDI translates a message, or every message of a bundle in
// element order. Messages with unusable addresses are skipped and reported
// in the returned error.
func (s *Set) OSCPacketToMIDI(p osc.Packet) ([]midi.Message, error) {
	switch p := p.(type) {
	case *osc.Message:
		return s.OSCToMIDI(p)
	case *osc.Bundle:
		var (
			out  []midi.Message
			errs []error
		)
		for _, e := range p.Elements {
			msgs, err := s.OSCPacketToMIDI(e)
			if err != nil {
				errs = append(errs, err)
			}
			out = append(out, msgs...)
		}
		return out, errors.Join(errs...)
	}
	return nil, fmt.Errorf("translate: unsupported packet %T", p)
}
