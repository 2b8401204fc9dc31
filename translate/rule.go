// Package translate maps OSC addresses to MIDI Control Change messages and
// back.
//
// A Rule binds one OSC address to one MIDI controller on one channel. A Set
// is an ordered, read-only collection of rules that is safe for concurrent
// use once built.
package translate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/osc"
)

// ErrInvalidRule is returned for rules that cannot translate anything.
var ErrInvalidRule = errors.New("translate: invalid rule")

// Rule translates in both directions between one OSC address and one MIDI
// controller.
type Rule interface {
	// MIDIToOSC returns the OSC message for msg, if the rule applies.
	MIDIToOSC(msg midi.Message) (*osc.Message, bool)
	// OSCToMIDI returns the MIDI message for a message whose address
	// compiled to pattern, if the rule applies.
	OSCToMIDI(pattern *osc.Pattern, args []interface{}) (midi.Message, bool)
	// Validate reports whether the rule is usable.
	Validate() error
}

// Control selects the controller numbers a rule responds to. It is consulted
// for inbound MIDI only; outbound messages always use the rule's Controller.
type Control func(controller uint8) bool

// Controllers returns a Control matching any of the given controller numbers.
func Controllers(n ...uint8) Control {
	return func(c uint8) bool {
		for _, v := range n {
			if v == c {
				return true
			}
		}
		return false
	}
}

// cc holds the MIDI and OSC identity shared by every rule kind.
type cc struct {
	Channel    uint8 // 0-based
	Controller uint8
	Controls   Control // nil matches Controller only
	Address    string
}

func (c cc) match(msg midi.Message) (uint8, bool) {
	var ch, ctl, val uint8
	if !msg.GetControlChange(&ch, &ctl, &val) || ch != c.Channel {
		return 0, false
	}
	if c.Controls != nil {
		return val, c.Controls(ctl)
	}
	return val, ctl == c.Controller
}

// OSCAddress returns the address the rule sends to and answers on.
func (c cc) OSCAddress() string {
	return c.Address
}

func (c cc) validate() error {
	switch {
	case c.Channel > 15:
		return fmt.Errorf("%w: channel %d out of range", ErrInvalidRule, c.Channel)
	case c.Controller > 127:
		return fmt.Errorf("%w: controller %d out of range", ErrInvalidRule, c.Controller)
	case !strings.HasPrefix(c.Address, "/") || strings.ContainsAny(c.Address, "*?,[]{}# "):
		return fmt.Errorf("%w: bad OSC address %q", ErrInvalidRule, c.Address)
	}
	return nil
}

// RangeRule maps controller values Low..High linearly onto 0.0..1.0.
type RangeRule struct {
	cc
	Low, High uint8
}

// NewRangeRule returns a RangeRule for controller on a 0-based channel.
func NewRangeRule(channel, controller, low, high uint8, address string) *RangeRule {
	return &RangeRule{
		cc:  cc{Channel: channel, Controller: controller, Address: address},
		Low: low, High: high,
	}
}

// WithControls returns a copy of r that responds to the controllers
// selected by c.
func (r RangeRule) WithControls(c Control) *RangeRule {
	r.Controls = c
	return &r
}

func (r *RangeRule) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.Low == r.High || r.Low > 127 || r.High > 127 {
		return fmt.Errorf("%w: bad range %d..%d", ErrInvalidRule, r.Low, r.High)
	}
	return nil
}

func (r *RangeRule) MIDIToOSC(msg midi.Message) (*osc.Message, bool) {
	v, ok := r.match(msg)
	if !ok {
		return nil, false
	}
	f := (float64(v) - float64(r.Low)) / (float64(r.High) - float64(r.Low))
	return osc.NewMessage(r.Address, float32(f)), true
}

func (r *RangeRule) OSCToMIDI(pattern *osc.Pattern, args []interface{}) (midi.Message, bool) {
	if !pattern.Match(r.Address) {
		return nil, false
	}
	f, ok := floatArg(args)
	if !ok {
		return nil, false
	}
	f = math.Max(0, math.Min(1, f))
	v := math.Round(f*(float64(r.High)-float64(r.Low))) + float64(r.Low)
	return midi.ControlChange(r.Channel, r.Controller, uint8(v)), true
}

// BoolRule maps controller values to 0.0 or 1.0 around the midpoint of Off
// and On. On may be below Off.
type BoolRule struct {
	cc
	Off, On uint8
}

// NewBoolRule returns a BoolRule for controller on a 0-based channel.
func NewBoolRule(channel, controller, off, on uint8, address string) *BoolRule {
	return &BoolRule{
		cc:  cc{Channel: channel, Controller: controller, Address: address},
		Off: off, On: on,
	}
}

// WithControls returns a copy of r that responds to the controllers
// selected by c.
func (r BoolRule) WithControls(c Control) *BoolRule {
	r.Controls = c
	return &r
}

func (r *BoolRule) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.Off == r.On || r.Off > 127 || r.On > 127 {
		return fmt.Errorf("%w: off and on values %d, %d", ErrInvalidRule, r.Off, r.On)
	}
	return nil
}

func (r *BoolRule) MIDIToOSC(msg midi.Message) (*osc.Message, bool) {
	v, ok := r.match(msg)
	if !ok {
		return nil, false
	}
	var f float32
	if r.isOn(v) {
		f = 1
	}
	return osc.NewMessage(r.Address, f), true
}

func (r *BoolRule) isOn(v uint8) bool {
	mid := (float64(r.Off) + float64(r.On)) / 2
	if r.Off < r.On {
		return float64(v) > mid
	}
	return float64(v) < mid
}

func (r *BoolRule) OSCToMIDI(pattern *osc.Pattern, args []interface{}) (midi.Message, bool) {
	if !pattern.Match(r.Address) || len(args) != 1 {
		return nil, false
	}
	var on bool
	switch a := args[0].(type) {
	case bool:
		on = a
	default:
		f, ok := floatArg(args)
		if !ok {
			return nil, false
		}
		on = f >= 0.5
	}
	v := r.Off
	if on {
		v = r.On
	}
	return midi.ControlChange(r.Channel, r.Controller, v), true
}

func floatArg(args []interface{}) (float64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	switch f := args[0].(type) {
	case float32:
		return float64(f), !math.IsNaN(float64(f))
	case float64:
		return f, !math.IsNaN(f)
	}
	return 0, false
}
