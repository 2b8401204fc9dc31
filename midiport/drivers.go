package midiport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// sysExBufferSize holds the longest B-Control SysEx message, a full BCL
// line plus framing, with room to spare.
const sysExBufferSize = 4096

// Drivers opens ports on the registered gomidi driver. A driver package
// such as rtmididrv must be imported for its side effects.
type Drivers struct {
	Logger       *slog.Logger
	SinkCapacity int
}

// InPorts returns the names of the available input ports.
func InPorts() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// OutPorts returns the names of the available output ports.
func OutPorts() ([]string, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names, nil
}

// findPort returns the port whose name equals name, or else the only port
// whose name contains it.
func findPort[P interface{ String() string }](ports []P, name string) (P, error) {
	var (
		zero    P
		partial []P
	)
	for _, p := range ports {
		if p.String() == name {
			return p, nil
		}
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			partial = append(partial, p)
		}
	}
	switch len(partial) {
	case 1:
		return partial[0], nil
	case 0:
		return zero, fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}
	return zero, fmt.Errorf("%w: %q is ambiguous (%d ports)", ErrPortNotFound, name, len(partial))
}

func findIn(name string) (drivers.In, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	return findPort(ins, name)
}

func findOut(name string) (drivers.Out, error) {
	outs, err := drivers.Outs()
	if err != nil {
		return nil, err
	}
	return findPort(outs, name)
}

// OpenSource opens the input port called name and listens to it.
func (d Drivers) OpenSource(name string) (*Source, error) {
	in, err := findIn(name)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midiport: opening input %q: %w", in.String(), err)
	}
	s, err := d.listen(in)
	if err != nil {
		in.Close()
		return nil, err
	}
	stop := s.release
	s.release = func() error {
		return errors.Join(stop(), in.Close())
	}
	return s, nil
}

func (d Drivers) listen(in drivers.In) (*Source, error) {
	log := d.logger().With("port", in.String())
	s := NewSource()
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		s.Deliver(msg)
	}, midi.UseSysEx(), midi.SysExBufferSize(sysExBufferSize), midi.HandleError(func(err error) {
		log.Warn("MIDI input failed", "error", err)
		// Close stops the listener, which must not happen on its own goroutine.
		go s.Close()
	}))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("midiport: listening to %q: %w", in.String(), err)
	}
	s.release = func() error {
		stop()
		return nil
	}
	return s, nil
}

// OpenSink opens the output port called name.
func (d Drivers) OpenSink(name string) (*Sink, error) {
	out, err := findOut(name)
	if err != nil {
		return nil, err
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("midiport: opening output %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("midiport: output %q: %w", out.String(), err)
	}
	s := NewSink(send, d.SinkCapacity)
	s.release = out.Close
	return s, nil
}

func (d Drivers) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Port is a device connection made of an input and an output port. Each
// Listen starts a fresh listener on the input.
type Port struct {
	d    Drivers
	in   drivers.In
	sink *Sink
}

// OpenPort opens the named input and output ports.
func (d Drivers) OpenPort(inName, outName string) (*Port, error) {
	in, err := findIn(inName)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midiport: opening input %q: %w", in.String(), err)
	}
	sink, err := d.OpenSink(outName)
	if err != nil {
		in.Close()
		return nil, err
	}
	return &Port{d: d, in: in, sink: sink}, nil
}

// Listen starts delivering input messages on the returned channel until
// stop is called.
func (p *Port) Listen() (<-chan midi.Message, func(), error) {
	s, err := p.d.listen(p.in)
	if err != nil {
		return nil, nil, err
	}
	return s.Messages(), func() { s.Close() }, nil
}

// Send writes msg to the output port.
func (p *Port) Send(ctx context.Context, msg midi.Message) error {
	return p.sink.Send(ctx, msg)
}

// Close releases both ports.
func (p *Port) Close() error {
	return errors.Join(p.sink.Close(), p.in.Close())
}
