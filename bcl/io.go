package bcl

import (
	"context"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chabad360/bcr2kosc/bcontrol"
)

// Port is a bidirectional MIDI connection to a device.
type Port interface {
	// Listen arms a receiver. Every message arriving after Listen returns
	// is delivered on the channel until stop is called.
	Listen() (msgs <-chan midi.Message, stop func(), err error)
	// Send writes one message, blocking until it has been handed to the
	// hardware.
	Send(ctx context.Context, msg midi.Message) error
}

// AckError is returned by Send when the device rejects a line.
type AckError struct {
	Index uint16
	Code  byte
	Line  string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("bcl: device rejected line %d %q with error %d", e.Index, e.Line, e.Code)
}

// Receive reads BclLine messages from device off in until the end marker.
// Anything else on in is skipped.
func Receive(ctx context.Context, device uint8, in <-chan midi.Message) ([]string, error) {
	var s Session
	for {
		select {
		case <-ctx.Done():
			return s.Lines(), ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return s.Lines(), fmt.Errorf("%w after %d lines", ErrTruncated, len(s.Lines()))
			}
			line, ok := lineFrom(device, msg)
			if !ok {
				continue
			}
			done, err := s.Accept(line)
			if err != nil {
				return s.Lines(), err
			}
			if done {
				return s.Lines(), nil
			}
		}
	}
}

// RequestPreset asks device for the BCL dump of slot and returns it.
func RequestPreset(ctx context.Context, device uint8, slot bcontrol.PresetSlot, port Port) ([]string, error) {
	return request(ctx, device, bcontrol.RequestData{Slot: slot}, port)
}

// RequestGlobal asks device for the BCL dump of its global setup.
func RequestGlobal(ctx context.Context, device uint8, port Port) ([]string, error) {
	return request(ctx, device, bcontrol.RequestGlobalSetup{}, port)
}

func request(ctx context.Context, device uint8, cmd bcontrol.Command, port Port) ([]string, error) {
	// The first reply lines follow the request closely; listen first.
	in, stop, err := port.Listen()
	if err != nil {
		return nil, err
	}
	defer stop()

	req := bcontrol.Message{
		Device:  bcontrol.Device(device),
		Model:   bcontrol.AnyModel,
		Command: cmd,
	}

	g, ctx := errgroup.WithContext(ctx)
	var lines []string
	g.Go(func() error {
		var err error
		lines, err = Receive(ctx, device, in)
		return err
	})
	g.Go(func() error {
		if err := port.Send(ctx, req.MIDI()); err != nil {
			return fmt.Errorf("bcl: sending request: %w", err)
		}
		return nil
	})
	return lines, g.Wait()
}

// Send uploads lines to device, waiting for the device to acknowledge each
// line before sending the next. The end marker is appended when missing.
// A rejected line fails with *AckError.
func Send(ctx context.Context, device uint8, model bcontrol.Model, lines []string, port Port) error {
	if len(lines) == 0 || lines[len(lines)-1] != EndMarker {
		lines = append(lines[:len(lines):len(lines)], EndMarker)
	}
	if len(lines) > bcontrol.MaxUint14+1 {
		return fmt.Errorf("bcl: script too long (%d lines)", len(lines))
	}
	for i, text := range lines {
		if err := bcontrol.CheckText(text); err != nil {
			return fmt.Errorf("bcl: line %d: %w", i, err)
		}
	}

	in, stop, err := port.Listen()
	if err != nil {
		return err
	}
	defer stop()

	for i, text := range lines {
		idx := uint16(i)
		msg := bcontrol.Message{
			Device:  bcontrol.Device(device),
			Model:   model,
			Command: bcontrol.BclLine{Index: idx, Text: text},
		}
		if err := port.Send(ctx, msg.MIDI()); err != nil {
			return fmt.Errorf("bcl: sending line %d: %w", idx, err)
		}
		code, err := awaitAck(ctx, device, idx, in)
		if err != nil {
			return err
		}
		if code != 0 {
			return &AckError{Index: idx, Code: code, Line: text}
		}
	}
	return nil
}

func awaitAck(ctx context.Context, device uint8, idx uint16, in <-chan midi.Message) (byte, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return 0, fmt.Errorf("%w: no acknowledgement for line %d", ErrTruncated, idx)
			}
			m, err := bcontrol.FromMIDI(msg)
			if err != nil || !m.Device.Matches(device) {
				continue
			}
			if ack, ok := m.Command.(bcontrol.BclAck); ok && ack.Index == idx {
				return ack.Code, nil
			}
		}
	}
}

func lineFrom(device uint8, msg midi.Message) (bcontrol.BclLine, bool) {
	m, err := bcontrol.FromMIDI(msg)
	if err != nil || !m.Device.Matches(device) {
		return bcontrol.BclLine{}, false
	}
	line, ok := m.Command.(bcontrol.BclLine)
	return line, ok
}
