// Package bridge runs the service that connects a B-Control's MIDI ports to
// OSC peers over UDP.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chabad360/bcr2kosc/bcontrol"
	"github.com/chabad360/bcr2kosc/midiport"
	"github.com/chabad360/bcr2kosc/osc"
	"github.com/chabad360/bcr2kosc/translate"
)

// ErrAlreadyStarted is returned by Start on a service that is not idle.
var ErrAlreadyStarted = errors.New("bridge: already started")

// State is the lifecycle state of a Service.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PortOpener opens the MIDI ports of a Service.
type PortOpener interface {
	OpenSource(name string) (*midiport.Source, error)
	OpenSink(name string) (*midiport.Sink, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithPortOpener replaces the gomidi driver registry as the source of MIDI
// ports.
func WithPortOpener(o PortOpener) Option {
	return func(s *Service) { s.opener = o }
}

// WithMetrics registers the service's metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) { s.metrics = newMetrics(reg) }
}

// Service forwards MIDI from one input port to a set of OSC destinations,
// and OSC received on one UDP socket to one MIDI output port, translating
// with a translate.Set.
type Service struct {
	midiIn, midiOut string
	listen          string
	dests           []string
	set             *translate.Set

	id      uuid.UUID
	log     *slog.Logger
	opener  PortOpener
	metrics *metrics

	mu     sync.Mutex
	state  State
	conn   net.PacketConn
	source *midiport.Source
	sink   *midiport.Sink
	cancel context.CancelFunc
	group  *errgroup.Group

	stopOnce sync.Once
	stopErr  error
}

// New returns an idle Service. A nil set uses translate.Default.
func New(midiIn, midiOut, listen string, dests []string, set *translate.Set, opts ...Option) *Service {
	if set == nil {
		set = translate.Default()
	}
	s := &Service{
		midiIn:  midiIn,
		midiOut: midiOut,
		listen:  listen,
		dests:   append([]string(nil), dests...),
		set:     set,
		id:      uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("service_id", s.id.String())
	if s.opener == nil {
		s.opener = midiport.Drivers{Logger: s.log}
	}
	if s.metrics == nil {
		s.metrics = newMetrics(nil)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the address of the OSC socket, or nil before Start.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start binds the OSC socket, opens both MIDI ports and starts forwarding.
// It returns once the forwarding loops are running. On failure everything
// opened so far is released and the service stays idle. Cancelling ctx
// stops forwarding; Stop must still be called to release resources.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyStarted
	}

	dests := make([]net.Addr, 0, len(s.dests))
	for _, d := range s.dests {
		a, err := net.ResolveUDPAddr("udp", d)
		if err != nil {
			return fmt.Errorf("bridge: destination %q: %w", d, err)
		}
		dests = append(dests, a)
	}

	var cleanup []func() error
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	conn, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return fmt.Errorf("bridge: binding %q: %w", s.listen, err)
	}
	cleanup = append(cleanup, conn.Close)

	source, err := s.opener.OpenSource(s.midiIn)
	if err != nil {
		return fmt.Errorf("bridge: MIDI input %q: %w", s.midiIn, err)
	}
	cleanup = append(cleanup, source.Close)

	sink, err := s.opener.OpenSink(s.midiOut)
	if err != nil {
		return fmt.Errorf("bridge: MIDI output %q: %w", s.midiOut, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s.conn, s.source, s.sink = conn, source, sink
	s.cancel, s.group = cancel, g

	g.Go(func() error {
		// Unblocks ReadFrom once the service is cancelled.
		<-ctx.Done()
		return conn.SetReadDeadline(time.Now())
	})
	g.Go(func() error { return s.midiToOSC(ctx, source.Messages(), dests) })
	g.Go(func() error { return s.oscToMIDI(ctx) })

	s.state = Running
	s.log.Info("bridge started",
		"midi_in", s.midiIn, "midi_out", s.midiOut,
		"listen", conn.LocalAddr().String(), "destinations", s.dests,
		"rules", s.set.Len())
	return nil
}

// Stop cancels forwarding, waits for both loops to exit and releases the
// socket and ports. It may be called at any time and more than once; every
// call returns after the first has finished.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.state == Idle {
			s.state = Stopped
			s.mu.Unlock()
			return
		}
		s.state = Stopping
		s.mu.Unlock()

		s.cancel()
		err := s.group.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.stopErr = errors.Join(err, s.conn.Close(), s.sink.Close(), s.source.Close())

		s.mu.Lock()
		s.state = Stopped
		s.mu.Unlock()
		s.log.Info("bridge stopped")
	})
	return s.stopErr
}

func (s *Service) midiToOSC(ctx context.Context, in <-chan midi.Message, dests []net.Addr) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				s.log.Info("MIDI input ended")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.midiReceived.Inc()
			s.forwardMIDI(msg, dests)
		}
	}
}

func (s *Service) forwardMIDI(msg midi.Message, dests []net.Addr) {
	p := s.set.MIDIToOSC(msg)
	if p == nil {
		if bc, err := bcontrol.FromMIDI(msg); err == nil {
			s.log.Debug("B-Control message", "device", bc.Device, "model", bc.Model, "command", fmt.Sprintf("%T", bc.Command))
		} else {
			s.log.Debug("ignored MIDI message", "msg", msg.String())
		}
		return
	}

	data, err := p.MarshalBinary()
	if err != nil {
		s.log.Error("encoding OSC packet", "error", err)
		s.metrics.errors.WithLabelValues(errTranslate).Inc()
		return
	}
	for _, addr := range dests {
		if _, err := s.conn.WriteTo(data, addr); err != nil {
			s.log.Warn("OSC send failed", "to", addr.String(), "error", err)
			s.metrics.errors.WithLabelValues(errOSCSend).Inc()
			continue
		}
		s.metrics.oscSent.Inc()
	}
}

func (s *Service) oscToMIDI(ctx context.Context) error {
	buf := make([]byte, osc.MaxPacketSize)
	var carry []byte

	for {
		n, from, err := s.conn.ReadFrom(buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.metrics.errors.WithLabelValues(errOSCRecv).Inc()
			return fmt.Errorf("bridge: OSC receive: %w", err)
		}

		data := append(carry, buf[:n]...)
		carry = nil
		for first := true; len(data) > 0; first = false {
			p, rest, err := osc.DecodePacket(data)
			if err == nil && !first && len(rest) == 0 && osc.AddressOnly(data) {
				// The type tags and arguments may follow in the next datagram.
				carry = append([]byte(nil), data...)
				break
			}
			if err != nil {
				if first || len(data) > osc.MaxPacketSize {
					s.log.Warn("dropping malformed OSC datagram", "from", from.String(), "error", err)
					s.metrics.errors.WithLabelValues(errOSCDecode).Inc()
					break
				}
				// Possibly the start of a packet continued in the next datagram.
				carry = append([]byte(nil), data...)
				break
			}
			s.metrics.oscReceived.Inc()
			s.forwardOSC(ctx, p)
			data = rest
		}
	}
}

func (s *Service) forwardOSC(ctx context.Context, p osc.Packet) {
	msgs, err := s.set.OSCPacketToMIDI(p)
	if err != nil {
		s.log.Warn("untranslatable OSC packet", "error", err)
		s.metrics.errors.WithLabelValues(errTranslate).Inc()
	}
	if len(msgs) == 0 {
		s.log.Debug("ignored OSC packet", "packet", p)
		return
	}
	for _, m := range msgs {
		if err := s.sink.Send(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("MIDI send failed", "msg", m.String(), "error", err)
			s.metrics.errors.WithLabelValues(errMIDISend).Inc()
			continue
		}
		s.metrics.midiSent.Inc()
	}
}
