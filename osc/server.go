package osc

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// Server reads OSC packets from a connection and hands them to the
// Dispatcher.
type Server struct {
	Dispatcher  *Dispatcher
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

// Serve retrieves incoming OSC packets from the given connection and
// dispatches them. Malformed datagrams are logged and skipped. Serve returns
// nil once c is closed.
func (s *Server) Serve(c net.PacketConn) error {
	if s.Dispatcher == nil {
		s.Dispatcher = &Dispatcher{}
	}
	log := s.logger()

	for {
		p, addr, err := s.ReceivePacketFromConn(c)
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, net.ErrClosed):
				return nil
			case errors.As(err, &ne) && ne.Timeout():
				continue
			case errors.As(err, &ne):
				return err
			}
			log.Debug("dropping malformed OSC datagram", "from", addr, "error", err)
			continue
		}
		if err := s.Dispatcher.Dispatch(p); err != nil {
			log.Warn("dispatch failed", "from", addr, "error", err)
		}
	}
}

// ReceivePacketFromConn reads one datagram from c and parses it as a packet.
func (s *Server) ReceivePacketFromConn(c net.PacketConn) (Packet, net.Addr, error) {
	if s.ReadTimeout != 0 {
		if err := c.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			return nil, nil, err
		}
	}

	b := bPool.Get().(*[]byte)
	defer bPool.Put(b)

	n, a, err := c.ReadFrom(*b)
	if err != nil {
		return nil, a, err
	}

	p, err := ParsePacket((*b)[:n])
	return p, a, err
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
