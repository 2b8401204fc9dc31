package midiport

import (
	"context"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// DefaultSinkCapacity is the number of writes a Sink queues before Send
// blocks.
const DefaultSinkCapacity = 4

type writeRequest struct {
	msg midi.Message
	ack chan error
}

// Sink writes messages to an output port from a single goroutine.
type Sink struct {
	write   func(midi.Message) error
	reqs    chan writeRequest
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
	release func() error
}

// NewSink returns a Sink that hands messages to write, one at a time, with
// room for capacity queued requests.
func NewSink(write func(midi.Message) error, capacity int) *Sink {
	if capacity < 1 {
		capacity = DefaultSinkCapacity
	}
	s := &Sink{
		write:  write,
		reqs:   make(chan writeRequest, capacity),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.run()
	return s
}

// Send queues msg and waits until it has been written, returning the
// write's error. ctx bounds only the wait for queue space; a queued message
// is always written.
func (s *Sink) Send(ctx context.Context, msg midi.Message) error {
	r := writeRequest{msg: msg, ack: make(chan error, 1)}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.reqs <- r:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-r.ack:
		return err
	case <-s.exited:
		select {
		case err := <-r.ack:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops the writer after the message being written, fails anything
// still queued with ErrClosed and releases the port. It is safe to call
// more than once.
func (s *Sink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		if s.release != nil {
			err = s.release()
		}
	})
	return err
}

func (s *Sink) run() {
	defer close(s.exited)
	for {
		select {
		case r := <-s.reqs:
			r.ack <- s.write(r.msg)
		case <-s.done:
			for {
				select {
				case r := <-s.reqs:
					r.ack <- ErrClosed
				default:
					return
				}
			}
		}
	}
}
