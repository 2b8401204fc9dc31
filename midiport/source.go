// Package midiport connects the bridge to MIDI hardware through the gomidi
// driver registry.
//
// Source turns a driver callback into a channel without ever blocking the
// callback. Sink serializes writes to an output port through one goroutine
// and blocks each writer until its message has been written.
package midiport

import (
	"errors"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

var (
	// ErrPortNotFound is returned when no MIDI port has the requested name.
	ErrPortNotFound = errors.New("midiport: port not found")

	// ErrClosed is returned by operations on a closed Source or Sink.
	ErrClosed = errors.New("midiport: closed")
)

// Source queues messages delivered by a MIDI driver callback and hands them
// out in arrival order on a channel. The queue is unbounded.
type Source struct {
	mu     sync.Mutex
	queue  []midi.Message
	closed bool

	wake   chan struct{}
	done   chan struct{}
	out    chan midi.Message
	exited chan struct{}

	once    sync.Once
	release func() error
}

// NewSource returns a Source with no driver attached. Messages are fed
// with Deliver.
func NewSource() *Source {
	s := &Source{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan midi.Message),
		exited: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Deliver queues a copy of msg. It never blocks and may be called from any
// goroutine. Messages delivered after Close are dropped.
func (s *Source) Deliver(msg midi.Message) {
	msg = append(midi.Message(nil), msg...)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Messages returns the channel messages are delivered on. It is closed
// once the Source is closed.
func (s *Source) Messages() <-chan midi.Message {
	return s.out
}

// Len returns the number of queued messages not yet taken from Messages.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close detaches the driver, discards queued messages and closes the
// Messages channel. It is safe to call more than once.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
		if s.release != nil {
			err = s.release()
		}
		<-s.exited
	})
	return err
}

func (s *Source) pump() {
	defer close(s.exited)
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			msg, ok := s.pop()
			if !ok {
				break
			}
			select {
			case s.out <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Source) pop() (midi.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	msg := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return msg, true
}
