package midiport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

type recorder struct {
	mu   sync.Mutex
	msgs []midi.Message
}

func (r *recorder) write(msg midi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) written() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]midi.Message(nil), r.msgs...)
}

func TestSinkWritesInOrder(t *testing.T) {
	var rec recorder
	s := NewSink(rec.write, 2)
	defer s.Close()

	var want []midi.Message
	for v := uint8(0); v < 20; v++ {
		msg := midi.ControlChange(0, 7, v)
		want = append(want, msg)
		require.NoError(t, s.Send(context.Background(), msg))
	}
	assert.Equal(t, want, rec.written())
}

func TestSinkReportsWriteErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	s := NewSink(func(midi.Message) error { return boom }, 1)
	defer s.Close()

	err := s.Send(context.Background(), midi.ControlChange(0, 1, 1))
	assert.ErrorIs(t, err, boom)
}

func TestSinkBlocksWhileWriterBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := NewSink(func(midi.Message) error {
		started <- struct{}{}
		<-release
		return nil
	}, 1)
	defer s.Close()

	sent := make(chan error, 1)
	go func() { sent <- s.Send(context.Background(), midi.ControlChange(0, 1, 1)) }()
	<-started

	select {
	case <-sent:
		t.Fatal("Send returned before the write completed")
	case <-time.After(50 * time.Millisecond):
	}

	// One request fits in the queue; the next waits for space.
	go s.Send(context.Background(), midi.ControlChange(0, 1, 2))
	require.Eventually(t, func() bool { return len(s.reqs) == 1 }, time.Second, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Send(ctx, midi.ControlChange(0, 1, 3)), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, <-sent)
}

func TestSinkClose(t *testing.T) {
	var rec recorder
	released := 0
	s := NewSink(rec.write, 1)
	s.release = func() error {
		released++
		return nil
	}
	require.NoError(t, s.Send(context.Background(), midi.ControlChange(0, 1, 1)))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, released)
	assert.ErrorIs(t, s.Send(context.Background(), midi.ControlChange(0, 1, 2)), ErrClosed)
	assert.Len(t, rec.written(), 1)
}
