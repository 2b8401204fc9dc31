package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/midiport"
	"github.com/chabad360/bcr2kosc/osc"
)

type fakePorts struct {
	source  *midiport.Source
	written chan midi.Message
	srcErr  error
	sinkErr error
}

func newFakePorts() *fakePorts {
	return &fakePorts{
		source:  midiport.NewSource(),
		written: make(chan midi.Message, 16),
	}
}

func (f *fakePorts) OpenSource(string) (*midiport.Source, error) {
	if f.srcErr != nil {
		return nil, f.srcErr
	}
	return f.source, nil
}

func (f *fakePorts) OpenSink(string) (*midiport.Sink, error) {
	if f.sinkErr != nil {
		return nil, f.sinkErr
	}
	return midiport.NewSink(func(m midi.Message) error {
		f.written <- m
		return nil
	}, 1), nil
}

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn net.PacketConn) osc.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, osc.MaxPacketSize)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	p, err := osc.ParsePacket(buf[:n])
	require.NoError(t, err)
	return p
}

func assertNoDatagram(t *testing.T, conn net.PacketConn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadFrom(make([]byte, 64))
	var ne net.Error
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "unexpected datagram (err=%v)", err)
}

func written(t *testing.T, f *fakePorts) midi.Message {
	t.Helper()
	select {
	case m := <-f.written:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for MIDI output")
		return nil
	}
}

func startService(t *testing.T, ports *fakePorts, dests []string, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithPortOpener(ports)}, opts...)
	s := New("BCR2000 Port 1", "BCR2000 Port 1", "127.0.0.1:0", dests, nil, opts...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestStopBeforeStart(t *testing.T) {
	s := New("in", "out", "127.0.0.1:0", nil, nil, WithPortOpener(newFakePorts()))
	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
	assert.Equal(t, Stopped, s.State())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestStartStopWithoutTraffic(t *testing.T) {
	ports := newFakePorts()
	s := New("in", "out", "127.0.0.1:0", []string{"127.0.0.1:9"}, nil, WithPortOpener(ports))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	assert.NotNil(t, s.Addr())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	done := make(chan error, 2)
	go func() { done <- s.Stop() }()
	go func() { done <- s.Stop() }()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Stop deadlocked")
		}
	}
	assert.Equal(t, Stopped, s.State())

	_, ok := <-ports.source.Messages()
	assert.False(t, ok, "source not closed")
}

func TestStartFailures(t *testing.T) {
	boom := errors.New("no such port")

	ports := newFakePorts()
	ports.srcErr = boom
	s := New("in", "out", "127.0.0.1:0", nil, nil, WithPortOpener(ports))
	assert.ErrorIs(t, s.Start(context.Background()), boom)
	assert.Equal(t, Idle, s.State())
	assert.Nil(t, s.Addr())

	ports = newFakePorts()
	ports.sinkErr = boom
	s = New("in", "out", "127.0.0.1:0", nil, nil, WithPortOpener(ports))
	assert.ErrorIs(t, s.Start(context.Background()), boom)
	_, ok := <-ports.source.Messages()
	assert.False(t, ok, "source left open after failed start")

	s = New("in", "out", "127.0.0.1:0", []string{"not an address"}, nil, WithPortOpener(newFakePorts()))
	assert.Error(t, s.Start(context.Background()))

	s = New("in", "out", "256.0.0.1:bogus", nil, nil, WithPortOpener(newFakePorts()))
	assert.Error(t, s.Start(context.Background()))
}

func TestMIDIToOSC(t *testing.T) {
	a, b := listenUDP(t), listenUDP(t)
	ports := newFakePorts()
	reg := prometheus.NewRegistry()
	s := startService(t, ports, []string{a.LocalAddr().String(), b.LocalAddr().String()}, WithMetrics(reg))

	ports.source.Deliver(midi.ControlChange(0, 99, 1))
	ports.source.Deliver(midi.ControlChange(0, 1, 64))

	for _, conn := range []net.PacketConn{a, b} {
		p := readPacket(t, conn)
		m, ok := p.(*osc.Message)
		require.True(t, ok, "%T", p)
		assert.Equal(t, "/encoder/1", m.Address)
		require.Len(t, m.Arguments, 1)
		assert.InDelta(t, 0.504, m.Arguments[0], 0.001)
		assertNoDatagram(t, conn)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.midiReceived))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.oscSent))
}

func TestOSCToMIDI(t *testing.T) {
	ports := newFakePorts()
	s := startService(t, ports, nil)

	client, err := osc.Dial(s.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(osc.NewMessage("/encoder/1", float32(0.5))))
	assert.Equal(t, midi.ControlChange(0, 1, 64), written(t, ports))

	require.NoError(t, client.Send(osc.NewBundle(
		osc.NewMessage("/key/1", float32(1)),
		osc.NewMessage("/encoder/1", float32(0)),
	)))
	assert.Equal(t, midi.ControlChange(0, 0x41, 127), written(t, ports))
	assert.Equal(t, midi.ControlChange(0, 1, 0), written(t, ports))
}

func TestOSCToMIDIDropsMalformed(t *testing.T) {
	ports := newFakePorts()
	s := startService(t, ports, nil)

	conn, err := net.Dial("udp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)

	data, err := osc.NewMessage("/key/1", float32(0)).MarshalBinary()
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
	assert.Equal(t, midi.ControlChange(0, 0x41, 0), written(t, ports))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.errors.WithLabelValues(errOSCDecode)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestOSCToMIDIConcatenatedMessages(t *testing.T) {
	ports := newFakePorts()
	s := startService(t, ports, nil)

	conn, err := net.Dial("udp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	first, err := osc.NewMessage("/encoder/1", float32(1)).MarshalBinary()
	require.NoError(t, err)
	second, err := osc.NewMessage("/key/1", float32(1)).MarshalBinary()
	require.NoError(t, err)

	_, err = conn.Write(append(first, second...))
	require.NoError(t, err)
	assert.Equal(t, midi.ControlChange(0, 1, 127), written(t, ports))
	assert.Equal(t, midi.ControlChange(0, 0x41, 127), written(t, ports))
}

func TestOSCToMIDICarriesSplitMessage(t *testing.T) {
	first, err := osc.NewMessage("/encoder/1", float32(1)).MarshalBinary()
	require.NoError(t, err)
	second, err := osc.NewMessage("/key/1", float32(1)).MarshalBinary()
	require.NoError(t, err)

	// 8 ends right after the padded address, 12 after the type tags.
	for _, cut := range []int{8, 12} {
		t.Run(fmt.Sprint(cut), func(t *testing.T) {
			ports := newFakePorts()
			s := startService(t, ports, nil)

			conn, err := net.Dial("udp", s.Addr().String())
			require.NoError(t, err)
			defer conn.Close()

			_, err = conn.Write(append(append([]byte(nil), first...), second[:cut]...))
			require.NoError(t, err)
			assert.Equal(t, midi.ControlChange(0, 1, 127), written(t, ports))

			_, err = conn.Write(second[cut:])
			require.NoError(t, err)
			assert.Equal(t, midi.ControlChange(0, 0x41, 127), written(t, ports))
			assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.errors.WithLabelValues(errOSCDecode)))
		})
	}
}

func TestMIDIToOSCSendFailureSkipsDestination(t *testing.T) {
	good := listenUDP(t)
	ports := newFakePorts()
	// An IPv6 destination cannot be written from the IPv4 socket.
	s := startService(t, ports, []string{"[::1]:9", good.LocalAddr().String()}, WithMetrics(prometheus.NewRegistry()))

	ports.source.Deliver(midi.ControlChange(0, 1, 127))

	p := readPacket(t, good)
	assert.Equal(t, osc.NewMessage("/encoder/1", float32(1)), p)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.errors.WithLabelValues(errOSCSend)) == 1 &&
			testutil.ToFloat64(s.metrics.oscSent) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, Running, s.State())
}

func TestCancelStopsLoops(t *testing.T) {
	ports := newFakePorts()
	ctx, cancel := context.WithCancel(context.Background())
	s := New("in", "out", "127.0.0.1:0", nil, nil, WithPortOpener(ports))
	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop deadlocked after cancellation")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopping", Stopping.String())
	assert.Equal(t, "stopped", Stopped.String())
}
