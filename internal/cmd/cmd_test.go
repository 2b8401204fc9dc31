package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/bcl"
	"github.com/chabad360/bcr2kosc/bcontrol"
	"github.com/chabad360/bcr2kosc/midiport"
	"github.com/chabad360/bcr2kosc/osc"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeDevice answers B-Control requests the way a single BCR2000 would.
type fakeDevice struct {
	mu        sync.Mutex
	listeners map[int]chan midi.Message
	next      int
	reply     func(req bcontrol.Message) []bcontrol.Message
	received  []bcontrol.Message
	closed    bool
}

func newFakeDevice(reply func(bcontrol.Message) []bcontrol.Message) *fakeDevice {
	return &fakeDevice{listeners: make(map[int]chan midi.Message), reply: reply}
}

func (f *fakeDevice) Listen() (<-chan midi.Message, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan midi.Message, 64)
	f.listeners[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}, nil
}

func (f *fakeDevice) Send(_ context.Context, msg midi.Message) error {
	req, err := bcontrol.FromMIDI(msg)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, req)
	for _, r := range f.reply(req) {
		for _, ch := range f.listeners {
			ch <- r.MIDI()
		}
	}
	return nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fromBCR(cmd bcontrol.Command) bcontrol.Message {
	return bcontrol.Message{Device: 0, Model: bcontrol.BCR, Command: cmd}
}

// run executes the command line args against a fresh root command whose
// device connections go to dev. It returns stdout.
func run(t *testing.T, dev *fakeDevice, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a := &app{v: viper.New(), opener: openDriverPort}
	if dev != nil {
		a.opener = func(_ midiport.Drivers, _, _ string) (devicePort, error) { return dev, nil }
	}
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, midi.ControlChange(0, 1, 64).String(), describe(midi.ControlChange(0, 1, 64)))

	id := fromBCR(bcontrol.Identity{ID: "BCR2000 1.10"}).MIDI()
	got := describe(id)
	assert.Contains(t, got, "BCR device 0")
	assert.Contains(t, got, "bcontrol.Identity")
	assert.Contains(t, got, "BCR2000 1.10")

	short := midi.SysEx(append(append([]byte(nil), bcontrol.Behringer...), 0x00))
	assert.Contains(t, describe(short), "malformed")
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("/encoder/1", []string{"0.5", "1"})
	require.NoError(t, err)
	assert.Equal(t, osc.NewMessage("/encoder/1", float32(0.5), float32(1)), msg)

	_, err = buildMessage("/encoder/1", []string{"half"})
	assert.Error(t, err)
}

func TestIdentify(t *testing.T) {
	dev := newFakeDevice(func(req bcontrol.Message) []bcontrol.Message {
		if _, ok := req.Command.(bcontrol.RequestIdentity); ok {
			return []bcontrol.Message{
				fromBCR(bcontrol.BclAck{Index: 3}),
				fromBCR(bcontrol.Identity{ID: "BCR2000 1.10"}),
			}
		}
		return nil
	})

	replies, err := identify(context.Background(), dev, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []reply{{Device: 0, Model: bcontrol.BCR, ID: "BCR2000 1.10"}}, replies)

	require.Len(t, dev.received, 1)
	assert.Equal(t, bcontrol.AnyDevice, dev.received[0].Device)
	assert.Equal(t, bcontrol.AnyModel, dev.received[0].Model)
}

func TestIdentityCommand(t *testing.T) {
	dev := newFakeDevice(func(bcontrol.Message) []bcontrol.Message { return nil })
	out, err := run(t, dev, "identity", "--wait", "10ms")
	require.NoError(t, err)
	assert.Equal(t, "no replies\n", out)
	assert.True(t, dev.closed)
}

func scriptReply(lines ...string) func(bcontrol.Message) []bcontrol.Message {
	return func(req bcontrol.Message) []bcontrol.Message {
		switch req.Command.(type) {
		case bcontrol.RequestData, bcontrol.RequestGlobalSetup:
			var out []bcontrol.Message
			for i, l := range lines {
				out = append(out, fromBCR(bcontrol.BclLine{Index: uint16(i), Text: l}))
			}
			return out
		}
		return nil
	}
}

func TestBclGet(t *testing.T) {
	dev := newFakeDevice(scriptReply("$rev R1", "$preset", "  .name 'mix'", "$end"))
	out, err := run(t, dev, "bcl", "get", "--preset", "3")
	require.NoError(t, err)
	assert.Equal(t, "$rev R1\n$preset\n  .name 'mix'\n$end\n", out)

	require.Len(t, dev.received, 1)
	assert.Equal(t, bcontrol.RequestData{Slot: bcontrol.Preset(3)}, dev.received[0].Command)
}

func TestBclGetGlobalToFile(t *testing.T) {
	dev := newFakeDevice(scriptReply("$rev R1", "$global", "$end"))
	path := filepath.Join(t.TempDir(), "global.bcl")
	out, err := run(t, dev, "bcl", "get", "--global", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "$rev R1\n$global\n$end\n", string(data))
	assert.Equal(t, bcontrol.RequestGlobalSetup{}, dev.received[0].Command)
}

func TestBclGetBadPreset(t *testing.T) {
	_, err := run(t, newFakeDevice(scriptReply()), "bcl", "get", "--preset", "40")
	assert.Error(t, err)
}

func ackAll(code func(idx uint16) byte) func(bcontrol.Message) []bcontrol.Message {
	return func(req bcontrol.Message) []bcontrol.Message {
		line, ok := req.Command.(bcontrol.BclLine)
		if !ok {
			return nil
		}
		ack := fromBCR(bcontrol.BclAck{Index: line.Index, Code: code(line.Index)})
		ack.Device = req.Device
		return []bcontrol.Message{ack}
	}
}

func TestBclPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.bcl")
	require.NoError(t, os.WriteFile(path, []byte("$rev R1\r\n$preset\r\n"), 0o644))

	dev := newFakeDevice(ackAll(func(uint16) byte { return 0 }))
	out, err := run(t, dev, "bcl", "put", "--model", "bcr", "--device", "2", path)
	require.NoError(t, err)
	assert.Equal(t, "sent 2 lines\n", out)

	var texts []string
	for _, m := range dev.received {
		assert.Equal(t, bcontrol.Device(2), m.Device)
		assert.Equal(t, bcontrol.BCR, m.Model)
		texts = append(texts, m.Command.(bcontrol.BclLine).Text)
	}
	assert.Equal(t, []string{"$rev R1", "$preset", "$end"}, texts)
}

func TestBclPutRejectedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.bcl")
	require.NoError(t, os.WriteFile(path, []byte("$rev R1\n$bogus\n"), 0o644))

	dev := newFakeDevice(ackAll(func(idx uint16) byte {
		if idx == 1 {
			return 4
		}
		return 0
	}))
	_, err := run(t, dev, "bcl", "put", path)

	var ackErr *bcl.AckError
	require.True(t, errors.As(err, &ackErr), "%v", err)
	assert.Equal(t, uint16(1), ackErr.Index)
	assert.Equal(t, "$bogus", ackErr.Line)
	assert.Len(t, dev.received, 2)
}

func TestInvalidDeviceFlag(t *testing.T) {
	_, err := run(t, nil, "osc", "send", "127.0.0.1:1", "/x", "--device", "20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device must be 0..15")
}

func TestOSCSend(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	_, err = run(t, nil, "osc", "send", conn.LocalAddr().String(), "/encoder/1", "0.25")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, osc.MaxPacketSize)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	p, err := osc.ParsePacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, osc.NewMessage("/encoder/1", float32(0.25)), p)
}

func TestMonitor(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	a := &app{log: discardLogger()}
	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.monitor(ctx, conn, []string{"/encoder/1", "/key/1", "/encoder/1"}, &out)
	}()

	c, err := osc.Dial(conn.LocalAddr().String())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		_ = c.Send(osc.NewMessage("/encoder/1", float32(0.5)))
		return strings.Contains(out.String(), "/encoder/1")
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, c.Send(osc.NewMessage("/other", float32(1))))
	require.NoError(t, c.Send(osc.NewBundle(osc.NewMessage("/key/{1,2}", true))))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "/key/{1,2}")
	}, 2*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), "/other")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
