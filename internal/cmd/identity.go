package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/bcontrol"
)

// reply is one device's answer to an identity request.
type reply struct {
	Device bcontrol.Device
	Model  bcontrol.Model
	ID     string
}

func (a *app) identityCommand() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Ask attached B-Control devices to identify themselves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			port, err := a.openPort()
			if err != nil {
				return err
			}
			defer port.Close()

			replies, err := identify(cmd.Context(), port, wait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(replies) == 0 {
				fmt.Fprintln(out, "no replies")
			}
			for _, r := range replies {
				fmt.Fprintf(out, "device %s %s: %s\n", r.Device, r.Model, r.ID)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to collect replies")
	return cmd
}

// identify broadcasts an identity request on port and collects the replies
// that arrive within wait.
func identify(ctx context.Context, port devicePort, wait time.Duration) ([]reply, error) {
	in, stop, err := port.Listen()
	if err != nil {
		return nil, err
	}
	defer stop()

	req := bcontrol.Message{
		Device:  bcontrol.AnyDevice,
		Model:   bcontrol.AnyModel,
		Command: bcontrol.RequestIdentity{},
	}
	if err := port.Send(ctx, req.MIDI()); err != nil {
		return nil, fmt.Errorf("sending identity request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var replies []reply
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return replies, nil
			}
			return replies, ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return replies, nil
			}
			if r, ok := identityFrom(msg); ok {
				replies = append(replies, r)
			}
		}
	}
}

func identityFrom(msg midi.Message) (reply, bool) {
	m, err := bcontrol.FromMIDI(msg)
	if err != nil {
		return reply{}, false
	}
	id, ok := m.Command.(bcontrol.Identity)
	if !ok {
		return reply{}, false
	}
	return reply{Device: m.Device, Model: m.Model, ID: id.ID}, true
}
