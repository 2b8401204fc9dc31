package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/chabad360/bcr2kosc/bcontrol"
)

func (a *app) listenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "listen [port]",
		Short: "Print MIDI received on a port, decoding B-Control messages",
		Long: `listen prints every message arriving on the MIDI input port, or on
midi.in when no port is given, until interrupted. B-Control system
exclusive messages are decoded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.cfg.MIDI.In
			if len(args) == 1 {
				name = args[0]
			}
			src, err := a.drivers().OpenSource(name)
			if err != nil {
				return err
			}
			defer src.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-src.Messages():
					if !ok {
						return errors.New("MIDI input closed")
					}
					printMessage(out, time.Now(), msg)
				}
			}
		},
	}
}

func printMessage(w io.Writer, at time.Time, msg midi.Message) {
	fmt.Fprintf(w, "%s %s\n", at.Format("15:04:05.000"), describe(msg))
}

// describe renders msg, decoding B-Control system exclusive messages.
func describe(msg midi.Message) string {
	m, err := bcontrol.FromMIDI(msg)
	switch {
	case err == nil:
		return fmt.Sprintf("%s device %s: %T%+v", m.Model, m.Device, m.Command, m.Command)
	case errors.Is(err, bcontrol.ErrNotBControl):
		return msg.String()
	default:
		return fmt.Sprintf("%s (%v)", msg, err)
	}
}
