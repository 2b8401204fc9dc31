package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chabad360/bcr2kosc/bcl"
	"github.com/chabad360/bcr2kosc/bcontrol"
)

func (a *app) bclCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bcl",
		Short: "Transfer BCL scripts to and from the device",
	}
	cmd.AddCommand(a.bclGetCommand(), a.bclPutCommand())
	return cmd
}

func (a *app) bclGetCommand() *cobra.Command {
	var (
		preset  string
		global  bool
		output  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a preset or the global setup as BCL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			slot, err := bcontrol.ParsePresetSlot(preset)
			if err != nil {
				return err
			}

			port, err := a.openPort()
			if err != nil {
				return err
			}
			defer port.Close()

			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			var lines []string
			if global {
				lines, err = bcl.RequestGlobal(ctx, a.cfg.Device, port)
			} else {
				lines, err = bcl.RequestPreset(ctx, a.cfg.Device, slot, port)
			}
			if err != nil {
				return err
			}
			a.log.Debug("received BCL", "lines", len(lines))

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = io.WriteString(w, bcl.Script(lines))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "temp", "preset to dump: 0-31, all or temp")
	f.BoolVar(&global, "global", false, "dump the global setup instead of a preset")
	f.StringVarP(&output, "output", "o", "", "write the script to a file")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long, 0 to wait forever")
	cmd.MarkFlagsMutuallyExclusive("preset", "global")
	return cmd
}

func (a *app) bclPutCommand() *cobra.Command {
	var (
		model   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a BCL script, checking each line is accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := bcontrol.ParseModel(model)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			lines := bcl.ParseScript(string(text))

			port, err := a.openPort()
			if err != nil {
				return err
			}
			defer port.Close()

			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := bcl.Send(ctx, a.cfg.Device, m, lines, port); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d lines\n", len(lines))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "bcr", "target model: bcr or bcf")
	f.DurationVar(&timeout, "timeout", time.Minute, "give up after this long, 0 to wait forever")
	return cmd
}
