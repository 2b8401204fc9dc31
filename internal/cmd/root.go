// Package cmd implements the bcr2kosc command line.
package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chabad360/bcr2kosc/bcl"
	"github.com/chabad360/bcr2kosc/internal/config"
	"github.com/chabad360/bcr2kosc/internal/logging"
	"github.com/chabad360/bcr2kosc/midiport"
)

// app is the state shared by every subcommand of one root command.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	log    *slog.Logger
	opener portOpener
}

// portOpener opens a device connection for the bcl and identity commands.
type portOpener func(d midiport.Drivers, in, out string) (devicePort, error)

type devicePort interface {
	bcl.Port
	Close() error
}

func openDriverPort(d midiport.Drivers, in, out string) (devicePort, error) {
	return d.OpenPort(in, out)
}

// Execute runs the bcr2kosc command line.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New(), opener: openDriverPort}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bcr2kosc",
		Short: "Bridge a Behringer B-Control to OSC",
		Long: `bcr2kosc translates between a Behringer BCR2000/BCF2000 and Open Sound
Control: controller moves become OSC messages, and OSC messages move the
controls. It also lists MIDI ports and transfers BCL presets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/bcr2kosc/bcr2kosc.yaml)")
	f.String("midi-in", "", "MIDI input port name")
	f.String("midi-out", "", "MIDI output port name")
	f.Uint8("device", 0, "B-Control device number, 0-15")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.String("log-format", "", "log format: text or json")
	bindFlags(a.v, f, map[string]string{
		"midi.in":    "midi-in",
		"midi.out":   "midi-out",
		"device":     "device",
		"log.level":  "log-level",
		"log.format": "log-format",
	})

	root.AddCommand(
		a.serveCommand(),
		a.portsCommand(),
		a.listenCommand(),
		a.identityCommand(),
		a.bclCommand(),
		a.oscCommand(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("config")
	if err := config.Init(a.v, file); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) drivers() midiport.Drivers {
	return midiport.Drivers{Logger: a.log}
}

func (a *app) openPort() (devicePort, error) {
	return a.opener(a.drivers(), a.cfg.MIDI.In, a.cfg.MIDI.Out)
}

// withTimeout bounds ctx by d unless d is zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
