package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chabad360/bcr2kosc/osc"
)

func (a *app) oscCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "osc",
		Short: "Send and watch OSC traffic",
	}
	cmd.AddCommand(a.oscSendCommand(), a.oscMonitorCommand())
	return cmd
}

func (a *app) oscSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <host:port> <address> [value...]",
		Short: "Send one OSC message with float arguments",
		Example: `  bcr2kosc osc send 127.0.0.1:9000 /encoder/1 0.5
  bcr2kosc osc send 127.0.0.1:9000 /key/1 1`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := buildMessage(args[1], args[2:])
			if err != nil {
				return err
			}
			c, err := osc.Dial(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Send(msg); err != nil {
				return err
			}
			a.log.Debug("sent OSC", "to", args[0], "message", msg.String())
			return nil
		},
	}
}

// buildMessage makes an OSC message carrying values as float32 arguments.
func buildMessage(address string, values []string) (*osc.Message, error) {
	args := make([]interface{}, 0, len(values))
	for _, s := range values {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number", s)
		}
		args = append(args, float32(f))
	}
	return osc.NewMessage(address, args...), nil
}

func (a *app) oscMonitorCommand() *cobra.Command {
	var addresses []string
	cmd := &cobra.Command{
		Use:   "monitor [host:port]",
		Short: "Print OSC messages for the rule addresses",
		Long: `monitor listens for OSC on the given address, or on osc.listen, and
prints every message sent to an address of the translation rules or to an
address given with --address.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listen := a.cfg.OSC.Listen
			if len(args) == 1 {
				listen = args[0]
			}
			set, err := a.rules()
			if err != nil {
				return err
			}
			addrs := append(set.Addresses(), addresses...)

			conn, err := net.ListenPacket("udp", listen)
			if err != nil {
				return err
			}
			a.log.Info("monitoring OSC", "listen", conn.LocalAddr().String(), "addresses", addrs)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.monitor(ctx, conn, addrs, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&addresses, "address", nil, "extra OSC address to print, repeatable")
	return cmd
}

// monitor serves conn until ctx is done, printing messages for addrs to w.
// It closes conn.
func (a *app) monitor(ctx context.Context, conn net.PacketConn, addrs []string, w io.Writer) error {
	var mu sync.Mutex
	d := &osc.Dispatcher{}
	for _, addr := range addrs {
		err := d.AddMethodFunc(addr, func(msg *osc.Message) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), msg)
		})
		if err != nil {
			a.log.Debug("skipping address", "address", addr, "error", err)
		}
	}

	srv := &osc.Server{Dispatcher: d, Logger: a.log}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return srv.Serve(conn)
}
