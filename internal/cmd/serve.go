package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/chabad360/bcr2kosc/bridge"
	"github.com/chabad360/bcr2kosc/translate"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MIDI/OSC bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		},
	}

	f := cmd.Flags()
	f.String("listen", "", "UDP address to receive OSC on")
	f.StringSlice("dest", nil, "UDP address to send OSC to, repeatable")
	f.String("rules", "", "translation rules file (default built-in rules)")
	f.String("metrics-listen", "", "HTTP address for Prometheus metrics, empty to disable")
	bindFlags(a.v, f, map[string]string{
		"osc.listen":       "listen",
		"osc.destinations": "dest",
		"rules":            "rules",
		"metrics.listen":   "metrics-listen",
	})
	return cmd
}

func (a *app) serve(ctx context.Context, reg prometheus.Registerer, gather prometheus.Gatherer) error {
	set, err := a.rules()
	if err != nil {
		return err
	}

	svc := bridge.New(a.cfg.MIDI.In, a.cfg.MIDI.Out, a.cfg.OSC.Listen, a.cfg.OSC.Destinations, set,
		bridge.WithLogger(a.log),
		bridge.WithMetrics(reg),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	a.log.Info("bridge running",
		"midi_in", a.cfg.MIDI.In,
		"midi_out", a.cfg.MIDI.Out,
		"osc_listen", svc.Addr().String(),
		"osc_destinations", a.cfg.OSC.Destinations,
		"rules", set.Len())

	var srv *http.Server
	if a.cfg.Metrics.Listen != "" {
		srv = &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(gather, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", "addr", srv.Addr, "error", err)
			}
		}()
	}

	<-ctx.Done()
	a.log.Info("shutting down")

	var errs []error
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, srv.Shutdown(shutdownCtx))
		cancel()
	}
	errs = append(errs, svc.Stop())
	return errors.Join(errs...)
}

// rules loads the configured rules file, or the built-in rules when none is
// set.
func (a *app) rules() (*translate.Set, error) {
	if a.cfg.Rules == "" {
		return translate.Default(), nil
	}
	set, err := translate.LoadFile(a.cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return set, nil
}
