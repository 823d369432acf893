package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/fluxscan/internal/web"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host API for proxy-fed scanning",
		Long: `Start the HTTP API. Observed exchanges posted to /api/exchanges get
passive checks; /api/scans queues an active scan. Status updates and
issues stream over /ws.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Web.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(os.Stderr, verbose || cfg.Output.Verbose)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := web.NewHub(logger)
			defer hub.Close()

			a, err := newApp(cfg, logger, hub, hub)
			if err != nil {
				return err
			}
			defer a.Close()
			a.manager.Start(ctx)

			opts := web.Options{
				Store:     a.store,
				Scheduler: a.manager,
				Passive:   a.passive,
				Hub:       hub,
				Logger:    logger,
			}
			if cfg.Web.EnableMetrics {
				opts.Metrics = a.metrics.Handler()
			}
			server := web.NewServer(opts)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", cfg.Web.Addr))
				errCh <- server.Start(cfg.Web.Addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			if err := server.Stop(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8090)")
	return cmd
}
