package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxfuzzer/fluxscan/internal/config"
	"github.com/fluxfuzzer/fluxscan/internal/history"
	"github.com/fluxfuzzer/fluxscan/internal/issues"
	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/internal/mutator"
	"github.com/fluxfuzzer/fluxscan/internal/passive"
	"github.com/fluxfuzzer/fluxscan/internal/payloads"
	"github.com/fluxfuzzer/fluxscan/internal/queue"
	"github.com/fluxfuzzer/fluxscan/internal/requester"
	"github.com/fluxfuzzer/fluxscan/internal/scanner"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// app holds the wired scanner components shared by scan and serve
type app struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	client  *requester.Client
	store   *history.Store
	passive *passive.Analyzer
	manager *queue.Manager
}

func newApp(cfg *config.Config, logger *slog.Logger, sink issues.Sink, notifier queue.Notifier) (*app, error) {
	catalog := payloads.Default()
	if cfg.Scanner.PayloadsFile != "" {
		var err error
		catalog, err = payloads.Load(cfg.Scanner.PayloadsFile)
		if err != nil {
			return nil, err
		}
	}

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	client := requester.NewClient(&requester.ClientOptions{
		Timeout:             cfg.Engine.Timeout,
		MaxConnsPerHost:     cfg.Engine.MaxConnsPerHost,
		MaxIdleConnDuration: 10 * time.Second,
		UserAgent:           cfg.Engine.UserAgent,
		SkipTLSVerify:       cfg.Engine.SkipTLSVerify,
		RPS:                 cfg.Engine.RPS,
	}).WithLogger(logger)

	store := history.New(&history.Config{
		Capacity:        cfg.History.Capacity,
		TTL:             cfg.History.TTL,
		CleanupInterval: time.Minute,
	})

	// A configured throttle of zero disables the pause.
	throttle := cfg.Scanner.Throttle
	if throttle == 0 {
		throttle = -1
	}
	sc := scanner.New(mutator.NewEngine(catalog, logger), client, sink, scanner.Options{
		PluginID: cfg.Scanner.PluginID,
		Throttle: throttle,
		Logger:   logger,
		Metrics:  m,
	})

	manager, err := queue.New(queue.Options{
		MaxConcurrent: cfg.Scanner.MaxConcurrentScans,
		Lookup:        store,
		Sweeper:       sc,
		Notifier:      notifier,
		Logger:        logger,
		Metrics:       m,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	for _, cat := range types.Categories {
		logger.Debug("payloads loaded",
			slog.String("category", cat.String()),
			slog.Int("count", len(catalog.Values(cat))),
		)
	}
	logger.Debug("scanner ready",
		slog.Int("payloads", catalog.Size()),
		slog.Int("max_concurrent_scans", cfg.Scanner.MaxConcurrentScans),
		slog.Duration("throttle", cfg.Scanner.Throttle),
	)

	return &app{
		logger:  logger,
		metrics: m,
		client:  client,
		store:   store,
		passive: passive.New(sink, passive.Options{PluginID: cfg.Scanner.PluginID, Logger: logger, Metrics: m}),
		manager: manager,
	}, nil
}

// observe records base, sends it once unmodified and runs the passive
// checks on the response. It returns the request id.
func (a *app) observe(ctx context.Context, base *types.BaseRequest) (string, error) {
	id := a.store.Put(base)

	req := base.ToRequest()
	req.ID = id
	resp, err := a.client.Send(ctx, req)
	if err != nil {
		return id, fmt.Errorf("baseline request: %w", err)
	}
	a.passive.OnResponseObserved(resp)
	return id, nil
}

// Close stops the queue and the history store
func (a *app) Close() {
	a.manager.Stop()
	a.store.Close()
}
