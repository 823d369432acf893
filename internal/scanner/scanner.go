// Package scanner runs the active mutation sweep for one base request.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/fluxfuzzer/fluxscan/internal/analyzer"
	"github.com/fluxfuzzer/fluxscan/internal/issues"
	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/internal/mutator"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Error definitions
var (
	// ErrDispatch wraps a failed send of a single mutation. It never aborts a sweep.
	ErrDispatch = errors.New("dispatch failed")
	// ErrSweepPanic reports an unexpected failure inside a sweep.
	ErrSweepPanic = errors.New("sweep failed unexpectedly")
)

// DefaultThrottle is the pause after every dispatched mutation
const DefaultThrottle = 500 * time.Millisecond

// Sender dispatches one request. Timeouts are the sender's responsibility:
// a Send that never returns stalls the sweep that issued it.
type Sender interface {
	Send(ctx context.Context, req *types.Request) (*types.Response, error)
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(ctx context.Context, req *types.Request) (*types.Response, error)

// Send calls f(ctx, req)
func (f SenderFunc) Send(ctx context.Context, req *types.Request) (*types.Response, error) {
	return f(ctx, req)
}

// Options configures a Scanner
type Options struct {
	PluginID string
	Throttle time.Duration // 0 selects DefaultThrottle, negative disables
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Scanner drives mutation × analysis sweeps
type Scanner struct {
	engine   *mutator.Engine
	sender   Sender
	sink     issues.Sink
	pluginID string
	throttle time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a scanner
func New(engine *mutator.Engine, sender Sender, sink issues.Sink, opts Options) *Scanner {
	if opts.PluginID == "" {
		opts.PluginID = issues.DefaultPluginID
	}
	if opts.Throttle == 0 {
		opts.Throttle = DefaultThrottle
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if sink == nil {
		sink = issues.Discard
	}
	return &Scanner{
		engine:   engine,
		sender:   sender,
		sink:     sink,
		pluginID: opts.PluginID,
		throttle: opts.Throttle,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Sweep dispatches every mutation of base one at a time, pausing for the
// throttle after each dispatch. Failed sends are logged and skipped. A
// non-nil error means the sweep itself failed; findings already delivered
// stay delivered.
func (s *Scanner) Sweep(ctx context.Context, scanID string, base *types.BaseRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked",
				slog.String("scan_id", scanID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrSweepPanic, r)
		}
	}()

	seq := s.engine.Mutations(base)
	s.logger.Info("sweep started",
		slog.String("scan_id", scanID),
		slog.String("url", base.FullURL()),
		slog.Int("mutations", seq.Count()),
	)
	if err := seq.Err(); err != nil {
		s.logger.Warn("body mutations skipped",
			slog.String("scan_id", scanID),
			slog.String("error", err.Error()),
		)
	}

	found := 0
	it := seq.Iterator()
	for {
		m, ok := it.Next()
		if !ok {
			break
		}

		issue, err := s.dispatch(ctx, base, m)
		switch {
		case err != nil:
			s.logger.Warn("mutation dispatch failed",
				slog.String("scan_id", scanID),
				slog.String("kind", m.Kind.String()),
				slog.String("parameter", m.Parameter),
				slog.String("error", err.Error()),
			)
		case issue != nil:
			found++
			s.sink.Create(*issue)
			s.logger.Info("issue found",
				slog.String("scan_id", scanID),
				slog.String("title", issue.Title),
				slog.String("payload", m.Payload),
			)
		}

		if err := s.pause(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("sweep finished",
		slog.String("scan_id", scanID),
		slog.Int("issues", found),
	)
	return nil
}

// dispatch sends one mutation and analyzes its response.
func (s *Scanner) dispatch(ctx context.Context, base *types.BaseRequest, m *mutator.Mutation) (*types.Issue, error) {
	start := time.Now()
	resp, err := s.sender.Send(ctx, m.Request)
	s.metrics.Request(m.Category, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDispatch, m.Request.FullURL(), err)
	}
	if resp.Request == nil {
		resp.Request = m.Request
	}

	finding := analyzer.Analyze(m.PayloadRef(), resp)
	if finding == nil {
		return nil, nil
	}
	finding.Parameter = m.Parameter
	s.metrics.Finding(m.Category, finding.Severity)

	requestID := resp.RequestID
	if requestID == "" {
		requestID = m.Request.ID
	}
	issue := NewIssue(s.pluginID, base, m, finding, requestID)
	return &issue, nil
}

// pause waits for the throttle delay or context cancellation.
func (s *Scanner) pause(ctx context.Context) error {
	if s.throttle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.throttle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
