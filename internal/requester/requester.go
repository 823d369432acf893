package requester

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// Error definitions
var (
	ErrMissingURL = &ClientError{Message: "request has no URL"}
)

// ClientError is returned for requests the client refuses to send
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

// Client sends one request at a time per caller. It is safe for
// concurrent use by many scans.
type Client struct {
	client    *fasthttp.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger

	// Stats
	totalRequests  atomic.Int64
	failedRequests atomic.Int64
	startTime      time.Time
}

// NewClient creates a new HTTP client
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = DefaultClientOptions()
	}

	c := &Client{
		client:    newFastClient(opts),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    slog.Default(),
		startTime: time.Now(),
	}
	if opts.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS)
	}
	return c
}

// WithLogger sets the logger used for debug output
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Send dispatches req and waits for the full response. A request without an
// ID is assigned a fresh one. The deadline is the earlier of the client
// timeout and the context deadline.
func (c *Client) Send(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req == nil || req.URL == "" {
		return nil, ErrMissingURL
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	c.buildRequest(req, freq)

	start := time.Now()
	err := c.client.DoDeadline(freq, fresp, deadline)
	elapsed := time.Since(start)
	c.totalRequests.Add(1)

	if err != nil {
		c.failedRequests.Add(1)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.FullURL(), err)
	}

	c.logger.Debug("request sent",
		slog.String("request_id", req.ID),
		slog.String("method", req.Method),
		slog.Int("status", fresp.StatusCode()),
		slog.Duration("elapsed", elapsed),
	)
	return convertResponse(fresp, req, elapsed), nil
}

// ClientStats holds request counters
type ClientStats struct {
	TotalRequests  int64
	FailedRequests int64
	RequestsPerSec float64
	Uptime         time.Duration
}

// Stats returns current statistics
func (c *Client) Stats() ClientStats {
	uptime := time.Since(c.startTime)
	total := c.totalRequests.Load()
	rps := float64(0)
	if uptime.Seconds() > 0 {
		rps = float64(total) / uptime.Seconds()
	}
	return ClientStats{
		TotalRequests:  total,
		FailedRequests: c.failedRequests.Load(),
		RequestsPerSec: rps,
		Uptime:         uptime,
	}
}
