// Package requester sends mutated requests over fasthttp and runs scan jobs
// on a bounded worker pool.
package requester

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/valyala/fasthttp"
)

// ClientOptions configures the HTTP client
type ClientOptions struct {
	Timeout             time.Duration
	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
	UserAgent           string
	SkipTLSVerify       bool
	RPS                 int // 0 disables the global rate limit
}

// DefaultClientOptions returns sensible defaults
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Timeout:             10 * time.Second,
		MaxConnsPerHost:     50,
		MaxIdleConnDuration: 10 * time.Second,
		UserAgent:           "FluxScan/1.0",
		SkipTLSVerify:       true,
	}
}

func newFastClient(opts *ClientOptions) *fasthttp.Client {
	return &fasthttp.Client{
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		MaxIdleConnDuration: opts.MaxIdleConnDuration,
		ReadTimeout:         opts.Timeout,
		WriteTimeout:        opts.Timeout,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		},
	}
}

// skipHeaders are computed by fasthttp from the request itself.
var skipHeaders = map[string]struct{}{
	"content-length":    {},
	"connection":        {},
	"transfer-encoding": {},
}

// buildRequest copies req into a pooled fasthttp request.
func (c *Client) buildRequest(req *types.Request, freq *fasthttp.Request) {
	freq.SetRequestURI(req.FullURL())
	freq.Header.SetMethod(req.Method)
	freq.Header.SetUserAgent(c.userAgent)

	for _, h := range req.Headers {
		if _, skip := skipHeaders[strings.ToLower(h.Name)]; skip {
			continue
		}
		freq.Header.Add(h.Name, h.Value)
	}

	if len(req.Body) > 0 {
		freq.SetBody(req.Body)
	}
}

// convertResponse copies fresp; its buffers are reused after release.
// The body is decoded according to Content-Encoding; unsupported or
// corrupt encodings leave it as received.
func convertResponse(fresp *fasthttp.Response, req *types.Request, elapsed time.Duration) *types.Response {
	var headers types.Headers
	fresp.Header.VisitAll(func(key, value []byte) {
		headers = append(headers, types.Param{Name: string(key), Value: string(value)})
	})

	raw, err := fresp.BodyUncompressed()
	if err != nil {
		raw = fresp.Body()
	}
	body := make([]byte, len(raw))
	copy(body, raw)

	return &types.Response{
		RequestID:    req.ID,
		StatusCode:   fresp.StatusCode(),
		Headers:      headers,
		Body:         body,
		ResponseTime: elapsed,
		Request:      req,
	}
}
