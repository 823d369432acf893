package requester

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Echo-Agent", r.UserAgent())
		w.Header().Set("X-Echo-Token", r.Header.Get("X-Token"))
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprintf(w, "%s %s?%s %s", r.Method, r.URL.Path, r.URL.RawQuery, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Send(t *testing.T) {
	srv := echoServer(t)
	client := NewClient(&ClientOptions{Timeout: 5 * time.Second, MaxConnsPerHost: 4, UserAgent: "fluxscan-test"})

	req := &types.Request{
		Method:  "POST",
		URL:     srv.URL + "/submit",
		Query:   []types.Param{{Name: "q", Value: "<svg>"}},
		Headers: types.Headers{{Name: "X-Token", Value: "abc"}, {Name: "Content-Length", Value: "999"}},
		Body:    []byte("a=1"),
	}

	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, req.ID, resp.RequestID)
	assert.Same(t, req, resp.Request)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "POST /submit?q=%3Csvg%3E a=1", resp.BodyString())
	assert.Equal(t, "text/plain", resp.ContentType())

	agent, ok := resp.Header("x-echo-agent")
	require.True(t, ok)
	assert.Equal(t, "fluxscan-test", agent)
	token, _ := resp.Header("X-Echo-Token")
	assert.Equal(t, "abc", token)

	stats := client.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Zero(t, stats.FailedRequests)
}

func TestClient_SendKeepsRequestID(t *testing.T) {
	srv := echoServer(t)
	client := NewClient(nil)

	resp, err := client.Send(context.Background(), &types.Request{ID: "fixed", Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "fixed", resp.RequestID)
}

func TestClient_SendErrors(t *testing.T) {
	client := NewClient(&ClientOptions{Timeout: time.Second})

	_, err := client.Send(context.Background(), &types.Request{Method: "GET"})
	assert.ErrorIs(t, err, ErrMissingURL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Send(ctx, &types.Request{Method: "GET", URL: "http://127.0.0.1:1/"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = client.Send(context.Background(), &types.Request{Method: "GET", URL: "http://127.0.0.1:1/"})
	assert.Error(t, err)
	assert.Equal(t, int64(1), client.Stats().FailedRequests)
}

func TestClient_RateLimit(t *testing.T) {
	srv := echoServer(t)
	client := NewClient(&ClientOptions{Timeout: 5 * time.Second, RPS: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, &types.Request{Method: "GET", URL: srv.URL})
	require.NoError(t, err)

	// The burst of one is spent; the next token is a second away.
	_, err = client.Send(ctx, &types.Request{Method: "GET", URL: srv.URL})
	assert.Error(t, err)
}

func TestWorkerPool(t *testing.T) {
	pool, err := NewWorkerPool(&WorkerPoolOptions{Size: 2})
	require.NoError(t, err)
	defer pool.Shutdown()

	var (
		active, peak atomic.Int32
		mu           sync.Mutex
		done         int
	)
	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Submit(func() {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			mu.Lock()
			done++
			mu.Unlock()
		}))
	}
	pool.Wait()

	assert.Equal(t, 6, done)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Capacity)
	assert.Equal(t, int64(6), stats.Submitted)
	assert.Equal(t, int64(6), stats.Completed)
}

func TestWorkerPool_PanicAndShutdown(t *testing.T) {
	pool, err := NewWorkerPool(&WorkerPoolOptions{Size: 1})
	require.NoError(t, err)

	require.NoError(t, pool.Submit(func() { panic("boom") }))
	pool.Wait()

	assert.Eventually(t, func() bool { return pool.Stats().Panics == 1 }, time.Second, 5*time.Millisecond)

	pool.Shutdown()
	assert.Error(t, pool.Submit(func() {}))
}

func TestClient_Send_DecodesCompressedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		page := "<p>" + r.URL.Query().Get("q") + "</p>"
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			io.WriteString(w, page)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		io.WriteString(zw, page)
		zw.Close()
	}))
	t.Cleanup(srv.Close)

	client := NewClient(nil)
	for _, enc := range []string{"", "gzip, deflate, br"} {
		req := &types.Request{
			Method: "GET",
			URL:    srv.URL + "/",
			Query:  []types.Param{{Name: "q", Value: "<svg onload=alert(1)>"}},
		}
		if enc != "" {
			req.Headers = types.Headers{{Name: "Accept-Encoding", Value: enc}}
		}

		resp, err := client.Send(context.Background(), req)
		require.NoError(t, err, enc)
		assert.Equal(t, "<p><svg onload=alert(1)></p>", resp.BodyString(), enc)
	}
}

func TestClient_Send_RepeatedHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := r.Cookie("a")
		b, _ := r.Cookie("b")
		fmt.Fprintf(w, "%s|%v|%v", strings.Join(r.Header.Values("X-Forwarded-For"), ","), a != nil, b != nil)
	}))
	t.Cleanup(srv.Close)

	req := &types.Request{
		Method: "GET",
		URL:    srv.URL + "/",
		Headers: types.Headers{
			{Name: "X-Forwarded-For", Value: "10.0.0.1"},
			{Name: "X-Forwarded-For", Value: "10.0.0.2"},
			{Name: "Cookie", Value: "a=1"},
			{Name: "Cookie", Value: "b=2"},
		},
	}
	resp, err := NewClient(nil).Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1,10.0.0.2|true|true", resp.BodyString())
}

func TestClient_Send_KeepsObservedQuery(t *testing.T) {
	srv := echoServer(t)

	base, err := types.NewBaseRequest("GET", srv.URL+"/p?tok=%zz&debug&b=1", nil, nil)
	require.NoError(t, err)
	req := base.ToRequest()
	req.Query[2] = req.Query[2].WithValue("<x>")

	resp, err := NewClient(nil).Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "GET /p?tok=%zz&debug&b=%3Cx%3E ", resp.BodyString())
}
