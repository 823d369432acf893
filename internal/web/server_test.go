package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fluxfuzzer/fluxscan/internal/history"
	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/internal/passive"
	"github.com/fluxfuzzer/fluxscan/internal/queue"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler resolves ids against a history store
type fakeScheduler struct {
	store *history.Store
	jobs  []queue.Job
}

func (f *fakeScheduler) OnScanRequested(ctx context.Context, id string) (string, error) {
	base, ok := f.store.GetRequest(ctx, id)
	if !ok {
		return "", fmt.Errorf("%w: %s", queue.ErrRequestNotFound, id)
	}
	scanID := "scan-" + id
	f.jobs = append(f.jobs, queue.Job{ScanID: scanID, BaseRequestID: id, BaseRequestURL: base.FullURL()})
	return scanID, nil
}

func (f *fakeScheduler) Jobs() []queue.Job {
	return f.jobs
}

type fixture struct {
	server *Server
	store  *history.Store
	hub    *Hub
	sched  *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)

	store := history.New(nil)
	hub := NewHub(nil)
	sched := &fakeScheduler{store: store}
	t.Cleanup(func() {
		store.Close()
		hub.Close()
	})

	s := NewServer(Options{
		Store:     store,
		Scheduler: sched,
		Passive:   passive.New(hub, passive.Options{Metrics: m}),
		Hub:       hub,
		Metrics:   m.Handler(),
	})
	return &fixture{server: s, store: store, hub: hub, sched: sched}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const exchange = `{
  "request": {
    "id": "req-1",
    "method": "GET",
    "url": "http://app.local/search?q=needle",
    "headers": [{"name": "Accept", "value": "*/*"}]
  },
  "response": {
    "statusCode": 200,
    "headers": [{"name": "Server", "value": "nginx/1.21.6"}],
    "body": "results for needle"
  }
}`

func TestExchange_RecordsAndRunsPassiveChecks(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/exchanges", exchange)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		RequestID string `json:"requestId"`
		Issues    int    `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "req-1", out.RequestID)
	// six missing headers, one reflection, one version leak
	assert.Equal(t, 8, out.Issues)

	base, ok := f.store.GetRequest(context.Background(), "req-1")
	require.True(t, ok)
	assert.Equal(t, "http://app.local/search", base.URL)
	assert.Equal(t, []types.Param{{Name: "q", Value: "needle"}}, base.Query)

	issues := f.hub.Issues()
	require.Len(t, issues, 8)
	for _, issue := range issues {
		assert.Equal(t, "req-1", issue.AffectedRequestID)
	}

	resp, body = f.do(t, http.MethodGet, "/api/issues", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []types.Issue
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 8)
	assert.Equal(t, "Reflected Input Parameter: q", listed[6].Title)
}

func TestExchange_WithoutResponse(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/exchanges", `{"request":{"method":"POST","url":"http://app.local/login","body":"u=a"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	id := out["requestId"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.store.Len())
	assert.Empty(t, f.hub.Issues())
}

func TestExchange_BadInput(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/exchanges", `{"request":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/exchanges", `{"request":{"url":"/relative"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScan_Trigger(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/exchanges", exchange)

	resp, body := f.do(t, http.MethodPost, "/api/scans", `{"requestId":"req-1"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"scanId":"scan-req-1"}`, string(body))

	resp, _ = f.do(t, http.MethodPost, "/api/scans", `{"requestId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/scans", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jobs []queue.Job
	require.NoError(t, json.Unmarshal(body, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "http://app.local/search?q=needle", jobs[0].BaseRequestURL)
}

func TestMetricsAndDashboard(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/exchanges", exchange)

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "fluxscan_passive_findings_total")

	resp, body = f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>FluxScan</title>")

	resp, _ = f.do(t, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestHub_RecordsStatuses(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	hub.Notify(types.StatusUpdate{ScanID: "scan-1", Status: types.StatusQueued})
	hub.Notify(types.StatusUpdate{ScanID: "scan-2", Status: types.StatusQueued})
	hub.Notify(types.StatusUpdate{ScanID: "scan-1", Status: types.StatusRunning})

	got := hub.Statuses()
	require.Len(t, got, 2)
	assert.Equal(t, "scan-1", got[0].ScanID)
	assert.Equal(t, types.StatusRunning, got[0].Status)
	assert.Equal(t, types.StatusQueued, got[1].Status)

	// Publishing never blocks, even with nobody draining the channel.
	for i := 0; i < 1000; i++ {
		hub.Create(types.Issue{Title: "x"})
	}
	assert.Len(t, hub.Issues(), 1000)
}

func TestHub_HoldsTerminalStatusWhenFull(t *testing.T) {
	// No broadcast loop: the channel stays full.
	hub := &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 1),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		last:      make(map[string]types.StatusUpdate),
	}

	hub.Notify(types.StatusUpdate{ScanID: "scan-1", Status: types.StatusRunning})
	hub.Create(types.Issue{Title: "dropped"})
	hub.Notify(types.StatusUpdate{ScanID: "scan-1", Status: types.StatusCompleted})

	require.Len(t, hub.pending, 1)
	assert.Contains(t, string(hub.pending[0]), `"type":"status"`)
	assert.Contains(t, string(hub.pending[0]), `"Completed"`)
	assert.Contains(t, string(<-hub.broadcast), `"Running"`)
	assert.Len(t, hub.broadcast, 0)

	hub.flush()
	assert.Empty(t, hub.pending)
}
