package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ScanStatus(types.StatusQueued, 1, 0)
	m.ScanStatus(types.StatusRunning, 0, 1)
	m.Request(types.XSS, nil, 20*time.Millisecond)
	m.Request(types.XSS, errors.New("boom"), 0)
	m.Finding(types.SQLi, types.High)
	m.Passive("headers", 3)
	m.Passive("version", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("Queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansRunning))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.scansQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("xss", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findingsTotal.WithLabelValues("sqli", "High")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.passiveTotal.WithLabelValues("headers")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScanStatus(types.StatusCompleted, 0, 0)
		m.Request(types.SSTI, nil, time.Second)
		m.Finding(types.XSS, types.Low)
		m.Passive("headers", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.Finding(types.XSS, types.High)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "fluxscan_findings_total")
}
