// Package metrics exposes scanner counters for Prometheus scraping.
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scanner collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	scansTotal    *prometheus.CounterVec
	scansRunning  prometheus.Gauge
	scansQueued   prometheus.Gauge
	requestsTotal *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
	passiveTotal  *prometheus.CounterVec
	responseTime  prometheus.Histogram
}

// New creates and registers all collectors.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxscan_scans_total",
			Help: "Scan job transitions by status",
		},
		[]string{"status"},
	)
	m.scansRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fluxscan_scans_running",
		Help: "Scan jobs currently running",
	})
	m.scansQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fluxscan_scans_queued",
		Help: "Scan jobs waiting for a slot",
	})
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxscan_requests_total",
			Help: "Mutated requests dispatched by outcome",
		},
		[]string{"category", "outcome"},
	)
	m.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxscan_findings_total",
			Help: "Active findings by category and severity",
		},
		[]string{"category", "severity"},
	)
	m.passiveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxscan_passive_findings_total",
			Help: "Passive findings by check",
		},
		[]string{"check"},
	)
	m.responseTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fluxscan_response_time_seconds",
		Help:    "Response time of mutated requests",
		Buckets: prometheus.DefBuckets,
	})

	for _, c := range []prometheus.Collector{
		m.scansTotal, m.scansRunning, m.scansQueued,
		m.requestsTotal, m.findingsTotal, m.passiveTotal, m.responseTime,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ScanStatus records a job transition and the current queue occupancy.
func (m *Metrics) ScanStatus(status types.ScanStatus, queued, running int) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(status.String()).Inc()
	m.scansQueued.Set(float64(queued))
	m.scansRunning.Set(float64(running))
}

// Request records one dispatched mutation.
func (m *Metrics) Request(category types.Category, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		m.responseTime.Observe(elapsed.Seconds())
	}
	m.requestsTotal.WithLabelValues(category.String(), outcome).Inc()
}

// Finding records one active finding.
func (m *Metrics) Finding(category types.Category, severity types.Severity) {
	if m == nil {
		return
	}
	m.findingsTotal.WithLabelValues(category.String(), severity.String()).Inc()
}

// Passive records count findings from one passive check.
func (m *Metrics) Passive(check string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.passiveTotal.WithLabelValues(check).Add(float64(count))
}
