// Package report collects issues and scan outcomes and renders them as
// JSON or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Statistics holds run statistics
type Statistics struct {
	ScansCompleted int           `json:"scans_completed"`
	ScansFailed    int           `json:"scans_failed"`
	TotalRequests  int64         `json:"total_requests"`
	FailedRequests int64         `json:"failed_requests"`
	IssuesFound    int           `json:"issues_found"`
	Duration       time.Duration `json:"duration"`
}

// MarshalJSON renders Duration as a string
func (s Statistics) MarshalJSON() ([]byte, error) {
	type Alias Statistics
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(s),
		Duration: s.Duration.String(),
	})
}

// Report is the rendered result of a run
type Report struct {
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	TargetURL   string    `json:"target_url"`

	Statistics Statistics     `json:"statistics"`
	Scans      []ScanSummary  `json:"scans"`
	Issues     []types.Issue  `json:"issues"`
	Severity   map[string]int `json:"severity_counts"`
}

// ScanSummary is the final status of one scan
type ScanSummary struct {
	ScanID         string           `json:"scanId"`
	BaseRequestURL string           `json:"baseRequestUrl"`
	Status         types.ScanStatus `json:"status"`
}

// NewReport creates an empty report
func NewReport(title, targetURL string) *Report {
	return &Report{
		Title:       title,
		Version:     "1.0",
		GeneratedAt: time.Now(),
		TargetURL:   targetURL,
		Issues:      make([]types.Issue, 0),
		Severity:    make(map[string]int),
	}
}

// AddIssue adds an issue to the report
func (r *Report) AddIssue(issue types.Issue) {
	r.Issues = append(r.Issues, issue)
	r.Severity[issue.Severity.String()]++
	r.Statistics.IssuesFound = len(r.Issues)
}

// SortIssues orders issues by descending severity, keeping arrival order
// within a severity.
func (r *Report) SortIssues() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		return r.Issues[i].Severity > r.Issues[j].Severity
	})
}

// FilterBySeverity returns issues with at least the given severity
func (r *Report) FilterBySeverity(min types.Severity) []types.Issue {
	var filtered []types.Issue
	for _, issue := range r.Issues {
		if issue.Severity >= min {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// Collector records issues and terminal scan statuses while a run is in
// progress. It implements issues.Sink and queue.Notifier.
type Collector struct {
	mu     sync.Mutex
	start  time.Time
	issues []types.Issue
	scans  map[string]*ScanSummary
	order  []string
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		start: time.Now(),
		scans: make(map[string]*ScanSummary),
	}
}

// Create records an issue
func (c *Collector) Create(issue types.Issue) {
	c.mu.Lock()
	c.issues = append(c.issues, issue)
	c.mu.Unlock()
}

// Notify records the latest status of a scan
func (c *Collector) Notify(update types.StatusUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.scans[update.ScanID]
	if !ok {
		s = &ScanSummary{ScanID: update.ScanID}
		c.scans[update.ScanID] = s
		c.order = append(c.order, update.ScanID)
	}
	s.BaseRequestURL = update.BaseRequestURL
	s.Status = update.Status
}

// Report builds a report from everything collected so far
func (c *Collector) Report(title, targetURL string) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := NewReport(title, targetURL)
	for _, issue := range c.issues {
		r.AddIssue(issue)
	}
	r.SortIssues()

	for _, id := range c.order {
		s := *c.scans[id]
		r.Scans = append(r.Scans, s)
		switch s.Status {
		case types.StatusCompleted:
			r.Statistics.ScansCompleted++
		case types.StatusError:
			r.Statistics.ScansFailed++
		}
	}
	r.Statistics.Duration = time.Since(c.start)
	return r
}

// Generator is the interface for report generators
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager manages report generation
type Manager struct {
	generators map[string]Generator
}

// NewManager creates a manager with the json, jsonl and html generators
func NewManager() *Manager {
	m := &Manager{generators: make(map[string]Generator)}
	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("jsonl", &JSONLGenerator{})
	m.RegisterGenerator("html", NewHTMLGenerator())
	return m
}

// RegisterGenerator registers a generator
func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// WriteToWriter generates a report and writes to the given writer
func (m *Manager) WriteToWriter(report *Report, format string, w io.Writer) error {
	gen, ok := m.generators[format]
	if !ok {
		return fmt.Errorf("unknown report format: %s", format)
	}
	return gen.Generate(report, w)
}

// WriteFile generates a report into path, creating parent directories.
// A path without an extension gets the generator's. It returns the path
// written.
func (m *Manager) WriteFile(report *Report, format, path string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}
	if filepath.Ext(path) == "" {
		path += "." + gen.Extension()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	return path, nil
}
