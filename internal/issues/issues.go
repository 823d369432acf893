// Package issues defines the sink that receives scanner findings.
package issues

import (
	"sync"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// DefaultPluginID tags issues when no plugin id is configured.
const DefaultPluginID = "fluxscan"

// Sink receives one record per finding. Delivery is fire-and-forget; a
// sink must not block for long because scans call it inline.
type Sink interface {
	Create(issue types.Issue)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(issue types.Issue)

// Create calls f(issue)
func (f SinkFunc) Create(issue types.Issue) {
	f(issue)
}

// Fanout delivers each issue to every non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(issue types.Issue) {
		for _, s := range active {
			s.Create(issue)
		}
	})
}

// Discard drops every issue.
var Discard Sink = SinkFunc(func(types.Issue) {})

// Recorder keeps every issue in memory, safe for concurrent use
type Recorder struct {
	mu     sync.RWMutex
	issues []types.Issue
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Create appends issue
func (r *Recorder) Create(issue types.Issue) {
	r.mu.Lock()
	r.issues = append(r.issues, issue)
	r.mu.Unlock()
}

// Issues returns a copy of the recorded issues
func (r *Recorder) Issues() []types.Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Len returns the number of recorded issues
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.issues)
}
