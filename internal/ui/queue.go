package ui

import (
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// QueueView rebuilds the scan queue from status notifications. Each update
// replaces the previous one for the same scan id; scans keep the position
// of their first notification.
type QueueView struct {
	entries map[string]*types.StatusUpdate
	order   []string
}

// NewQueueView creates an empty view
func NewQueueView() *QueueView {
	return &QueueView{entries: make(map[string]*types.StatusUpdate)}
}

// Apply upserts update by scan id
func (q *QueueView) Apply(update types.StatusUpdate) {
	if e, ok := q.entries[update.ScanID]; ok {
		*e = update
		return
	}
	u := update
	q.entries[update.ScanID] = &u
	q.order = append(q.order, update.ScanID)
}

// Entries returns every scan in first-seen order
func (q *QueueView) Entries() []types.StatusUpdate {
	out := make([]types.StatusUpdate, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.entries[id])
	}
	return out
}

// Get returns the latest update for scanID
func (q *QueueView) Get(scanID string) (types.StatusUpdate, bool) {
	e, ok := q.entries[scanID]
	if !ok {
		return types.StatusUpdate{}, false
	}
	return *e, true
}

// Counts returns the number of scans in each status
func (q *QueueView) Counts() map[types.ScanStatus]int {
	counts := make(map[types.ScanStatus]int)
	for _, e := range q.entries {
		counts[e.Status]++
	}
	return counts
}

// Done reports whether at least one scan exists and all are terminal
func (q *QueueView) Done() bool {
	if len(q.entries) == 0 {
		return false
	}
	for _, e := range q.entries {
		if !e.Status.Terminal() {
			return false
		}
	}
	return true
}
