// Package queue schedules active scans: one job per base request, strictly
// FIFO, never more than a fixed number running at once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fluxfuzzer/fluxscan/internal/metrics"
	"github.com/fluxfuzzer/fluxscan/internal/requester"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/google/uuid"
)

// DefaultMaxConcurrent is the default number of jobs allowed to run at once
const DefaultMaxConcurrent = 5

// Error definitions
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrMissingLookup   = errors.New("queue: lookup is required")
	ErrMissingSweeper  = errors.New("queue: sweeper is required")
)

// Notifier receives every status transition. It is called with the
// manager's lock held, so it must return quickly and must not call back
// into the Manager.
type Notifier interface {
	Notify(update types.StatusUpdate)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(update types.StatusUpdate)

// Notify calls f(update)
func (f NotifierFunc) Notify(update types.StatusUpdate) {
	f(update)
}

// Fanout delivers each update to every non-nil notifier in order.
func Fanout(notifiers ...Notifier) Notifier {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return NotifierFunc(func(update types.StatusUpdate) {
		for _, n := range active {
			n.Notify(update)
		}
	})
}

// Lookup resolves a request id to a stored base request
type Lookup interface {
	GetRequest(ctx context.Context, id string) (*types.BaseRequest, bool)
}

// LookupFunc adapts a function to the Lookup interface
type LookupFunc func(ctx context.Context, id string) (*types.BaseRequest, bool)

// GetRequest calls f(ctx, id)
func (f LookupFunc) GetRequest(ctx context.Context, id string) (*types.BaseRequest, bool) {
	return f(ctx, id)
}

// Sweeper runs the active sweep for one job
type Sweeper interface {
	Sweep(ctx context.Context, scanID string, base *types.BaseRequest) error
}

// SweepFunc adapts a function to the Sweeper interface
type SweepFunc func(ctx context.Context, scanID string, base *types.BaseRequest) error

// Sweep calls f(ctx, scanID, base)
func (f SweepFunc) Sweep(ctx context.Context, scanID string, base *types.BaseRequest) error {
	return f(ctx, scanID, base)
}

// Options configures a Manager
type Options struct {
	MaxConcurrent int // 0 selects DefaultMaxConcurrent
	Lookup        Lookup
	Sweeper       Sweeper
	Notifier      Notifier
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Job is a snapshot of one scan in the active set
type Job struct {
	ScanID         string           `json:"scanId"`
	BaseRequestID  string           `json:"baseRequestId"`
	BaseRequestURL string           `json:"baseRequestUrl"`
	Status         types.ScanStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submittedAt"`
}

func (j *Job) update() types.StatusUpdate {
	return types.StatusUpdate{
		ScanID:         j.ScanID,
		Status:         j.Status,
		BaseRequestID:  j.BaseRequestID,
		BaseRequestURL: j.BaseRequestURL,
	}
}

// Manager owns the active set and the running counter. All mutation of
// either happens under mu; only the coordinator goroutine promotes jobs.
type Manager struct {
	ceiling  int
	lookup   Lookup
	sweeper  Sweeper
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pool     *requester.WorkerPool

	mu      sync.Mutex
	jobs    []*Job // submission order
	byBase  map[string]*Job
	running int
	drained chan struct{} // closed while the active set is empty
	stopped bool

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a manager. Start must be called before jobs run.
func New(opts Options) (*Manager, error) {
	if opts.Lookup == nil {
		return nil, ErrMissingLookup
	}
	if opts.Sweeper == nil {
		return nil, ErrMissingSweeper
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(types.StatusUpdate) {})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pool, err := requester.NewWorkerPool(&requester.WorkerPoolOptions{
		Size:   opts.MaxConcurrent,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	drained := make(chan struct{})
	close(drained)

	return &Manager{
		ceiling:  opts.MaxConcurrent,
		lookup:   opts.Lookup,
		sweeper:  opts.Sweeper,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		pool:     pool,
		byBase:   make(map[string]*Job),
		drained:  drained,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the coordinator. Running sweeps share ctx; cancelling it
// has the same effect as Stop on the coordinator but leaves queued jobs
// in place.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.ctx, m.cancel = context.WithCancel(ctx)
		go m.run()
		m.signal()
		m.logger.Info("scan queue started", slog.Int("max_concurrent", m.ceiling))
	})
}

// Stop shuts the manager down. Running sweeps see a cancelled context;
// queued jobs are marked Error. Stop blocks until every job is terminal.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		started := m.cancel != nil
		if started {
			m.cancel()
			<-m.done
		}
		m.pool.Shutdown()

		m.mu.Lock()
		for _, job := range append([]*Job(nil), m.jobs...) {
			if job.Status == types.StatusQueued {
				m.finishLocked(job, types.StatusError)
			}
		}
		m.mu.Unlock()

		m.logger.Info("scan queue stopped")
	})
}

// Submit queues a scan of the given base request and returns its scan id.
// A base request that already has a queued or running job gets that job's
// id back and nothing else happens.
func (m *Manager) Submit(baseRequestID, baseRequestURL string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.byBase[baseRequestID]; ok {
		m.logger.Debug("scan already active",
			slog.String("scan_id", job.ScanID),
			slog.String("base_request_id", baseRequestID),
		)
		return job.ScanID
	}

	job := &Job{
		ScanID:         "scan-" + uuid.NewString(),
		BaseRequestID:  baseRequestID,
		BaseRequestURL: baseRequestURL,
		Status:         types.StatusQueued,
		SubmittedAt:    time.Now(),
	}
	if len(m.jobs) == 0 {
		m.drained = make(chan struct{})
	}
	m.jobs = append(m.jobs, job)
	m.byBase[baseRequestID] = job
	m.notifyLocked(job)

	m.logger.Info("scan queued",
		slog.String("scan_id", job.ScanID),
		slog.String("url", baseRequestURL),
	)

	if m.stopped {
		m.finishLocked(job, types.StatusError)
		return job.ScanID
	}
	m.signal()
	return job.ScanID
}

// OnScanRequested resolves requestID and queues a scan of it.
func (m *Manager) OnScanRequested(ctx context.Context, requestID string) (string, error) {
	base, ok := m.lookup.GetRequest(ctx, requestID)
	if !ok || base == nil {
		m.logger.Warn("scan requested for unknown request", slog.String("request_id", requestID))
		return "", fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return m.Submit(requestID, base.FullURL()), nil
}

// Jobs returns a snapshot of the active set in submission order
func (m *Manager) Jobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, len(m.jobs))
	for i, job := range m.jobs {
		out[i] = *job
	}
	return out
}

// Running returns the number of running jobs
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Wait blocks until the active set is empty or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	drained := m.drained
	m.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signal wakes the coordinator without blocking
func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run is the coordinator loop
func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			m.schedule()
		}
	}
}

// schedule promotes queued jobs while slots are free
func (m *Manager) schedule() {
	m.mu.Lock()
	var ready []*Job
	for m.running < m.ceiling {
		job := m.nextQueuedLocked()
		if job == nil {
			break
		}
		m.running++
		job.Status = types.StatusRunning
		m.notifyLocked(job)
		ready = append(ready, job)
	}
	m.mu.Unlock()

	for _, job := range ready {
		if err := m.pool.Submit(func() { m.execute(job) }); err != nil {
			m.logger.Error("failed to dispatch scan",
				slog.String("scan_id", job.ScanID),
				slog.String("error", err.Error()),
			)
			m.finish(job, types.StatusError)
		}
	}
}

func (m *Manager) nextQueuedLocked() *Job {
	for _, job := range m.jobs {
		if job.Status == types.StatusQueued {
			return job
		}
	}
	return nil
}

// execute runs one job on a pool worker. Every exit path releases its slot.
func (m *Manager) execute(job *Job) {
	status := types.StatusError
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("scan panicked",
				slog.String("scan_id", job.ScanID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			status = types.StatusError
		}
		m.finish(job, status)
	}()

	base, ok := m.lookup.GetRequest(m.ctx, job.BaseRequestID)
	if !ok || base == nil {
		m.logger.Error("base request not found",
			slog.String("scan_id", job.ScanID),
			slog.String("base_request_id", job.BaseRequestID),
		)
		return
	}

	m.logger.Info("scan started",
		slog.String("scan_id", job.ScanID),
		slog.String("url", job.BaseRequestURL),
	)
	if err := m.sweeper.Sweep(m.ctx, job.ScanID, base); err != nil {
		m.logger.Error("scan failed",
			slog.String("scan_id", job.ScanID),
			slog.String("error", err.Error()),
		)
		return
	}
	status = types.StatusCompleted
}

// finish records the terminal status and frees the slot
func (m *Manager) finish(job *Job, status types.ScanStatus) {
	m.mu.Lock()
	m.running--
	m.finishLocked(job, status)
	m.mu.Unlock()
	m.signal()
}

// finishLocked removes job from the active set. The caller adjusts the
// running counter.
func (m *Manager) finishLocked(job *Job, status types.ScanStatus) {
	job.Status = status
	m.notifyLocked(job)

	for i, j := range m.jobs {
		if j == job {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			break
		}
	}
	if m.byBase[job.BaseRequestID] == job {
		delete(m.byBase, job.BaseRequestID)
	}
	if len(m.jobs) == 0 {
		close(m.drained)
	}

	m.logger.Info("scan finished",
		slog.String("scan_id", job.ScanID),
		slog.String("status", status.String()),
	)
}

func (m *Manager) notifyLocked(job *Job) {
	queued := 0
	for _, j := range m.jobs {
		if j.Status == types.StatusQueued {
			queued++
		}
	}
	m.metrics.ScanStatus(job.Status, queued, m.running)
	m.notifier.Notify(job.update())
}
