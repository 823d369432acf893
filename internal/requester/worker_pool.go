package requester

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// WorkerPool runs scan jobs on a fixed number of goroutines
type WorkerPool struct {
	pool       *ants.Pool
	wg         sync.WaitGroup
	isShutdown atomic.Bool

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// WorkerPoolOptions configures the worker pool
type WorkerPoolOptions struct {
	Size     int
	PreAlloc bool
	Logger   *slog.Logger
}

// DefaultWorkerPoolOptions returns sensible defaults
func DefaultWorkerPoolOptions() *WorkerPoolOptions {
	return &WorkerPoolOptions{
		Size:     5,
		PreAlloc: true,
	}
}

// NewWorkerPool creates a new worker pool. Submit blocks while every
// worker is busy.
func NewWorkerPool(opts *WorkerPoolOptions) (*WorkerPool, error) {
	if opts == nil {
		opts = DefaultWorkerPoolOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	wp := &WorkerPool{}
	pool, err := ants.NewPool(
		opts.Size,
		ants.WithPreAlloc(opts.PreAlloc),
		ants.WithPanicHandler(func(p interface{}) {
			wp.panics.Add(1)
			logger.Error("worker task panicked", slog.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, err
	}
	wp.pool = pool
	return wp, nil
}

// Submit adds a task to the worker pool
func (wp *WorkerPool) Submit(task func()) error {
	if wp.isShutdown.Load() {
		return ants.ErrPoolClosed
	}

	wp.submitted.Add(1)
	wp.wg.Add(1)

	err := wp.pool.Submit(func() {
		defer wp.wg.Done()
		defer wp.completed.Add(1)
		task()
	})
	if err != nil {
		wp.submitted.Add(-1)
		wp.wg.Done()
	}
	return err
}

// Wait blocks until all submitted tasks complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Shutdown stops accepting tasks, waits for running ones and releases workers
func (wp *WorkerPool) Shutdown() {
	if wp.isShutdown.Swap(true) {
		return
	}
	wp.Wait()
	wp.pool.Release()
}

// PoolStats holds worker pool counters
type PoolStats struct {
	Running   int
	Capacity  int
	Submitted int64
	Completed int64
	Panics    int64
}

// Stats returns current worker pool statistics
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Running:   wp.pool.Running(),
		Capacity:  wp.pool.Cap(),
		Submitted: wp.submitted.Load(),
		Completed: wp.completed.Load(),
		Panics:    wp.panics.Load(),
	}
}
