package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/Carmen-Shannon/automation/tools/worker"
)

// DynamicExecutor runs closures on an automation DynamicWorkerPool.
//
// The underlying pool has no reliable notion of "all submitted tasks have
// returned", so DynamicExecutor tracks its own tasks and Shutdown waits on
// that count instead of the pool's Wait. Every task holds one permit from
// the time it is submitted until it returns; with as many permits as task
// buffer slots, SubmitTask never has to wait for room.
type DynamicExecutor struct {
	pool    worker.DynamicWorkerPool
	permits chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	pending  sync.WaitGroup
	nextID   atomic.Int64

	executed atomic.Uint64

	// Metrics, if set, receives the same counters a Pool reports.
	Metrics    MetricsPolicy
	OnJobError func(error)
}

// NewDynamicExecutor starts a DynamicWorkerPool with the given number of
// workers, task buffer and idle timeout.
func NewDynamicExecutor(workers, queueSize int, idleTimeout time.Duration) *DynamicExecutor {
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	return &DynamicExecutor{
		pool:    worker.NewDynamicWorkerPool(workers, queueSize, idleTimeout),
		permits: make(chan struct{}, queueSize),
	}
}

// Execute hands fn to the pool, waiting for a permit while the pool is
// saturated.
func (d *DynamicExecutor) Execute(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return d.execute(ctx, fn, true)
}

// TryExecute hands fn to the pool or returns ErrQueueFull immediately.
func (d *DynamicExecutor) TryExecute(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return d.execute(ctx, fn, false)
}

func (d *DynamicExecutor) execute(ctx context.Context, fn func() error, wait bool) error {
	if fn == nil {
		return ErrNilFunc
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrPoolClosed
	}

	if wait {
		select {
		case d.permits <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		select {
		case d.permits <- struct{}{}:
		default:
			return ErrQueueFull
		}
	}

	m := d.metrics()
	m.IncQueued()
	d.pending.Add(1)
	d.pool.SubmitTask(worker.Task{
		ID: int(d.nextID.Add(1)),
		Do: func() (res any, err error) {
			m.BatchDecQueued(1)
			defer d.pending.Done()
			defer func() { <-d.permits }()
			defer func() {
				d.executed.Add(1)
				m.IncExecuted()
			}()
			defer func() {
				if r := recover(); r != nil {
					lg.FromContext(ctx).Error("task panicked", lg.Any("panic", r))
					err = fmt.Errorf("workerpool: task panicked: %v", r)
					m.IncFailed()
					d.reportJobError(err)
				}
			}()
			if err = fn(); err != nil {
				lg.FromContext(ctx).Error("Worker error", lg.Any("error", err))
				m.IncFailed()
				d.reportJobError(err)
			}
			return nil, err
		},
	})
	return nil
}

// Shutdown rejects new tasks and waits for submitted ones to return, bounded
// by ctx. The underlying workers are stopped once everything has drained.
func (d *DynamicExecutor) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.pending.Wait()
	}()

	select {
	case <-done:
		d.stopOnce.Do(func() {
			d.pool.Stop()
			lg.FromContext(ctx).Info("Dynamic pool stopped", lg.Any("executed", d.executed.Load()))
		})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executed reports how many tasks have returned.
func (d *DynamicExecutor) Executed() uint64 { return d.executed.Load() }

func (d *DynamicExecutor) metrics() MetricsPolicy {
	if d.Metrics == nil {
		return NoopMetrics{}
	}
	return d.Metrics
}

func (d *DynamicExecutor) reportJobError(err error) {
	if d.OnJobError != nil {
		d.OnJobError(err)
	}
}
