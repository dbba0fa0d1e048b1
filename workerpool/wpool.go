package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

const (
	DefaultMaxWorkers   = 10
	defaultAttempts     = 3
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second
)

// ErrPoolClosed is returned by Submit and Execute once Shutdown has begun.
var ErrPoolClosed = errors.New("workerpool: pool closed")

// JobFunc is the function executed by a worker for a given job payload.
type JobFunc[T any] func(T) error

// Job represents a single unit of work submitted to the pool.
//
// Payload is passed to Fn when executed.
// Ctx controls cancellation during retry backoff and carries the logger.
// CleanupFunc, if set, is executed after job completion, panics included.
// Retry overrides the pool default policy field by field.
type Job[T any] struct {
	Payload     T
	Fn          JobFunc[T]
	Ctx         context.Context
	CleanupFunc func()
	Retry       *RetryPolicy
}

// Pool is a fixed-size set of worker goroutines fed through a buffered
// channel. Jobs run to completion; there is no preemption.
type Pool[T any] struct {
	jobs          chan Job[T]
	wg            sync.WaitGroup
	maxWorkers    int
	activeWorkers atomic.Int32

	// mu guards closed against concurrent sends on jobs.
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	done     chan struct{}

	defaultRetry RetryPolicy
	metrics      MetricsPolicy
	pinWorkers   bool

	onJobError      func(error)
	onInternalError func(error)
}

// NewPool starts maxWorkers workers with the given default retry policy.
// Zero fields of defaultRetry are replaced with package defaults.
func NewPool[T any](maxWorkers int, defaultRetry RetryPolicy) *Pool[T] {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return NewPoolFromOptions[T](Options{Workers: maxWorkers, Retry: defaultRetry})
}

// NewPoolFromOptions starts a pool configured by opts.
func NewPoolFromOptions[T any](opts Options) *Pool[T] {
	opts.FillDefaults()

	p := &Pool[T]{
		jobs:            make(chan Job[T], opts.QueueSize),
		maxWorkers:      opts.Workers,
		done:            make(chan struct{}),
		defaultRetry:    opts.Retry,
		metrics:         opts.Metrics,
		pinWorkers:      opts.PinWorkers,
		onJobError:      opts.OnJobError,
		onInternalError: opts.OnInternalError,
	}
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Shutdown rejects new jobs, lets workers drain what is already queued and
// waits for them until ctx is done. It may be called more than once.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		go func() {
			p.wg.Wait()
			close(p.done)
		}()
		lg.FromContext(ctx).Info("Pool shutting down", lg.Int("queued", len(p.jobs)))
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// blocking stop
func (p *Pool[T]) Stop() { _ = p.Shutdown(context.Background()) }

// Submit enqueues job, blocking while the buffer is full.
func (p *Pool[T]) Submit(job Job[T]) error {
	if job.Fn == nil {
		return ErrNilFunc
	}
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.metrics.IncQueued()
	p.jobs <- job
	return nil
}

// Non-blocking submit.
func (p *Pool[T]) TrySubmit(job Job[T]) bool {
	return p.trySubmit(job) == nil
}

func (p *Pool[T]) trySubmit(job Job[T]) error {
	if job.Fn == nil {
		return ErrNilFunc
	}
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		p.metrics.IncQueued()
		return nil
	default:
		return ErrQueueFull
	}
}

// Execute submits a closure that runs exactly once, with no retries.
// It lets the pool serve callers that do not care about the payload type.
func (p *Pool[T]) Execute(ctx context.Context, fn func() error) error {
	if fn == nil {
		return ErrNilFunc
	}
	return p.Submit(Job[T]{
		Ctx:   ctx,
		Fn:    func(T) error { return fn() },
		Retry: &RetryPolicy{Attempts: 1},
	})
}

// TryExecute is the non-blocking form of Execute. It returns ErrQueueFull
// instead of waiting for buffer space.
func (p *Pool[T]) TryExecute(ctx context.Context, fn func() error) error {
	if fn == nil {
		return ErrNilFunc
	}
	return p.trySubmit(Job[T]{
		Ctx:   ctx,
		Fn:    func(T) error { return fn() },
		Retry: &RetryPolicy{Attempts: 1},
	})
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()

	if p.pinWorkers {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPU(id % runtime.NumCPU()); err != nil {
			p.reportInternalError(fmt.Errorf("workerpool: pin worker %d: %w", id, err))
		}
	}

	for job := range p.jobs {
		p.metrics.BatchDecQueued(1)
		p.activeWorkers.Add(1)
		func() {
			defer p.activeWorkers.Add(-1)
			defer func() {
				if r := recover(); r != nil {
					lg.FromContext(job.Ctx).Error("job panicked", lg.Any("panic", r))
					p.metrics.IncFailed()
					p.reportJobError(fmt.Errorf("workerpool: job panicked: %v", r))
				}
				if job.CleanupFunc != nil {
					job.CleanupFunc()
				}
				p.metrics.IncExecuted()
			}()
			p.processJob(job)
		}()
	}
}

func (p *Pool[T]) processJob(job Job[T]) {
	pol := p.defaultRetry
	if job.Retry != nil {
		// override non-zero per-job values
		if job.Retry.Attempts > 0 {
			pol.Attempts = job.Retry.Attempts
		}
		if job.Retry.Initial > 0 {
			pol.Initial = job.Retry.Initial
		}
		if job.Retry.Max > 0 {
			pol.Max = job.Retry.Max
		}
	}

	bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())

	for attempt := 1; attempt <= pol.Attempts; attempt++ {
		err := job.Fn(job.Payload)
		if err == nil {
			return
		}

		logger := lg.FromContext(job.Ctx)
		if attempt == pol.Attempts {
			logger.Error("Worker error", lg.Int("attempt", attempt), lg.Any("error", err))
			p.metrics.IncFailed()
			p.reportJobError(fmt.Errorf("workerpool: job failed after %d attempt(s): %w", attempt, err))
			return
		}

		delay := bo.Next()
		logger.Warn("job attempt failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-job.Ctx.Done():
			timer.Stop()
			logger.Info("Job canceled", lg.Any("reason", job.Ctx.Err()))
			p.metrics.IncFailed()
			return
		}
	}
}

func (p *Pool[T]) ActiveWorkers() int32 { return p.activeWorkers.Load() }
func (p *Pool[T]) QueueLength() int     { return len(p.jobs) }
func (p *Pool[T]) Workers() int         { return p.maxWorkers }
