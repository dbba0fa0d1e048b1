package workerpool

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// MetricsPolicy receives job counter updates from a Pool or a
// DynamicExecutor. It is called on the submit and worker paths, so it must be
// safe for concurrent use and must not block.
type MetricsPolicy interface {
	// IncQueued is called once a job has been accepted.
	IncQueued()

	// BatchDecQueued is called when n accepted jobs reach a worker.
	BatchDecQueued(n int64)

	// IncExecuted is called when a job returns, failed or not.
	IncExecuted()

	// IncFailed is called when a job's last attempt errors or panics.
	IncFailed()
}

// MetricsSnapshot is one read of AtomicMetrics.
type MetricsSnapshot struct {
	Executed uint64
	Failed   uint64
	Queued   int64 // accepted but not yet picked up
}

// AtomicMetrics counts jobs with atomics. Workers bump executed and failed;
// submitters bump queued, so it lives on its own cache line.
type AtomicMetrics struct {
	executed atomic.Uint64
	failed   atomic.Uint64

	_ cpu.CacheLinePad

	queued atomic.Int64
}

func (m *AtomicMetrics) IncQueued()             { m.queued.Add(1) }
func (m *AtomicMetrics) BatchDecQueued(n int64) { m.queued.Add(-n) }
func (m *AtomicMetrics) IncExecuted()           { m.executed.Add(1) }
func (m *AtomicMetrics) IncFailed()             { m.failed.Add(1) }

func (m *AtomicMetrics) Executed() uint64 { return m.executed.Load() }
func (m *AtomicMetrics) Failed() uint64   { return m.failed.Load() }
func (m *AtomicMetrics) Queued() int64    { return m.queued.Load() }

// Snapshot loads every counter. The fields are read one at a time, so they
// are not mutually consistent while jobs are moving.
func (m *AtomicMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Executed: m.executed.Load(),
		Failed:   m.failed.Load(),
		Queued:   m.queued.Load(),
	}
}

// NoopMetrics drops every update. It is the default when Options.Metrics is
// nil.
type NoopMetrics struct{}

func (NoopMetrics) IncQueued()           {}
func (NoopMetrics) BatchDecQueued(int64) {}
func (NoopMetrics) IncExecuted()         {}
func (NoopMetrics) IncFailed()           {}
