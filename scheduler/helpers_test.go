package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/workerpool"
)

// manualExecutor holds tasks until the test runs them.
type manualExecutor struct {
	mu     sync.Mutex
	tasks  []func() error
	limit  int
	closed bool
}

func (e *manualExecutor) TryExecute(_ context.Context, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return workerpool.ErrPoolClosed
	}
	if e.limit > 0 && len(e.tasks) >= e.limit {
		return workerpool.ErrQueueFull
	}
	e.tasks = append(e.tasks, fn)
	return nil
}

func (e *manualExecutor) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// run executes the first n held tasks in submission order.
func (e *manualExecutor) run(n int) {
	e.mu.Lock()
	n = min(n, len(e.tasks))
	batch := append([]func() error(nil), e.tasks[:n]...)
	e.tasks = e.tasks[n:]
	e.mu.Unlock()

	for _, fn := range batch {
		_ = fn()
	}
}

func (e *manualExecutor) runAll() { e.run(e.pending()) }

// runLast executes the most recently submitted task only.
func (e *manualExecutor) runLast() {
	e.mu.Lock()
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		return
	}
	fn := e.tasks[len(e.tasks)-1]
	e.tasks = e.tasks[:len(e.tasks)-1]
	e.mu.Unlock()
	_ = fn()
}

// stubKernel returns a one-triangle mesh and counts its calls.
type stubKernel struct {
	calls atomic.Int32
	delay time.Duration
}

func (k *stubKernel) Generate(w, t, h float64) (*geometry.Mesh, error) {
	k.calls.Add(1)
	if k.delay > 0 {
		time.Sleep(k.delay)
	}
	return geometry.NewMesh(
		[]geometry.Vec3{{0, 0, 0}, {float32(w), 0, 0}, {0, float32(h), float32(t)}},
		[]geometry.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[][3]uint32{{0, 1, 2}},
	)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// checkWindow verifies the structural invariants of a look-ahead scheduler.
func checkWindow(t *testing.T, s *Scheduler) {
	t.Helper()

	if s.QueueSize() > s.MaxQueueSize() {
		t.Fatalf("queue size %d exceeds max %d", s.QueueSize(), s.MaxQueueSize())
	}
	var pending uint32
	for i := 0; i < s.win.Len(); i++ {
		sl := s.win.At(i)
		if sl.ts != s.win.Front().ts+uint32(i) {
			t.Fatalf("slot %d has ts %d; front is %d", i, sl.ts, s.win.Front().ts)
		}
		if sl.state == slotPending {
			pending++
		}
	}
	if pending != s.InFlight() {
		t.Fatalf("in-flight = %d; %d pending slots", s.InFlight(), pending)
	}
}
