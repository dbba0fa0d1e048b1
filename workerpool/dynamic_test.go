package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDynamicExecutorShutdownWaitsForTasks(t *testing.T) {
	d := NewDynamicExecutor(2, 8, time.Second)

	var finished atomic.Int32
	for i := 0; i < 6; i++ {
		if err := d.Execute(context.Background(), func() error {
			time.Sleep(5 * time.Millisecond)
			finished.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := finished.Load(); got != 6 {
		t.Fatalf("finished = %d; want 6", got)
	}
	if got := d.Executed(); got != 6 {
		t.Fatalf("executed = %d; want 6", got)
	}
}

func TestDynamicExecutorRejectsAfterShutdown(t *testing.T) {
	d := NewDynamicExecutor(1, 1, time.Second)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := d.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Execute err = %v; want ErrPoolClosed", err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestDynamicExecutorReportsPanics(t *testing.T) {
	var reported atomic.Int32
	d := NewDynamicExecutor(1, 2, time.Second)
	d.OnJobError = func(error) { reported.Add(1) }

	_ = d.Execute(context.Background(), func() error { panic("boom") })
	_ = d.Execute(context.Background(), func() error { return errors.New("fail") })
	_ = d.Execute(context.Background(), func() error { return nil })

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := reported.Load(); got != 2 {
		t.Fatalf("reported = %d; want 2", got)
	}
}

func TestDynamicExecutorTryExecuteFull(t *testing.T) {
	d := NewDynamicExecutor(1, 2, time.Second)

	release := make(chan struct{})
	block := func() error {
		<-release
		return nil
	}
	for i := 0; i < 2; i++ {
		if err := d.TryExecute(context.Background(), block); err != nil {
			t.Fatalf("TryExecute %d: %v", i, err)
		}
	}
	if err := d.TryExecute(context.Background(), block); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("TryExecute err = %v; want ErrQueueFull", err)
	}

	close(release)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestDynamicExecutorMetrics(t *testing.T) {
	metrics := &AtomicMetrics{}
	d := NewDynamicExecutor(2, 4, time.Second)
	d.Metrics = metrics

	_ = d.Execute(context.Background(), func() error { return nil })
	_ = d.Execute(context.Background(), func() error { return errors.New("fail") })
	_ = d.Execute(context.Background(), func() error { panic("boom") })

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	snap := metrics.Snapshot()
	if snap.Executed != 3 || snap.Failed != 2 || snap.Queued != 0 {
		t.Fatalf("snapshot = %+v; want executed 3, failed 2, queued 0", snap)
	}
	if d.Executed() != snap.Executed {
		t.Fatalf("Executed() = %d; metrics say %d", d.Executed(), snap.Executed)
	}
}
