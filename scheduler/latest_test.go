package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/workerpool"
)

func newLatestManual(t *testing.T) (*Latest, *manualExecutor) {
	t.Helper()

	exec := &manualExecutor{}
	k := &stubKernel{}
	l, err := NewLatest(context.Background(), exec, Options{BeatInterval: 4, Kernel: k.Generate})
	if err != nil {
		t.Fatalf("NewLatest: %v", err)
	}
	return l, exec
}

func TestLatestOneJobAtATime(t *testing.T) {
	l, exec := newLatestManual(t)

	if g := l.Advance(0); g != nil {
		t.Fatalf("Advance(0) yielded %d", g.TS)
	}
	if exec.pending() != 1 || l.QueueSize() != 1 || l.InFlight() != 1 {
		t.Fatalf("submitted %d, queue %d, in flight %d; want 1 each", exec.pending(), l.QueueSize(), l.InFlight())
	}
	l.Advance(1)
	l.Advance(2)
	if exec.pending() != 1 {
		t.Fatalf("submitted %d while busy; want 1", exec.pending())
	}

	// finishing frame 0 starts the newest wanted frame, 2
	exec.runAll()
	if exec.pending() != 1 {
		t.Fatalf("no follow-up submission after completion")
	}
	if g := l.Advance(3); g == nil || g.TS != 0 {
		t.Fatalf("Advance(3) = %+v; want frame 0", g)
	}
	exec.runAll()
	if g := l.Advance(4); g == nil || g.TS != 2 {
		t.Fatalf("Advance(4) = %+v; want frame 2", g)
	}
	if l.MaxQueueSize() != 1 {
		t.Fatalf("max queue size = %d", l.MaxQueueSize())
	}
	if st := l.Stats(); st.Submitted != 3 || st.Yielded != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLatestOverwritesUntakenResult(t *testing.T) {
	l, exec := newLatestManual(t)

	l.Advance(0)
	l.Advance(1)
	exec.runAll() // frame 0 stored, frame 1 submitted
	exec.runAll() // frame 1 overwrites frame 0

	if g := l.Advance(1); g == nil || g.TS != 1 {
		t.Fatalf("Advance(1) = %+v; want frame 1", g)
	}
	if st := l.Stats(); st.Discarded != 1 {
		t.Fatalf("discarded = %d; want 1", st.Discarded)
	}
	if exec.pending() != 0 || l.QueueSize() != 0 {
		t.Fatalf("frame 1 was generated twice")
	}
}

func TestLatestFailure(t *testing.T) {
	exec := &manualExecutor{}
	l, err := NewLatest(context.Background(), exec, Options{
		Kernel: func(w, t, h float64) (*geometry.Mesh, error) { return nil, errors.New("boom") },
	})
	if err != nil {
		t.Fatalf("NewLatest: %v", err)
	}

	l.Advance(0)
	exec.runAll()
	if g := l.Advance(0); g != nil {
		t.Fatalf("failed frame yielded")
	}
	if st := l.Stats(); st.Failed != 1 {
		t.Fatalf("failed = %d; want 1", st.Failed)
	}
	if exec.pending() != 0 {
		t.Fatal("failed frame was retried")
	}
}

func TestLatestSubmitRetriedNextFrame(t *testing.T) {
	exec := &manualExecutor{closed: true}
	l, _ := NewLatest(context.Background(), exec, Options{})

	l.Advance(0)
	if l.InFlight() != 0 || l.Stats().SubmitErrors != 1 {
		t.Fatalf("in flight %d, stats %+v", l.InFlight(), l.Stats())
	}
	exec.closed = false
	l.Advance(0)
	if exec.pending() != 1 {
		t.Fatalf("submission not retried")
	}
}

func TestLatestCloseWaits(t *testing.T) {
	pool := workerpool.NewPoolFromOptions[struct{}](workerpool.Options{Workers: 1, QueueSize: 1})
	defer pool.Stop()

	k := &stubKernel{delay: 20 * time.Millisecond}
	l, err := NewLatest(context.Background(), pool, Options{Kernel: k.Generate})
	if err != nil {
		t.Fatalf("NewLatest: %v", err)
	}
	l.Advance(0)
	l.Advance(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.InFlight() != 0 {
		t.Fatalf("in flight = %d after Close", l.InFlight())
	}
	if uint64(k.calls.Load()) != l.Stats().Submitted {
		t.Fatalf("kernel calls %d; submitted %d", k.calls.Load(), l.Stats().Submitted)
	}
	if g := l.Advance(2); g != nil || l.QueueSize() != 0 {
		t.Fatal("Advance after Close did work")
	}
}

func TestNewGenerator(t *testing.T) {
	exec := &manualExecutor{}
	tests := []struct {
		in      string
		want    any
		wantErr error
	}{
		{"", &Scheduler{}, nil},
		{"lookahead", &Scheduler{}, nil},
		{" Latest ", &Latest{}, nil},
		{"fifo", nil, ErrUnknownPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePolicy(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParsePolicy(%q) err = %v; want %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			g, err := NewGenerator(context.Background(), p, exec, Options{})
			if err != nil {
				t.Fatalf("NewGenerator: %v", err)
			}
			switch tt.want.(type) {
			case *Scheduler:
				if _, ok := g.(*Scheduler); !ok {
					t.Fatalf("got %T; want *Scheduler", g)
				}
			case *Latest:
				if _, ok := g.(*Latest); !ok {
					t.Fatalf("got %T; want *Latest", g)
				}
			}
		})
	}
}

func TestLatestOutstanding(t *testing.T) {
	l, exec := newLatestManual(t)

	if l.Outstanding() != 0 {
		t.Fatalf("outstanding = %d before any submission", l.Outstanding())
	}
	l.Advance(0)
	if l.Outstanding() != 1 {
		t.Fatalf("outstanding = %d; want 1", l.Outstanding())
	}
	exec.runAll()
	l.Advance(0) // takes frame 0; nothing new to generate
	if l.Outstanding() != 0 {
		t.Fatalf("outstanding = %d after completion; want 0", l.Outstanding())
	}
}
