package scheduler

import (
	"context"
	"errors"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/workerpool"
)

// Latest generates one frame at a time: whatever frame the display asked for
// most recently. A finished mesh waits in a single cell until Advance takes
// it; a newer one overwrites it.
type Latest struct {
	ctx  context.Context
	exec Executor
	opts Options

	mu     sync.Mutex
	latest *Generated
	wanted uint32
	busy   bool
	closed bool

	generated    uint32 // frame of the last accepted submission
	hasGenerated bool
	lastYielded  uint32
	hasYielded   bool

	stats Stats
	tasks sync.WaitGroup
}

// NewLatest returns a latest-wins generator submitting to exec.
func NewLatest(ctx context.Context, exec Executor, opts Options) (*Latest, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts.FillDefaults()
	return &Latest{ctx: ctx, exec: exec, opts: opts}, nil
}

func (l *Latest) Advance(ts uint32) *Generated {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	var out *Generated
	if g := l.latest; g != nil {
		l.latest = nil
		if !l.hasYielded || g.TS > l.lastYielded {
			out = g
			l.lastYielded, l.hasYielded = g.TS, true
			l.stats.Yielded++
		} else {
			l.stats.Discarded++
		}
	}
	l.wanted = ts
	next, ok := l.nextLocked()
	l.mu.Unlock()

	if ok {
		l.submit(next)
	}
	return out
}

// nextLocked claims the worker slot for the wanted frame if it is free and
// that frame has not been generated yet.
func (l *Latest) nextLocked() (uint32, bool) {
	if l.closed || l.busy {
		return 0, false
	}
	if l.hasGenerated && l.generated == l.wanted {
		return 0, false
	}
	l.busy = true
	l.generated, l.hasGenerated = l.wanted, true
	return l.wanted, true
}

func (l *Latest) submit(ts uint32) {
	l.tasks.Add(1)
	err := l.exec.TryExecute(l.ctx, func() error {
		defer l.tasks.Done()
		mesh, err := generate(&l.opts, ts)
		l.finish(ts, mesh, err)
		return nil
	})
	if err == nil {
		l.mu.Lock()
		l.stats.Submitted++
		l.mu.Unlock()
		return
	}
	l.tasks.Done()

	l.mu.Lock()
	l.busy = false
	l.hasGenerated = false
	if errors.Is(err, workerpool.ErrQueueFull) {
		l.stats.Throttled++
	} else {
		l.stats.SubmitErrors++
	}
	l.mu.Unlock()
	if !errors.Is(err, workerpool.ErrQueueFull) {
		lg.FromContext(l.ctx).Error("submit failed", lg.Int("frame", int(ts)), lg.Any("error", err))
	}
}

func (l *Latest) finish(ts uint32, mesh *geometry.Mesh, err error) {
	l.mu.Lock()
	l.busy = false
	if err != nil {
		l.stats.Failed++
	} else {
		if l.latest != nil {
			l.stats.Discarded++
		}
		l.latest = &Generated{TS: ts, Mesh: mesh}
		l.stats.Completed++
	}
	next, ok := l.nextLocked()
	l.mu.Unlock()

	if err != nil {
		lg.FromContext(l.ctx).Warn("generation failed", lg.Int("frame", int(ts)), lg.Any("error", err))
	}
	if ok {
		l.submit(next)
	}
}

// QueueSize is 1 while a frame is being generated or waiting to be taken.
func (l *Latest) QueueSize() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy || l.latest != nil {
		return 1
	}
	return 0
}

func (l *Latest) MaxQueueSize() uint32 { return 1 }

func (l *Latest) InFlight() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return 1
	}
	return 0
}

// Outstanding equals InFlight: a running task is never dropped.
func (l *Latest) Outstanding() int { return int(l.InFlight()) }

func (l *Latest) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Close stops submitting and waits, bounded by ctx, for the running task.
func (l *Latest) Close(ctx context.Context) error {
	l.mu.Lock()
	first := !l.closed
	l.closed = true
	l.mu.Unlock()
	if first {
		lg.FromContext(l.ctx).Info("scheduler closing", lg.Int("in_flight", int(l.InFlight())))
	}

	if err := waitCtx(ctx, l.tasks.Wait); err != nil {
		return err
	}
	l.mu.Lock()
	l.latest = nil
	l.mu.Unlock()
	return nil
}
