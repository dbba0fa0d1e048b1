package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/flaskanim/workerpool"
)

// Scheduler keeps a window of generation jobs running ahead of the display
// frame and hands back the newest finished mesh that is due.
//
// Slots are created for consecutive frames up to MaxWindow frames ahead, each
// one submitted to the executor as soon as it exists. Workers post results to
// an inbox that Advance drains without waiting. Slots that fall behind the
// display or out of the window are evicted; the tasks behind them still run to
// completion and their results are dropped.
type Scheduler struct {
	ctx  context.Context
	exec Executor
	opts Options

	win      *window
	inbox    inbox
	inFlight uint32

	lastYielded uint32
	hasYielded  bool

	tasks       sync.WaitGroup
	outstanding atomic.Int64

	closed     bool
	lastSubErr error
	stats      Stats
}

// New returns a look-ahead scheduler submitting to exec. ctx carries the
// logger and is passed to every submitted task.
func New(ctx context.Context, exec Executor, opts Options) (*Scheduler, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts.FillDefaults()
	return &Scheduler{
		ctx:  ctx,
		exec: exec,
		opts: opts,
		win:  newWindow(int(opts.MaxWindow)),
	}, nil
}

// Advance moves the window to frame ts and returns the mesh for the newest
// frame at or before ts that has finished, or nil. It never waits for
// workers. ts is expected not to decrease between calls.
func (s *Scheduler) Advance(ts uint32) *Generated {
	if s.closed {
		return nil
	}
	s.drain()
	s.evict(ts)
	g := s.take(ts)
	s.refill(ts)
	return g
}

func (s *Scheduler) drain() {
	for _, r := range s.inbox.drain() {
		sl := s.win.find(r.ts)
		if sl == nil || sl.state != slotPending {
			s.stats.Discarded++
			continue
		}
		s.inFlight--
		if r.err != nil {
			sl.state = slotFailed
			s.stats.Failed++
			lg.FromContext(s.ctx).Warn("generation failed",
				lg.Int("frame", int(r.ts)),
				lg.Any("error", r.err),
			)
			continue
		}
		sl.state = slotReady
		sl.mesh = r.mesh
		s.stats.Completed++
	}
}

func (s *Scheduler) evict(ts uint32) {
	maxWin := uint64(s.opts.MaxWindow)

	// a later slot is already due, so the front can never be shown
	for s.win.Len() > 1 && s.win.At(1).ts <= ts {
		s.dropFront()
	}
	for s.win.Len() > 0 && uint64(s.win.Front().ts)+maxWin < uint64(ts) {
		s.dropFront()
	}
	for s.win.Len() > 0 && uint64(s.win.Back().ts) > uint64(ts)+maxWin {
		sl, _ := s.win.PopBack()
		s.evicted(sl)
	}
}

func (s *Scheduler) dropFront() {
	sl, _ := s.win.PopFront()
	s.evicted(sl)
}

func (s *Scheduler) evicted(sl slot) {
	if sl.state == slotPending {
		s.inFlight--
	}
	s.stats.Evicted++
}

func (s *Scheduler) take(ts uint32) *Generated {
	if s.win.Len() == 0 {
		return nil
	}
	front := s.win.Front()
	if front.state != slotReady || front.ts > ts {
		return nil
	}
	sl, _ := s.win.PopFront()
	s.lastYielded, s.hasYielded = sl.ts, true
	s.stats.Yielded++
	return &Generated{TS: sl.ts, Mesh: sl.mesh}
}

func (s *Scheduler) refill(ts uint32) {
	limit := uint64(ts) + uint64(s.opts.MaxWindow)
	for !s.win.Full() {
		next := s.nextTS(ts)
		if next > limit || next > uint64(^uint32(0)) {
			return
		}
		t := uint32(next)
		s.win.PushBack(slot{ts: t, state: slotPending})
		if err := s.submit(t); err != nil {
			s.win.PopBack()
			s.submitFailed(err)
			return
		}
		s.inFlight++
		s.stats.Submitted++
	}
}

func (s *Scheduler) nextTS(ts uint32) uint64 {
	if s.win.Len() > 0 {
		return uint64(s.win.Back().ts) + 1
	}
	next := uint64(ts)
	if s.hasYielded && uint64(s.lastYielded)+1 > next {
		next = uint64(s.lastYielded) + 1
	}
	return next
}

func (s *Scheduler) submit(ts uint32) error {
	s.tasks.Add(1)
	s.outstanding.Add(1)
	err := s.exec.TryExecute(s.ctx, func() error {
		defer s.tasks.Done()
		defer s.outstanding.Add(-1)
		mesh, err := generate(&s.opts, ts)
		s.inbox.push(result{ts: ts, mesh: mesh, err: err})
		return nil
	})
	if err != nil {
		s.outstanding.Add(-1)
		s.tasks.Done()
	}
	return err
}

func (s *Scheduler) submitFailed(err error) {
	if errors.Is(err, workerpool.ErrQueueFull) {
		s.stats.Throttled++
		return
	}
	s.stats.SubmitErrors++
	// log on change only, a closed pool would otherwise repeat every frame
	if s.lastSubErr == nil || s.lastSubErr.Error() != err.Error() {
		lg.FromContext(s.ctx).Error("submit failed", lg.Any("error", err))
	}
	s.lastSubErr = err
}

// QueueSize reports how many frames the window currently tracks.
func (s *Scheduler) QueueSize() uint32 { return uint32(s.win.Len()) }

func (s *Scheduler) MaxQueueSize() uint32 { return s.opts.MaxWindow }

// InFlight reports how many tracked frames are still being generated.
func (s *Scheduler) InFlight() uint32 { return s.inFlight }

// Outstanding reports how many submitted tasks have not returned yet,
// including those whose frames were evicted. Safe for concurrent use.
func (s *Scheduler) Outstanding() int { return int(s.outstanding.Load()) }

func (s *Scheduler) Stats() Stats { return s.stats }

// Close stops submitting and waits, bounded by ctx, for every submitted task
// to return. It can be called again after a timeout.
func (s *Scheduler) Close(ctx context.Context) error {
	if !s.closed {
		s.closed = true
		lg.FromContext(s.ctx).Info("scheduler closing",
			lg.Int("outstanding", s.Outstanding()),
			lg.Int("queued", s.win.Len()),
		)
	}
	if err := waitCtx(ctx, s.tasks.Wait); err != nil {
		return err
	}
	s.win.reset()
	s.inFlight = 0
	s.inbox.reset()
	return nil
}
