package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/workerpool"
)

const (
	// DefaultMaxWindow is one second of frames at 60 fps.
	DefaultMaxWindow = 60
	// DefaultBeatInterval is half a second at 60 fps.
	DefaultBeatInterval = 30
)

var (
	ErrNilExecutor   = errors.New("scheduler: nil executor")
	ErrUnknownPolicy = errors.New("scheduler: unknown policy")
	ErrKernelPanic   = errors.New("scheduler: kernel panicked")
)

// Generated is a mesh handed to the caller of Advance, together with the frame
// it was built for. Ownership of Mesh passes to the caller.
type Generated struct {
	TS   uint32
	Mesh *geometry.Mesh
}

// Executor runs fn on some other goroutine. TryExecute must not wait: when
// the task cannot be accepted right away it returns an error, typically
// workerpool.ErrQueueFull or workerpool.ErrPoolClosed.
type Executor interface {
	TryExecute(ctx context.Context, fn func() error) error
}

var (
	_ Executor = (*workerpool.Pool[struct{}])(nil)
	_ Executor = (*workerpool.DynamicExecutor)(nil)
)

// KernelFunc builds a mesh from construction parameters. It is called
// concurrently from pool workers.
type KernelFunc func(width, thickness, height float64) (*geometry.Mesh, error)

// Options configures both generation policies.
type Options struct {
	// MaxWindow bounds the number of frames tracked ahead of the display.
	MaxWindow uint32
	// BeatInterval is the number of frames one sweep of the parameters takes.
	BeatInterval uint32
	Ranges       Ranges
	Kernel       KernelFunc
}

// FillDefaults replaces zero fields with package defaults.
func (o *Options) FillDefaults() {
	if o.MaxWindow == 0 {
		o.MaxWindow = DefaultMaxWindow
	}
	if o.BeatInterval == 0 {
		o.BeatInterval = DefaultBeatInterval
	}
	if o.Ranges == (Ranges{}) {
		o.Ranges = DefaultRanges
	}
	if o.Kernel == nil {
		o.Kernel = geometry.Generate
	}
}

// Stats are running counters of a generator.
type Stats struct {
	Submitted    uint64
	Completed    uint64
	Failed       uint64
	Discarded    uint64 // results nobody could use any more
	Evicted      uint64
	Yielded      uint64
	Throttled    uint64 // submissions refused by a full executor
	SubmitErrors uint64
}

// Generator is what the frame loop drives once per frame.
//
// Advance, QueueSize, MaxQueueSize, InFlight, Stats and Close are called from
// a single goroutine. Outstanding counts submitted tasks that have not
// returned, dropped frames included; it is what the HUD shows as enqueued.
type Generator interface {
	Advance(ts uint32) *Generated
	QueueSize() uint32
	MaxQueueSize() uint32
	InFlight() uint32
	Outstanding() int
	Stats() Stats
	Close(ctx context.Context) error
}

// Policy names a generation strategy.
type Policy string

const (
	PolicyLookahead Policy = "lookahead"
	PolicyLatest    Policy = "latest"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyLookahead:
		return PolicyLookahead, nil
	case PolicyLatest:
		return PolicyLatest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// NewGenerator builds the generator for policy.
func NewGenerator(ctx context.Context, policy Policy, exec Executor, opts Options) (Generator, error) {
	switch policy {
	case "", PolicyLookahead:
		return New(ctx, exec, opts)
	case PolicyLatest:
		return NewLatest(ctx, exec, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// generate runs the kernel for ts, turning a panic into an error.
func generate(opts *Options, ts uint32) (mesh *geometry.Mesh, err error) {
	defer func() {
		if r := recover(); r != nil {
			mesh, err = nil, fmt.Errorf("%w at frame %d: %v", ErrKernelPanic, ts, r)
		}
	}()
	p := ParamsAt(ts, opts.BeatInterval, opts.Ranges)
	return opts.Kernel(p.Width, p.Thickness, p.Height)
}

// waitCtx waits for wait to return or ctx to end.
func waitCtx(ctx context.Context, wait func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
