// Package driver runs the fixed-rate frame loop and formats its diagnostics.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/azargarov/flaskanim/presenter"
)

var ErrInvalidClock = errors.New("driver: invalid frame rate")

// Clock converts wall-clock time to frame numbers at a rational rate of
// FPSNum/FPSDen frames per second.
type Clock struct {
	FPSNum uint32
	FPSDen uint32
}

func (c Clock) Validate() error {
	if c.FPSNum == 0 || c.FPSDen == 0 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidClock, c.FPSNum, c.FPSDen)
	}
	return nil
}

// FrameAt returns the frame shown elapsed after the start.
func (c Clock) FrameAt(elapsed time.Duration) uint32 {
	if elapsed <= 0 {
		return 0
	}
	us := uint64(elapsed / time.Microsecond)
	return uint32(us * uint64(c.FPSNum) / (uint64(c.FPSDen) * 1_000_000))
}

// Interval is the duration of one frame.
func (c Clock) Interval() time.Duration {
	return time.Duration(uint64(time.Second) * uint64(c.FPSDen) / uint64(c.FPSNum))
}

// Millis is the presentation time of frame in milliseconds.
func (c Clock) Millis(frame uint32) uint64 {
	return uint64(frame) * uint64(c.FPSDen) * 1000 / uint64(c.FPSNum)
}

// Spin returns the rotation around Y, in radians, of a model turning at
// revPerSecond. Positive speeds turn clockwise seen from above.
func (c Clock) Spin(revPerSecond float64) func(frame uint32) float64 {
	perFrame := -revPerSecond * 2 * math.Pi * float64(c.FPSDen) / float64(c.FPSNum)
	return func(frame uint32) float64 { return float64(frame) * perFrame }
}

// Driver calls a tick function once per frame interval with the frame number
// derived from the time since Run started.
type Driver struct {
	Clock Clock
	// MaxFrames stops the loop once that frame has been ticked; 0 runs until
	// the context ends.
	MaxFrames uint32

	now   func() time.Time
	ticks uint64
}

func New(clock Clock, maxFrames uint32) (*Driver, error) {
	if err := clock.Validate(); err != nil {
		return nil, err
	}
	return &Driver{Clock: clock, MaxFrames: maxFrames, now: time.Now}, nil
}

// Run drives tick until ctx is done or MaxFrames is reached. It returns nil
// when the frame limit ends the loop and ctx.Err() otherwise.
func (d *Driver) Run(ctx context.Context, tick func(frame uint32)) error {
	if err := d.Clock.Validate(); err != nil {
		return err
	}
	if d.now == nil {
		d.now = time.Now
	}

	ticker := time.NewTicker(d.Clock.Interval())
	defer ticker.Stop()

	start := d.now()
	tick(0)
	d.ticks++

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame := d.Clock.FrameAt(d.now().Sub(start))
			if d.MaxFrames > 0 && frame > d.MaxFrames {
				frame = d.MaxFrames
			}
			tick(frame)
			d.ticks++
			if d.MaxFrames > 0 && frame >= d.MaxFrames {
				return nil
			}
		}
	}
}

// Ticks reports how many times Run has called tick.
func (d *Driver) Ticks() uint64 { return d.ticks }

// HUD formats the diagnostic text lines for one frame, top line first.
func HUD(c Clock, frame uint32, st presenter.Status, queued, maxQueued uint32) []string {
	ms := c.Millis(frame)
	return []string{
		fmt.Sprintf("Frame %9d", frame),
		fmt.Sprintf("Time  %02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000),
		"Queue",
		"  : " + st.String(),
		fmt.Sprintf("  : enqueued %d/%d", queued, maxQueued),
	}
}
