// Package presenter turns generated meshes into something drawable and
// tracks how far the drawn model is from the display frame.
package presenter

import (
	"context"
	"errors"
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/scheduler"
)

var ErrNilUploader = errors.New("presenter: nil uploader")

// Transform places the model in the world for one draw.
type Transform struct {
	// Offset moves the mesh's bounding-box centre to the origin.
	Offset geometry.Vec3
	// RotationY is the spin around the vertical axis, in radians.
	RotationY float64
}

// Uploader owns the device-side copy of a mesh.
type Uploader interface {
	// Upload replaces the current representation with m.
	Upload(m *geometry.Mesh) error
	// Draw renders the current representation.
	Draw(t Transform) error
}

// Sync describes where the drawn model sits relative to the display frame.
type Sync int

const (
	InSync Sync = iota
	Behind
	Ahead
)

// Status is the result of one Present call.
type Status struct {
	// Built is the frame of the drawn model; 0 before the first build.
	Built uint32
	Sync  Sync
	// Lag is the distance in frames between Built and the display frame.
	Lag uint32
}

func (s Status) String() string {
	switch s.Sync {
	case Behind:
		return fmt.Sprintf("behind %d", s.Lag)
	case Ahead:
		return fmt.Sprintf("ahead %d", s.Lag)
	default:
		return "in sync"
	}
}

func statusAt(ts, built uint32) Status {
	switch {
	case built < ts:
		return Status{Built: built, Sync: Behind, Lag: ts - built}
	case built > ts:
		return Status{Built: built, Sync: Ahead, Lag: built - ts}
	default:
		return Status{Built: built, Sync: InSync}
	}
}

// Presenter rebuilds its Uploader whenever a newer mesh arrives and draws the
// last one it built every frame. It is driven from the frame loop only.
type Presenter struct {
	ctx context.Context
	up  Uploader

	// Spin, when set, gives the model rotation for a frame.
	Spin func(frame uint32) float64

	built    uint32
	hasModel bool
	offset   geometry.Vec3

	uploads uint64
	draws   uint64
}

func New(ctx context.Context, up Uploader) (*Presenter, error) {
	if up == nil {
		return nil, ErrNilUploader
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Presenter{ctx: ctx, up: up}, nil
}

// Present consumes g (which may be nil) for display frame ts and draws.
func (p *Presenter) Present(ts uint32, g *scheduler.Generated) Status {
	if g != nil && g.Mesh != nil && (!p.hasModel || g.TS != p.built) {
		p.rebuild(g)
	}

	if p.hasModel {
		t := Transform{Offset: p.offset}
		if p.Spin != nil {
			t.RotationY = p.Spin(ts)
		}
		if err := p.up.Draw(t); err != nil {
			lg.FromContext(p.ctx).Error("draw failed", lg.Int("frame", int(ts)), lg.Any("error", err))
		} else {
			p.draws++
		}
	}
	return statusAt(ts, p.built)
}

func (p *Presenter) rebuild(g *scheduler.Generated) {
	if err := p.up.Upload(g.Mesh); err != nil {
		lg.FromContext(p.ctx).Error("upload failed", lg.Int("frame", int(g.TS)), lg.Any("error", err))
		return
	}
	c := g.Mesh.BBox().Center()
	p.offset = geometry.Vec3{-c[0], -c[1], -c[2]}
	p.built = g.TS
	p.hasModel = true
	p.uploads++
}

// Built returns the frame of the drawn model and whether there is one.
func (p *Presenter) Built() (uint32, bool) { return p.built, p.hasModel }

func (p *Presenter) Offset() geometry.Vec3 { return p.offset }
func (p *Presenter) Uploads() uint64       { return p.uploads }
func (p *Presenter) Draws() uint64         { return p.draws }
