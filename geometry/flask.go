package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned for non-positive or non-finite shape parameters.
var ErrInvalidParams = errors.New("geometry: invalid flask parameters")

const (
	DefaultArcSegments  = 48
	DefaultNeckSegments = 48
	DefaultStacks       = 24
)

// Kernel tessellates flasks at a fixed resolution. The zero value uses the
// package defaults. A Kernel holds no mutable state and is safe for
// concurrent use.
type Kernel struct {
	// ArcSegments is the number of segments per curved side of the body.
	ArcSegments int
	// NeckSegments is the number of segments around the neck.
	NeckSegments int
	// Stacks is the number of rows the walls are split into along the height.
	Stacks int
}

var defaultKernel Kernel

// Generate builds a flask with the default Kernel.
func Generate(width, thickness, height float64) (*Mesh, error) {
	return defaultKernel.Generate(width, thickness, height)
}

// Generate builds the flask body and neck.
//
// The body cross-section lies in the XZ plane: two straight sides at
// x = ±width/2 spanning z in [-thickness/4, thickness/4], joined by two
// circular arcs whose apexes sit at z = ±thickness/2. It is extruded along +Y
// by height. The neck is a cylinder of radius thickness/4 and height
// height/10 standing on the top cap.
func (k Kernel) Generate(width, thickness, height float64) (*Mesh, error) {
	for _, v := range [...]float64{width, thickness, height} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: width=%g thickness=%g height=%g", ErrInvalidParams, width, thickness, height)
		}
	}
	arcSegs := orDefault(k.ArcSegments, DefaultArcSegments)
	neckSegs := orDefault(k.NeckSegments, DefaultNeckSegments)
	stacks := orDefault(k.Stacks, DefaultStacks)

	b := &builder{}
	ring := flaskProfile(width, thickness, arcSegs)

	// walls, one face per profile edge run so normals stay per face
	for _, run := range ring {
		b.wall(run, 0, height, stacks)
	}

	var outline []profilePoint
	for _, run := range ring {
		outline = append(outline, run[:len(run)-1]...)
	}
	b.cap(outline, 0, Vec3{0, -1, 0})
	b.cap(outline, height, Vec3{0, 1, 0})

	neckR := thickness / 4
	neckTop := height + height/10
	neck := circleProfile(neckR, neckSegs)
	b.wall(neck, height, neckTop, max(1, stacks/8))
	b.cap(neck[:len(neck)-1], neckTop, Vec3{0, 1, 0})

	return NewMesh(b.positions, b.normals, b.triangles)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// profilePoint is a point of the cross-section with its outward normal.
type profilePoint struct {
	x, z   float64
	nx, nz float64
}

// flaskProfile returns the closed cross-section as four runs (left side,
// near arc, right side, far arc), counterclockwise when seen from +Y.
// Consecutive runs share their end points.
func flaskProfile(width, thickness float64, arcSegs int) [][]profilePoint {
	hw := width / 2
	qt := thickness / 4

	// circle through (-hw,-qt), (0,-2qt), (hw,-qt); its center is on x=0
	zc := (hw*hw - 3*qt*qt) / (2 * qt)
	r := zc + 2*qt
	thetaR := math.Atan2(-qt-zc, hw)
	start, end := math.Pi-thetaR, 2*math.Pi+thetaR

	near := make([]profilePoint, 0, arcSegs+1)
	far := make([]profilePoint, 0, arcSegs+1)
	for i := 0; i <= arcSegs; i++ {
		a := start + (end-start)*float64(i)/float64(arcSegs)
		c, s := math.Cos(a), math.Sin(a)
		near = append(near, profilePoint{x: r * c, z: zc + r*s, nx: c, nz: s})
	}
	// mirror about the X axis and walk it the other way
	for i := len(near) - 1; i >= 0; i-- {
		p := near[i]
		far = append(far, profilePoint{x: p.x, z: -p.z, nx: p.nx, nz: -p.nz})
	}
	// pin the shared end points exactly
	near[0].x, near[0].z = -hw, -qt
	near[arcSegs].x, near[arcSegs].z = hw, -qt
	far[0].x, far[0].z = hw, qt
	far[arcSegs].x, far[arcSegs].z = -hw, qt

	left := []profilePoint{{x: -hw, z: qt, nx: -1}, {x: -hw, z: -qt, nx: -1}}
	right := []profilePoint{{x: hw, z: -qt, nx: 1}, {x: hw, z: qt, nx: 1}}

	return [][]profilePoint{left, near, right, far}
}

// circleProfile returns a closed circle run; the last point repeats the first.
func circleProfile(radius float64, segs int) []profilePoint {
	pts := make([]profilePoint, 0, segs+1)
	for i := 0; i <= segs; i++ {
		a := -2 * math.Pi * float64(i%segs) / float64(segs)
		c, s := math.Cos(a), math.Sin(a)
		pts = append(pts, profilePoint{x: radius * c, z: radius * s, nx: c, nz: s})
	}
	return pts
}

type builder struct {
	positions []Vec3
	normals   []Vec3
	triangles [][3]uint32
}

func (b *builder) vertex(x, y, z float64, n Vec3) uint32 {
	b.positions = append(b.positions, Vec3{float32(x), float32(y), float32(z)})
	b.normals = append(b.normals, n)
	return uint32(len(b.positions) - 1)
}

// tri appends a triangle wound counterclockwise when seen from outward.
func (b *builder) tri(i, j, k uint32, outward Vec3) {
	p0, p1, p2 := b.positions[i], b.positions[j], b.positions[k]
	e1 := Vec3{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
	e2 := Vec3{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
	n := Vec3{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	if n[0]*outward[0]+n[1]*outward[1]+n[2]*outward[2] < 0 {
		j, k = k, j
	}
	b.triangles = append(b.triangles, [3]uint32{i, j, k})
}

func (b *builder) wall(run []profilePoint, y0, y1 float64, stacks int) {
	cols := len(run)
	base := uint32(len(b.positions))
	for row := 0; row <= stacks; row++ {
		y := y0 + (y1-y0)*float64(row)/float64(stacks)
		for _, p := range run {
			b.vertex(p.x, y, p.z, Vec3{float32(p.nx), 0, float32(p.nz)})
		}
	}
	at := func(row, col int) uint32 { return base + uint32(row*cols+col) }
	for row := 0; row < stacks; row++ {
		for col := 0; col+1 < cols; col++ {
			a, c := at(row, col), at(row, col+1)
			d, e := at(row+1, col), at(row+1, col+1)
			pa, pc := run[col], run[col+1]
			out := Vec3{float32(pa.nx + pc.nx), 0, float32(pa.nz + pc.nz)}
			b.tri(a, c, e, out)
			b.tri(a, e, d, out)
		}
	}
}

// cap fans a convex outline around its centroid.
func (b *builder) cap(outline []profilePoint, y float64, n Vec3) {
	var cx, cz float64
	for _, p := range outline {
		cx += p.x
		cz += p.z
	}
	cx /= float64(len(outline))
	cz /= float64(len(outline))

	center := b.vertex(cx, y, cz, n)
	first := uint32(len(b.positions))
	for _, p := range outline {
		b.vertex(p.x, y, p.z, n)
	}
	count := uint32(len(outline))
	for i := uint32(0); i < count; i++ {
		b.tri(center, first+i, first+(i+1)%count, n)
	}
}
