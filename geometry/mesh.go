// Package geometry holds the triangle mesh type and the procedural flask
// kernel that produces it.
package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidMesh is returned by NewMesh when buffers are inconsistent.
var ErrInvalidMesh = errors.New("geometry: invalid mesh")

// Vec3 is a packed 3-component float vector, laid out the way vertex
// buffers expect it.
type Vec3 [3]float32

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min Vec3
	Max Vec3
}

// Center returns the midpoint of the box.
func (b BBox) Center() Vec3 {
	return Vec3{
		(b.Min[0] + b.Max[0]) * 0.5,
		(b.Min[1] + b.Max[1]) * 0.5,
		(b.Min[2] + b.Max[2]) * 0.5,
	}
}

// Size returns the extent of the box along each axis.
func (b BBox) Size() Vec3 {
	return Vec3{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Mesh is an immutable indexed triangle mesh. Normals are parallel to
// positions; every triangle holds three indices into them.
//
// The slices returned by the accessors are shared and must not be modified.
type Mesh struct {
	positions []Vec3
	normals   []Vec3
	triangles [][3]uint32
	bbox      BBox
}

// NewMesh validates the buffers and computes the bounding box. The mesh takes
// ownership of the slices.
func NewMesh(positions, normals []Vec3, triangles [][3]uint32) (*Mesh, error) {
	if len(positions) != len(normals) {
		return nil, fmt.Errorf("%w: %d positions, %d normals", ErrInvalidMesh, len(positions), len(normals))
	}
	n := uint32(len(positions))
	for i, tri := range triangles {
		if tri[0] >= n || tri[1] >= n || tri[2] >= n {
			return nil, fmt.Errorf("%w: triangle %d references vertex outside [0,%d)", ErrInvalidMesh, i, n)
		}
	}

	m := &Mesh{positions: positions, normals: normals, triangles: triangles}
	if len(positions) > 0 {
		lo, hi := positions[0], positions[0]
		for _, p := range positions[1:] {
			for k := 0; k < 3; k++ {
				lo[k] = min(lo[k], p[k])
				hi[k] = max(hi[k], p[k])
			}
		}
		m.bbox = BBox{Min: lo, Max: hi}
	}
	return m, nil
}

func (m *Mesh) BBox() BBox             { return m.bbox }
func (m *Mesh) Positions() []Vec3      { return m.positions }
func (m *Mesh) Normals() []Vec3        { return m.normals }
func (m *Mesh) Triangles() [][3]uint32 { return m.triangles }
func (m *Mesh) VertexCount() int       { return len(m.positions) }
func (m *Mesh) TriangleCount() int     { return len(m.triangles) }
func (m *Mesh) IndexCount() int        { return len(m.triangles) * 3 }
