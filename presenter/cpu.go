package presenter

import (
	"unsafe"

	"github.com/azargarov/flaskanim/geometry"
)

// CPUUploader packs meshes into the byte buffers a GPU upload would take and
// counts draws. It keeps a single set of buffers and reuses their storage.
type CPUUploader struct {
	Positions []byte
	Normals   []byte
	Indices   []byte

	// Elements is the index count of the current buffers.
	Elements int
	Last     Transform
	Draws    int
}

func (u *CPUUploader) Upload(m *geometry.Mesh) error {
	u.Positions = append(u.Positions[:0], sliceToBytes(m.Positions())...)
	u.Normals = append(u.Normals[:0], sliceToBytes(m.Normals())...)
	u.Indices = append(u.Indices[:0], sliceToBytes(m.Triangles())...)
	u.Elements = m.IndexCount()
	return nil
}

func (u *CPUUploader) Draw(t Transform) error {
	u.Last = t
	u.Draws++
	return nil
}

// sliceToBytes reinterprets a slice of plain values as its raw bytes.
func sliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}
