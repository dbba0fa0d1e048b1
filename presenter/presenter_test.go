package presenter

import (
	"context"
	"errors"
	"testing"

	"github.com/azargarov/flaskanim/geometry"
	"github.com/azargarov/flaskanim/scheduler"
)

func testMesh(t *testing.T, height float32) *geometry.Mesh {
	t.Helper()

	m, err := geometry.NewMesh(
		[]geometry.Vec3{{-1, 0, 0}, {1, 0, 0}, {1, height, 2}},
		[]geometry.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		[][3]uint32{{0, 1, 2}},
	)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	return m
}

func TestPresentRebuildsOnNewFrame(t *testing.T) {
	up := &CPUUploader{}
	p, err := New(context.Background(), up)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if st := p.Present(0, nil); st.Sync != InSync || up.Draws != 0 {
		t.Fatalf("empty presenter: status %v, draws %d", st, up.Draws)
	}

	g := &scheduler.Generated{TS: 1, Mesh: testMesh(t, 4)}
	st := p.Present(3, g)
	if st.Sync != Behind || st.Lag != 2 || st.Built != 1 {
		t.Fatalf("status = %+v; want behind 2", st)
	}
	if p.Uploads() != 1 || up.Draws != 1 || up.Elements != 3 {
		t.Fatalf("uploads %d, draws %d, elements %d", p.Uploads(), up.Draws, up.Elements)
	}
	if len(up.Positions) != 3*12 || len(up.Indices) != 12 {
		t.Fatalf("buffer sizes %d/%d", len(up.Positions), len(up.Indices))
	}
	if off := p.Offset(); off != (geometry.Vec3{0, -2, -1}) {
		t.Fatalf("offset = %v; want (0,-2,-1)", off)
	}
	if up.Last.Offset != p.Offset() {
		t.Fatalf("draw used offset %v", up.Last.Offset)
	}

	// same frame again is not rebuilt, but still drawn
	p.Present(3, g)
	if p.Uploads() != 1 || up.Draws != 2 {
		t.Fatalf("uploads %d, draws %d after repeat", p.Uploads(), up.Draws)
	}

	st = p.Present(2, &scheduler.Generated{TS: 5, Mesh: testMesh(t, 2)})
	if st.Sync != Ahead || st.Lag != 3 || st.String() != "ahead 3" {
		t.Fatalf("status = %+v (%s); want ahead 3", st, st)
	}
	if built, ok := p.Built(); !ok || built != 5 {
		t.Fatalf("built = %d, %v", built, ok)
	}
}

type failingUploader struct{ draws int }

func (f *failingUploader) Upload(*geometry.Mesh) error { return errors.New("out of memory") }
func (f *failingUploader) Draw(Transform) error        { f.draws++; return nil }

func TestPresentKeepsOldModelOnUploadError(t *testing.T) {
	up := &failingUploader{}
	p, _ := New(context.Background(), up)

	st := p.Present(4, &scheduler.Generated{TS: 4, Mesh: testMesh(t, 1)})
	if _, ok := p.Built(); ok {
		t.Fatal("failed upload counted as built")
	}
	if st.Sync != Behind || st.Lag != 4 || up.draws != 0 {
		t.Fatalf("status %+v, draws %d", st, up.draws)
	}
}

func TestPresentSpin(t *testing.T) {
	up := &CPUUploader{}
	p, _ := New(context.Background(), up)
	p.Spin = func(frame uint32) float64 { return float64(frame) / 10 }

	p.Present(20, &scheduler.Generated{TS: 20, Mesh: testMesh(t, 1)})
	if up.Last.RotationY != 2 {
		t.Fatalf("rotation = %v; want 2", up.Last.RotationY)
	}
}

func TestNewRejectsNilUploader(t *testing.T) {
	if _, err := New(context.Background(), nil); !errors.Is(err, ErrNilUploader) {
		t.Fatalf("err = %v; want ErrNilUploader", err)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		ts, built uint32
		want      string
	}{
		{5, 5, "in sync"},
		{7, 5, "behind 2"},
		{5, 9, "ahead 4"},
	}
	for _, tt := range tests {
		if got := statusAt(tt.ts, tt.built).String(); got != tt.want {
			t.Fatalf("statusAt(%d, %d) = %q; want %q", tt.ts, tt.built, got, tt.want)
		}
	}
}
