package scheduler

import (
	"testing"

	"github.com/azargarov/flaskanim/geometry"
)

func TestInboxDrainReleasesMeshes(t *testing.T) {
	var b inbox
	mesh := &geometry.Mesh{}

	b.push(result{ts: 1, mesh: mesh})
	b.push(result{ts: 2, mesh: mesh})
	first := b.drain()
	if len(first) != 2 || first[0].mesh != mesh {
		t.Fatalf("first drain = %+v", first)
	}

	b.push(result{ts: 3})
	second := b.drain()
	if len(second) != 1 || second[0].ts != 3 {
		t.Fatalf("second drain = %+v", second)
	}
	// first shares the buffer that the second drain handed back for reuse
	for i, r := range first {
		if r.mesh != nil {
			t.Fatalf("first[%d] still holds a mesh after the next drain", i)
		}
	}

	if third := b.drain(); len(third) != 0 {
		t.Fatalf("third drain = %+v; want empty", third)
	}
	if second[0] != (result{}) {
		t.Fatalf("second[0] = %+v; want zeroed", second[0])
	}
}

func TestInboxReset(t *testing.T) {
	var b inbox
	mesh := &geometry.Mesh{}

	b.push(result{ts: 1, mesh: mesh})
	drained := b.drain()
	b.push(result{ts: 2, mesh: mesh})
	pending := b.items

	b.reset()
	if drained[0].mesh != nil || pending[0].mesh != nil {
		t.Fatal("reset kept a mesh reachable")
	}
	if got := b.drain(); len(got) != 0 {
		t.Fatalf("drain after reset = %+v; want empty", got)
	}
}
