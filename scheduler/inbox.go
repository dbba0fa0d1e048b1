package scheduler

import (
	"sync"

	"github.com/azargarov/flaskanim/geometry"
)

// result is what a worker posts when a generation task returns.
type result struct {
	ts   uint32
	mesh *geometry.Mesh
	err  error
}

// inbox collects results from any number of workers for a single consumer.
// push never waits on the consumer and drain never waits on workers.
type inbox struct {
	mu    sync.Mutex
	items []result
	spare []result
}

func (b *inbox) push(r result) {
	b.mu.Lock()
	b.items = append(b.items, r)
	b.mu.Unlock()
}

// drain returns everything pushed so far. The returned slice is only valid
// until the next call, which zeroes it so meshes the consumer dropped are
// not kept alive by the buffer.
func (b *inbox) drain() []result {
	clear(b.spare)

	b.mu.Lock()
	out := b.items
	b.items = b.spare[:0]
	b.mu.Unlock()
	b.spare = out
	return out
}

// reset drops every pending and previously drained result.
func (b *inbox) reset() {
	b.mu.Lock()
	clear(b.items)
	b.items = b.items[:0]
	b.mu.Unlock()
	clear(b.spare)
	b.spare = b.spare[:0]
}
