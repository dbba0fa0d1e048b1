package scheduler

import "github.com/azargarov/flaskanim/geometry"

type slotState uint8

const (
	slotPending slotState = iota
	slotReady
	slotFailed
)

func (s slotState) String() string {
	switch s {
	case slotPending:
		return "pending"
	case slotReady:
		return "ready"
	case slotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// slot is one frame of the look-ahead window.
type slot struct {
	ts    uint32
	state slotState
	mesh  *geometry.Mesh
}

// window is a fixed-capacity ring of slots ordered by timestamp. Slot i holds
// front.ts+i; only the scheduler's consumer goroutine touches it.
type window struct {
	buf        []slot // circular buffer
	head, size int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]slot, capacity)}
}

func (w *window) Len() int   { return w.size }
func (w *window) Cap() int   { return len(w.buf) }
func (w *window) Full() bool { return w.size == len(w.buf) }

// At returns the i-th slot from the front. i must be in [0, Len).
func (w *window) At(i int) *slot {
	return &w.buf[(w.head+i)%len(w.buf)]
}

func (w *window) Front() *slot { return w.At(0) }
func (w *window) Back() *slot  { return w.At(w.size - 1) }

// PushBack appends s; it reports false when the ring is full.
func (w *window) PushBack(s slot) bool {
	if w.Full() {
		return false
	}
	w.buf[(w.head+w.size)%len(w.buf)] = s
	w.size++
	return true
}

// PopFront removes and returns the oldest slot.
func (w *window) PopFront() (slot, bool) {
	if w.size == 0 {
		return slot{}, false
	}
	s := w.buf[w.head]
	w.buf[w.head] = slot{}
	w.head++
	if w.head == len(w.buf) {
		w.head = 0
	}
	w.size--
	return s, true
}

// PopBack removes and returns the newest slot.
func (w *window) PopBack() (slot, bool) {
	if w.size == 0 {
		return slot{}, false
	}
	i := (w.head + w.size - 1) % len(w.buf)
	s := w.buf[i]
	w.buf[i] = slot{}
	w.size--
	return s, true
}

// find returns the slot for ts, or nil when ts is not in the window.
func (w *window) find(ts uint32) *slot {
	if w.size == 0 {
		return nil
	}
	front := w.Front().ts
	if ts < front {
		return nil
	}
	i := ts - front
	if i >= uint32(w.size) {
		return nil
	}
	s := w.At(int(i))
	if s.ts != ts {
		return nil
	}
	return s
}

func (w *window) reset() {
	clear(w.buf)
	w.head, w.size = 0, 0
}
