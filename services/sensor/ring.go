package sensor

import (
	"m3logger/errcode"
	"m3logger/types"
)

// Ring is a fixed-capacity FIFO of samples with separate read/write cursors.
// A push against a full ring is rejected and counted as loss; existing
// samples are never overwritten, so ordering and no-duplication hold under
// sustained overflow.
type Ring struct {
	buf   []types.Sample
	head  int // next read
	tail  int // next write
	count int
	lost  uint32
}

// NewRing creates a ring with the given capacity (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]types.Sample, capacity)}
}

func (r *Ring) Cap() int     { return len(r.buf) }
func (r *Ring) Len() int     { return r.count }
func (r *Ring) Lost() uint32 { return r.lost }

// Reset clears cursors and the loss counter.
func (r *Ring) Reset() {
	r.head, r.tail, r.count, r.lost = 0, 0, 0, 0
}

// Push appends a sample. Returns errcode.BufferFull (and increments the loss
// counter) when the ring is full.
func (r *Ring) Push(s types.Sample) error {
	if r.count == len(r.buf) {
		r.lost++
		return errcode.BufferFull
	}
	r.buf[r.tail] = s
	r.tail = (r.tail + 1) % len(r.buf)
	r.count++
	return nil
}

// Discard drops everything still buffered, counting it as loss. Used when
// the consumer can no longer accept writes; returns the number dropped.
func (r *Ring) Discard() uint32 {
	n := uint32(r.count)
	r.lost += n
	r.head, r.tail, r.count = 0, 0, 0
	return n
}

// Pop removes and returns the oldest sample.
func (r *Ring) Pop() (types.Sample, bool) {
	if r.count == 0 {
		return types.Sample{}, false
	}
	s := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return s, true
}
