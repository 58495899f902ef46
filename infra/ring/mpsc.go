package ring

import (
	"runtime"
	"sync/atomic"
)

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// MPSC is a bounded ring for many producers and a single consumer.
//
// Every slot carries a sequence number that acts as a ticket: a producer
// that claimed position pos may write slot pos%cap only once seq == pos,
// and publishes it by storing seq = pos+1. The consumer frees the slot for
// the next lap by storing seq = pos+cap.
type MPSC[T any] struct {
	write atomic.Uint64
	_pad1 [56]byte
	read  atomic.Uint64
	_pad2 [56]byte

	slots []slot[T]
	cap   uint64
}

// NewMPSC panics for capacity < 2. With a single slot the "written"
// ticket of one lap equals the "free" ticket of the next, so a second
// producer could overwrite an element the consumer has not read.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 2 {
		panic("ring: MPSC capacity must be at least 2")
	}
	q := &MPSC[T]{
		slots: make([]slot[T], capacity),
		cap:   uint64(capacity),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Push enqueues v from any goroutine.
//
// The capacity check is a snapshot taken before the claim, so concurrent
// producers can see a spurious false near the limit. A producer that
// passes the check and then lands on a slot the consumer has not vacated
// yields until it is released.
func (q *MPSC[T]) Push(v T) bool {
	if q.write.Load()-q.read.Load() >= q.cap {
		return false
	}
	pos := q.write.Add(1) - 1
	s := &q.slots[pos%q.cap]
	for s.seq.Load() != pos {
		runtime.Gosched()
	}
	s.val = v
	s.seq.Store(pos + 1)
	return true
}

// Pop dequeues the oldest published element. Only one goroutine may call it.
func (q *MPSC[T]) Pop() (T, bool) {
	var zero T
	pos := q.read.Load()
	s := &q.slots[pos%q.cap]
	if s.seq.Load() != pos+1 {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.seq.Store(pos + q.cap)
	q.read.Store(pos + 1)
	return v, true
}

// Len counts claimed positions, including ones still being written.
func (q *MPSC[T]) Len() int {
	r := q.read.Load()
	w := q.write.Load()
	if w < r {
		return 0
	}
	return int(w - r)
}

func (q *MPSC[T]) Cap() int { return int(q.cap) }
