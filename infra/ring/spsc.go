package ring

import "sync/atomic"

// SPSC is a bounded ring for exactly one producer and one consumer.
//
// head is written only by the producer and tail only by the consumer. Both
// are monotonically increasing counters; the slot is counter % capacity.
// The element is written before head is published, so a consumer that
// observes the new head also observes the element beneath it. Calling Push
// from two goroutines, or Pop from two goroutines, is undefined behaviour.
type SPSC[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte

	buf []T
	cap uint64
}

func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 1 {
		panic("ring: SPSC capacity must be positive")
	}
	return &SPSC[T]{
		buf: make([]T, capacity),
		cap: uint64(capacity),
	}
}

// Push enqueues v. It returns false, leaving the ring untouched, when full.
func (q *SPSC[T]) Push(v T) bool {
	h := q.head.Load()
	t := q.tail.Load()
	if h-t == q.cap {
		return false
	}
	q.buf[h%q.cap] = v
	q.head.Store(h + 1)
	return true
}

// Pop dequeues the oldest element. It never blocks or spins.
func (q *SPSC[T]) Pop() (T, bool) {
	var zero T
	t := q.tail.Load()
	h := q.head.Load()
	if t == h {
		return zero, false
	}
	i := t % q.cap
	v := q.buf[i]
	q.buf[i] = zero
	q.tail.Store(t + 1)
	return v, true
}

// Len, Empty and Full are snapshots; they may be stale by the time the
// caller acts on them.
func (q *SPSC[T]) Len() int {
	t := q.tail.Load()
	h := q.head.Load()
	return int(h - t)
}

func (q *SPSC[T]) Cap() int { return int(q.cap) }

func (q *SPSC[T]) Empty() bool { return q.Len() == 0 }

func (q *SPSC[T]) Full() bool { return uint64(q.Len()) == q.cap }
