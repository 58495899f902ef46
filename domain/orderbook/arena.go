package orderbook

const noSlot int32 = -1

type entry struct {
	order Order
	level *PriceLevel
	prev  int32
	next  int32
}

// arena is a dense store of resting orders. Slots of removed orders go on
// a free list and are reused, so the slice only grows to the high-water
// mark of simultaneously resting orders.
type arena struct {
	entries []entry
	free    []int32
}

func (a *arena) alloc(o Order) int32 {
	e := entry{order: o, prev: noSlot, next: noSlot}
	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]
		a.entries[i] = e
		return i
	}
	a.entries = append(a.entries, e)
	return int32(len(a.entries) - 1)
}

func (a *arena) release(i int32) {
	a.entries[i] = entry{prev: noSlot, next: noSlot}
	a.free = append(a.free, i)
}

// at returns a pointer into the arena. It is invalidated by the next alloc.
func (a *arena) at(i int32) *entry {
	return &a.entries[i]
}
