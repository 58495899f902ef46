package orderbook

// PriceLevel is the FIFO of resting orders at one price on one side.
// It links arena slots; head is the oldest order.
type PriceLevel struct {
	Price Price

	head int32
	tail int32

	TotalQty   Quantity
	OrderCount int
}

func newPriceLevel(p Price) *PriceLevel {
	return &PriceLevel{Price: p, head: noSlot, tail: noSlot}
}

func (l *PriceLevel) Empty() bool {
	return l.head == noSlot
}

func (a *arena) pushBack(l *PriceLevel, i int32) {
	e := a.at(i)
	e.level = l
	e.prev = l.tail
	e.next = noSlot
	if l.tail == noSlot {
		l.head = i
	} else {
		a.at(l.tail).next = i
	}
	l.tail = i
	l.TotalQty += e.order.RemainingQty
	l.OrderCount++
}

// unlink removes slot i from its level in O(1).
func (a *arena) unlink(i int32) {
	e := a.at(i)
	l := e.level
	if e.prev != noSlot {
		a.at(e.prev).next = e.next
	} else {
		l.head = e.next
	}
	if e.next != noSlot {
		a.at(e.next).prev = e.prev
	} else {
		l.tail = e.prev
	}
	l.TotalQty -= e.order.RemainingQty
	l.OrderCount--
	e.prev, e.next, e.level = noSlot, noSlot, nil
}
