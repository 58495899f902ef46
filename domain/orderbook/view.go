package orderbook

// LevelView is a read-only summary of one price level.
type LevelView struct {
	Price  Price
	Qty    Quantity
	Orders int
}

// Len is the number of resting orders on both sides.
func (b *OrderBook) Len() int { return len(b.index) }

// Levels is the number of price levels on one side.
func (b *OrderBook) Levels(s Side) int { return b.tree(s).Len() }

// Order returns a copy of a resting order.
func (b *OrderBook) Order(id OrderID) (Order, bool) {
	slot, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return b.orders.at(slot).order, true
}

// Depth returns up to n levels of one side, best price first. n <= 0
// returns every level.
func (b *OrderBook) Depth(s Side, n int) []LevelView {
	out := make([]LevelView, 0, b.tree(s).Len())
	b.walkLevels(s, func(l *PriceLevel) bool {
		out = append(out, LevelView{Price: l.Price, Qty: l.TotalQty, Orders: l.OrderCount})
		return n <= 0 || len(out) < n
	})
	return out
}

// Walk visits resting orders of one side in matching priority until fn
// returns false.
func (b *OrderBook) Walk(s Side, fn func(Order) bool) {
	b.walkLevels(s, func(l *PriceLevel) bool {
		for i := l.head; i != noSlot; {
			e := b.orders.at(i)
			if !fn(e.order) {
				return false
			}
			i = e.next
		}
		return true
	})
}

func (b *OrderBook) walkLevels(s Side, fn func(*PriceLevel) bool) {
	if s == Bid {
		b.bids.Descend(fn)
	} else {
		b.asks.Ascend(fn)
	}
}
