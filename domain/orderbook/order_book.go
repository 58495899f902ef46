package orderbook

// OrderBook keeps bids and asks for one instrument in price-time priority.
// It is not safe for concurrent use.
type OrderBook struct {
	bids *priceTree // best = highest
	asks *priceTree // best = lowest

	orders arena
	index  map[OrderID]int32

	opts options
}

func NewOrderBook(opts ...Option) *OrderBook {
	b := &OrderBook{
		bids:  newPriceTree(),
		asks:  newPriceTree(),
		index: make(map[OrderID]int32),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// AddOrder rests the order at the back of its price level and matches.
// A duplicate id or a zero quantity is ignored and yields no trades.
func (b *OrderBook) AddOrder(o Order) Trades {
	if _, ok := b.index[o.ID]; ok {
		return nil
	}
	if o.RemainingQty == 0 {
		return nil
	}
	if b.opts.fillOrKill && o.Kind == FillOrKill && !b.canFill(o) {
		return nil
	}

	slot := b.orders.alloc(o)
	lvl := b.tree(o.Side).Upsert(o.Price)
	b.orders.pushBack(lvl, slot)
	b.index[o.ID] = slot

	return b.matchOrders()
}

// CancelOrder removes a resting order. It reports false for an unknown id,
// including one that was already filled or cancelled.
func (b *OrderBook) CancelOrder(id OrderID) bool {
	slot, ok := b.index[id]
	if !ok {
		return false
	}
	b.remove(slot)
	return true
}

// ModifyOrder replaces a resting order with the new side, price and
// quantity under the same id and the original kind. The replacement goes to
// the back of its level unless WithInPlaceReduce applies.
func (b *OrderBook) ModifyOrder(m Modify) Trades {
	slot, ok := b.index[m.ID]
	if !ok {
		return nil
	}
	cur := b.orders.at(slot).order

	if b.opts.inPlaceReduce && m.Qty > 0 &&
		m.Side == cur.Side && m.Price == cur.Price && m.Qty <= cur.RemainingQty {
		b.reduce(slot, m.Qty)
		return nil
	}

	b.remove(slot)
	return b.AddOrder(m.ToOrder(cur.Kind, cur.Symbol))
}

// BestBid returns the highest bid; ok is false when there are no bids.
func (b *OrderBook) BestBid() (Price, bool) {
	if l := b.bids.Max(); l != nil {
		return l.Price, true
	}
	return 0, false
}

// BestAsk returns the lowest ask; ok is false when there are no asks.
func (b *OrderBook) BestAsk() (Price, bool) {
	if l := b.asks.Min(); l != nil {
		return l.Price, true
	}
	return 0, false
}

// ---- matching ----

func (b *OrderBook) matchOrders() Trades {
	var trades Trades

	for {
		bids, asks := b.bids.Max(), b.asks.Min()
		if bids == nil || asks == nil || bids.Price < asks.Price {
			return trades
		}

		for !bids.Empty() && !asks.Empty() {
			bidSlot, askSlot := bids.head, asks.head
			bid, ask := b.orders.at(bidSlot), b.orders.at(askSlot)

			qty := min(bid.order.RemainingQty, ask.order.RemainingQty)
			bid.order.Fill(qty)
			ask.order.Fill(qty)
			bids.TotalQty -= qty
			asks.TotalQty -= qty

			trades = append(trades, Trade{
				Bid: TradeInfo{OrderID: bid.order.ID, Price: bid.order.Price, Qty: qty},
				Ask: TradeInfo{OrderID: ask.order.ID, Price: ask.order.Price, Qty: qty},
			})

			if bid.order.IsFilled() {
				b.retire(bidSlot)
			}
			if ask.order.IsFilled() {
				b.retire(askSlot)
			}
		}

		if bids.Empty() {
			b.bids.Delete(bids.Price)
		}
		if asks.Empty() {
			b.asks.Delete(asks.Price)
		}
	}
}

// canFill reports whether the opposite side holds enough quantity at
// prices o would cross to fill it completely.
func (b *OrderBook) canFill(o Order) bool {
	var available Quantity
	enough := func(l *PriceLevel) bool {
		available += l.TotalQty
		return available < o.RemainingQty
	}
	if o.Side == Bid {
		b.asks.Ascend(func(l *PriceLevel) bool {
			return l.Price <= o.Price && enough(l)
		})
	} else {
		b.bids.Descend(func(l *PriceLevel) bool {
			return l.Price >= o.Price && enough(l)
		})
	}
	return available >= o.RemainingQty
}

// ---- removal ----

// remove unlinks a resting order, prunes its level if emptied and frees
// the slot.
func (b *OrderBook) remove(slot int32) {
	e := b.orders.at(slot)
	lvl, id, side := e.level, e.order.ID, e.order.Side
	b.orders.unlink(slot)
	if lvl.Empty() {
		b.tree(side).Delete(lvl.Price)
	}
	delete(b.index, id)
	b.orders.release(slot)
}

// retire drops a filled order during matching. Its level is pruned by the
// match loop once both fronts are exhausted.
func (b *OrderBook) retire(slot int32) {
	delete(b.index, b.orders.at(slot).order.ID)
	b.orders.unlink(slot)
	b.orders.release(slot)
}

// reduce lowers the resting quantity to qty. InitialQty is kept so the
// filled amount survives the modify.
func (b *OrderBook) reduce(slot int32, qty Quantity) {
	e := b.orders.at(slot)
	e.level.TotalQty -= e.order.RemainingQty - qty
	e.order.RemainingQty = qty
}

func (b *OrderBook) tree(s Side) *priceTree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}
