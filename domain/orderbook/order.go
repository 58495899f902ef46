package orderbook

import "fmt"

type (
	OrderID  uint64
	Symbol   uint32
	Price    int64
	Quantity uint64
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Kind is the order's time-in-force.
type Kind uint8

const (
	GoodTillCancel Kind = iota
	FillOrKill
)

func (k Kind) String() string {
	switch k {
	case GoodTillCancel:
		return "GTC"
	case FillOrKill:
		return "FOK"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Order is a limit order. RemainingQty only ever decreases.
type Order struct {
	ID     OrderID
	Symbol Symbol
	Kind   Kind
	Side   Side
	Price  Price

	InitialQty   Quantity
	RemainingQty Quantity
}

func NewOrder(id OrderID, symbol Symbol, kind Kind, side Side, price Price, qty Quantity) Order {
	return Order{
		ID:           id,
		Symbol:       symbol,
		Kind:         kind,
		Side:         side,
		Price:        price,
		InitialQty:   qty,
		RemainingQty: qty,
	}
}

func (o *Order) FilledQty() Quantity { return o.InitialQty - o.RemainingQty }

func (o *Order) IsFilled() bool { return o.RemainingQty == 0 }

// Fill consumes qty from the order. Overfilling means the matching step is
// broken, so it panics instead of returning an error.
func (o *Order) Fill(qty Quantity) {
	if qty > o.RemainingQty {
		panic(fmt.Errorf("order %d cannot be filled: fill %d exceeds remaining %d",
			o.ID, qty, o.RemainingQty))
	}
	o.RemainingQty -= qty
}

// Modify replaces an order's side, price and quantity, keeping its id.
type Modify struct {
	ID    OrderID
	Side  Side
	Price Price
	Qty   Quantity
}

// ToOrder builds the replacement order. Kind and symbol come from the
// order being replaced.
func (m Modify) ToOrder(kind Kind, symbol Symbol) Order {
	return NewOrder(m.ID, symbol, kind, m.Side, m.Price, m.Qty)
}
