package orderbook

// TradeInfo is one side of a match.
type TradeInfo struct {
	OrderID OrderID
	Price   Price
	Qty     Quantity
}

// Trade pairs both sides of a single match. Each side keeps its own resting
// price, so Bid.Price and Ask.Price differ whenever the match crossed the
// spread.
type Trade struct {
	Bid TradeInfo
	Ask TradeInfo
}

type Trades []Trade

// Volume is the total quantity matched.
func (t Trades) Volume() Quantity {
	var v Quantity
	for _, tr := range t {
		v += tr.Bid.Qty
	}
	return v
}
