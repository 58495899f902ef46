package service

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"shardbook/domain/orderbook"
)

// Reporter renders fixed-point prices for humans. A Price of 10150 with
// scale 2 prints as 101.50.
type Reporter struct {
	scale int32
}

func NewReporter(scale int32) Reporter {
	return Reporter{scale: scale}
}

func (r Reporter) Decimal(p orderbook.Price) decimal.Decimal {
	return decimal.New(int64(p), -r.scale)
}

func (r Reporter) Price(p orderbook.Price) string {
	return r.Decimal(p).StringFixed(r.scale)
}

// Notional is price times quantity at display scale.
func (r Reporter) Notional(p orderbook.Price, q orderbook.Quantity) string {
	return r.Decimal(p).Mul(decimal.New(int64(q), 0)).StringFixed(r.scale)
}

func (r Reporter) TradeLine(t orderbook.Trade) string {
	return fmt.Sprintf("trade %d: bid #%d @ %s / ask #%d @ %s",
		t.Bid.Qty, t.Bid.OrderID, r.Price(t.Bid.Price), t.Ask.OrderID, r.Price(t.Ask.Price))
}

// WriteDepth prints up to n levels per side as a table, asks above bids.
// The book must not be changing.
func (r Reporter) WriteDepth(w io.Writer, symbol orderbook.Symbol, book *orderbook.OrderBook, n int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"side", "price", "qty", "orders", "notional"})

	asks := book.Depth(orderbook.Ask, n)
	for i := len(asks) - 1; i >= 0; i-- {
		table.Append(r.depthRow(orderbook.Ask, asks[i]))
	}
	for _, lvl := range book.Depth(orderbook.Bid, n) {
		table.Append(r.depthRow(orderbook.Bid, lvl))
	}

	table.SetCaption(true, fmt.Sprintf("symbol %d (%d resting)", symbol, book.Len()))
	table.Render()
}

func (r Reporter) depthRow(s orderbook.Side, l orderbook.LevelView) []string {
	return []string{
		s.String(),
		r.Price(l.Price),
		strconv.FormatUint(uint64(l.Qty), 10),
		strconv.Itoa(l.Orders),
		r.Notional(l.Price, l.Qty),
	}
}
