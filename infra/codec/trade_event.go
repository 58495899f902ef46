// Package codec encodes trade events in protobuf wire format so any
// protobuf consumer can read them with a matching message definition:
//
//	message TradeEvent {
//	  uint64 seq = 1;
//	  uint32 symbol = 2;
//	  uint64 bid_order_id = 3;
//	  sint64 bid_price = 4;
//	  uint64 ask_order_id = 5;
//	  sint64 ask_price = 6;
//	  uint64 qty = 7;
//	  int64 unix_nanos = 8;
//	}
package codec

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"shardbook/domain/orderbook"
)

const (
	fieldSeq protowire.Number = iota + 1
	fieldSymbol
	fieldBidOrder
	fieldBidPrice
	fieldAskOrder
	fieldAskPrice
	fieldQty
	fieldUnixNanos
)

// TradeEvent is one executed trade as published downstream.
type TradeEvent struct {
	Seq       uint64
	Symbol    orderbook.Symbol
	Trade     orderbook.Trade
	UnixNanos int64
}

var ErrMalformed = errors.New("codec: malformed trade event")

// Marshal appends the encoded event to b.
func Marshal(b []byte, ev TradeEvent) []byte {
	b = appendVarint(b, fieldSeq, ev.Seq)
	b = appendVarint(b, fieldSymbol, uint64(ev.Symbol))
	b = appendVarint(b, fieldBidOrder, uint64(ev.Trade.Bid.OrderID))
	b = appendVarint(b, fieldBidPrice, protowire.EncodeZigZag(int64(ev.Trade.Bid.Price)))
	b = appendVarint(b, fieldAskOrder, uint64(ev.Trade.Ask.OrderID))
	b = appendVarint(b, fieldAskPrice, protowire.EncodeZigZag(int64(ev.Trade.Ask.Price)))
	b = appendVarint(b, fieldQty, uint64(ev.Trade.Bid.Qty))
	b = appendVarint(b, fieldUnixNanos, uint64(ev.UnixNanos))
	return b
}

func appendVarint(b []byte, n protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Unmarshal decodes an event. Unknown fields are skipped.
func Unmarshal(b []byte) (TradeEvent, error) {
	var ev TradeEvent
	var qty uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return TradeEvent{}, malformed(num, n)
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return TradeEvent{}, malformed(num, n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return TradeEvent{}, malformed(num, n)
		}
		b = b[n:]

		switch num {
		case fieldSeq:
			ev.Seq = v
		case fieldSymbol:
			ev.Symbol = orderbook.Symbol(v)
		case fieldBidOrder:
			ev.Trade.Bid.OrderID = orderbook.OrderID(v)
		case fieldBidPrice:
			ev.Trade.Bid.Price = orderbook.Price(protowire.DecodeZigZag(v))
		case fieldAskOrder:
			ev.Trade.Ask.OrderID = orderbook.OrderID(v)
		case fieldAskPrice:
			ev.Trade.Ask.Price = orderbook.Price(protowire.DecodeZigZag(v))
		case fieldQty:
			qty = v
		case fieldUnixNanos:
			ev.UnixNanos = int64(v)
		}
	}
	ev.Trade.Bid.Qty = orderbook.Quantity(qty)
	ev.Trade.Ask.Qty = orderbook.Quantity(qty)
	return ev, nil
}

func malformed(num protowire.Number, n int) error {
	return errors.Wrapf(errors.Mark(protowire.ParseError(n), ErrMalformed), "field %d", num)
}
