package service

import (
	"time"

	"shardbook/domain/orderbook"
	"shardbook/infra/codec"
	"shardbook/infra/outbox"
	"shardbook/infra/sequence"
)

// TradeSink receives every trade a worker produces. Implementations must
// not drop trades; an error means the batch was not accepted.
type TradeSink interface {
	Publish(symbol orderbook.Symbol, trades orderbook.Trades) error
}

// TradeSinkFunc adapts a function to TradeSink.
type TradeSinkFunc func(orderbook.Symbol, orderbook.Trades) error

func (f TradeSinkFunc) Publish(s orderbook.Symbol, t orderbook.Trades) error { return f(s, t) }

// DiscardSink accepts and forgets trades.
var DiscardSink TradeSink = TradeSinkFunc(func(orderbook.Symbol, orderbook.Trades) error { return nil })

// OutboxSink stamps trades with a global sequence and journals them.
// It is safe for concurrent use by all workers.
type OutboxSink struct {
	outbox *outbox.Outbox
	seq    *sequence.Sequencer
	now    func() time.Time
}

// NewOutboxSink continues numbering after the outbox's last record.
func NewOutboxSink(ob *outbox.Outbox) (*OutboxSink, error) {
	seq, err := sequence.Resume(ob)
	if err != nil {
		return nil, err
	}
	return &OutboxSink{outbox: ob, seq: seq, now: time.Now}, nil
}

// Publish journals one match result under a contiguous block of sequences.
func (s *OutboxSink) Publish(symbol orderbook.Symbol, trades orderbook.Trades) error {
	if len(trades) == 0 {
		return nil
	}
	ts := s.now().UnixNano()
	first := s.seq.Reserve(uint64(len(trades)))
	events := make([]codec.TradeEvent, len(trades))
	for i, t := range trades {
		events[i] = codec.TradeEvent{
			Seq:       first + uint64(i),
			Symbol:    symbol,
			Trade:     t,
			UnixNanos: ts,
		}
	}
	return s.outbox.Append(events...)
}

// LastSeq is the most recently issued trade sequence.
func (s *OutboxSink) LastSeq() uint64 {
	return s.seq.Current()
}
