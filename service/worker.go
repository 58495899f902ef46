package service

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"shardbook/domain/message"
	"shardbook/domain/orderbook"
	"shardbook/infra/logging"
	"shardbook/infra/metrics"
	"shardbook/infra/ring"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

type WorkerConfig struct {
	// Backoff is the sleep after an empty poll. Defaults to 1ms.
	Backoff     time.Duration
	BookOptions []orderbook.Option

	Sink TradeSink
	// LogQueue receives one entry per trade. Full queue drops the line.
	LogQueue *ring.MPSC[logging.Entry]
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics
	Reporter Reporter
}

// WorkerStats is an advisory snapshot; fields are read independently.
type WorkerStats struct {
	Symbol    orderbook.Symbol `json:"symbol"`
	Running   bool             `json:"running"`
	Processed uint64           `json:"processed"`
	Trades    uint64           `json:"trades"`
	Volume    uint64           `json:"volume"`
	Unknown   uint64           `json:"unknown_cancels"`
	Resting   int64            `json:"resting"`
	BestBid   *int64           `json:"best_bid,omitempty"`
	BestAsk   *int64           `json:"best_ask,omitempty"`
	QueueLen  int              `json:"queue_len"`
}

// SymbolWorker applies one symbol's queue to its book on a dedicated OS
// thread. The book is touched only by the worker goroutine while running.
type SymbolWorker struct {
	symbol orderbook.Symbol
	queue  ring.Queue[message.Message]
	book   *orderbook.OrderBook
	cfg    WorkerConfig
	log    logrus.FieldLogger

	processedByKind [3]prometheus.Counter
	tradeCounter    prometheus.Counter

	state atomic.Int32
	done  chan struct{}

	processed atomic.Uint64
	trades    atomic.Uint64
	volume    atomic.Uint64
	unknown   atomic.Uint64
	resting   atomic.Int64
	bestBid   atomic.Int64
	bestAsk   atomic.Int64
	hasBid    atomic.Bool
	hasAsk    atomic.Bool
}

func NewSymbolWorker(symbol orderbook.Symbol, queue ring.Queue[message.Message], cfg WorkerConfig) *SymbolWorker {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Millisecond
	}
	if cfg.Sink == nil {
		cfg.Sink = DiscardSink
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}

	w := &SymbolWorker{
		symbol: symbol,
		queue:  queue,
		book:   orderbook.NewOrderBook(cfg.BookOptions...),
		cfg:    cfg,
		log:    cfg.Log.WithField("symbol", symbol),
		done:   make(chan struct{}),
	}

	label := metrics.Symbol(uint32(symbol))
	for k := message.KindAdd; k <= message.KindCancel; k++ {
		w.processedByKind[k] = cfg.Metrics.Processed.WithLabelValues(label, k.String())
	}
	w.tradeCounter = cfg.Metrics.Trades.WithLabelValues(label)
	return w
}

// Start launches the worker. Calls after the first are no-ops.
func (w *SymbolWorker) Start() {
	if !w.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}
	go w.run()
	w.log.Debug("worker started")
}

// Stop asks the worker to exit and waits for it. The message being
// applied completes; messages still queued stay queued.
func (w *SymbolWorker) Stop() {
	if w.state.CompareAndSwap(stateIdle, stateStopped) {
		close(w.done)
		return
	}
	if w.state.CompareAndSwap(stateRunning, stateStopped) {
		<-w.done
		w.log.WithField("processed", w.processed.Load()).Debug("worker stopped")
		return
	}
	<-w.done
}

// Book is the worker's book. Read it only before Start or after Stop.
func (w *SymbolWorker) Book() *orderbook.OrderBook { return w.book }

func (w *SymbolWorker) Symbol() orderbook.Symbol { return w.symbol }

func (w *SymbolWorker) Stats() WorkerStats {
	s := WorkerStats{
		Symbol:    w.symbol,
		Running:   w.state.Load() == stateRunning,
		Processed: w.processed.Load(),
		Trades:    w.trades.Load(),
		Volume:    w.volume.Load(),
		Unknown:   w.unknown.Load(),
		Resting:   w.resting.Load(),
		QueueLen:  w.queue.Len(),
	}
	if w.hasBid.Load() {
		v := w.bestBid.Load()
		s.BestBid = &v
	}
	if w.hasAsk.Load() {
		v := w.bestAsk.Load()
		s.BestAsk = &v
	}
	return s
}

// ---- loop ----

func (w *SymbolWorker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	for w.state.Load() == stateRunning {
		msg, ok := w.queue.Pop()
		if !ok {
			time.Sleep(w.cfg.Backoff)
			continue
		}
		w.apply(msg)
	}
}

// apply runs one message against the book. A panic here means the book
// is corrupt; it is logged and re-raised on this goroutine.
func (w *SymbolWorker) apply(msg message.Message) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("message", msg.String()).WithField("panic", r).Error("matching step failed")
			panic(r)
		}
	}()

	var trades orderbook.Trades
	switch msg.Kind {
	case message.KindAdd:
		trades = w.book.AddOrder(msg.Order)
	case message.KindModify:
		trades = w.book.ModifyOrder(msg.Modify)
	case message.KindCancel:
		ok := w.book.CancelOrder(msg.OrderID)
		if !ok {
			w.unknown.Add(1)
		}
		w.report(logging.Entry{
			Symbol: uint32(w.symbol),
			Event:  "cancel",
			Line:   fmt.Sprintf("cancel #%d", msg.OrderID),
			Fields: logrus.Fields{"order_id": msg.OrderID, "ok": ok},
		})
	default:
		w.log.WithField("kind", msg.Kind).Warn("dropping message of unknown kind")
		return
	}

	w.processed.Add(1)
	w.processedByKind[msg.Kind].Inc()
	if len(trades) > 0 {
		w.emit(trades)
	}
	w.publishTop()
}

func (w *SymbolWorker) emit(trades orderbook.Trades) {
	vol := trades.Volume()
	w.trades.Add(uint64(len(trades)))
	w.volume.Add(uint64(vol))
	w.tradeCounter.Add(float64(len(trades)))

	if err := w.cfg.Sink.Publish(w.symbol, trades); err != nil {
		w.cfg.Metrics.SinkErrors.Inc()
		w.log.WithError(err).WithField("trades", len(trades)).Error("trade sink rejected batch")
	}

	if w.cfg.LogQueue == nil {
		return
	}
	for _, t := range trades {
		w.report(logging.Entry{
			Symbol: uint32(w.symbol),
			Event:  "trade",
			Line:   w.cfg.Reporter.TradeLine(t),
			Fields: logrus.Fields{
				"bid_id": t.Bid.OrderID,
				"ask_id": t.Ask.OrderID,
				"qty":    t.Bid.Qty,
			},
		})
	}
}

// report pushes a line to the shared log queue, dropping it when full.
func (w *SymbolWorker) report(e logging.Entry) {
	if w.cfg.LogQueue == nil {
		return
	}
	if !w.cfg.LogQueue.Push(e) {
		w.cfg.Metrics.LogDropped.Inc()
	}
}

func (w *SymbolWorker) publishTop() {
	w.resting.Store(int64(w.book.Len()))
	if p, ok := w.book.BestBid(); ok {
		w.bestBid.Store(int64(p))
		w.hasBid.Store(true)
	} else {
		w.hasBid.Store(false)
	}
	if p, ok := w.book.BestAsk(); ok {
		w.bestAsk.Store(int64(p))
		w.hasAsk.Store(true)
	} else {
		w.hasAsk.Store(false)
	}
}
