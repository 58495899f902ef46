package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"shardbook/domain/message"
	"shardbook/domain/orderbook"
	"shardbook/infra/config"
	"shardbook/infra/logging"
	"shardbook/infra/metrics"
	"shardbook/infra/ring"
)

/*
Engine wires the write path:

	producer -> Router -> per-symbol queue -> SymbolWorker -> OrderBook
	                                              |-> TradeSink
	                                              '-> log queue -> Drainer

Workers never share a book; the only cross-worker structures are the
trade sink and the log queue.
*/
type Engine struct {
	router   *Router
	workers  []*SymbolWorker
	logQueue *ring.MPSC[logging.Entry]
	drainer  *logging.Drainer

	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewEngine(cfg config.Config, sink TradeSink, log logrus.FieldLogger, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New(nil)
	}

	routerOpts := []RouterOption{WithRouterMetrics(m)}
	if cfg.QueueMode == "mpsc" {
		routerOpts = append(routerOpts, WithMultiProducer())
	}
	router := NewRouter(cfg.Symbols, cfg.QueueCapacity, routerOpts...)

	var bookOpts []orderbook.Option
	if cfg.EnforceFillOrKill {
		bookOpts = append(bookOpts, orderbook.WithFillOrKill())
	}
	if cfg.InPlaceReduce {
		bookOpts = append(bookOpts, orderbook.WithInPlaceReduce())
	}

	logQueue := ring.NewMPSC[logging.Entry](cfg.LogQueueCapacity)
	e := &Engine{
		router:   router,
		logQueue: logQueue,
		drainer:  logging.NewDrainer(logQueue, log, cfg.IdleBackoff),
		log:      log,
		metrics:  m,
	}

	reporter := NewReporter(cfg.PriceScale)
	for s := 1; s <= cfg.Symbols; s++ {
		symbol := orderbook.Symbol(s)
		q := router.QueueFor(symbol)
		m.WatchQueue(uint32(symbol), q.Len)
		e.workers = append(e.workers, NewSymbolWorker(symbol, q, WorkerConfig{
			Backoff:     cfg.IdleBackoff,
			BookOptions: bookOpts,
			Sink:        sink,
			LogQueue:    logQueue,
			Log:         log,
			Metrics:     m,
			Reporter:    reporter,
		}))
	}
	return e
}

func (e *Engine) Start() {
	e.drainer.Start()
	for _, w := range e.workers {
		w.Start()
	}
	e.log.WithFields(logrus.Fields{
		"symbols": len(e.workers),
		"mode":    e.router.Mode(),
	}).Info("engine started")
}

// Stop joins every worker, then flushes the log queue.
func (e *Engine) Stop() {
	for _, w := range e.workers {
		w.Stop()
	}
	e.drainer.Stop()
	e.log.Info("engine stopped")
}

// Submit routes msg to its symbol's shard.
func (e *Engine) Submit(symbol orderbook.Symbol, msg message.Message) bool {
	return e.router.Route(symbol, msg)
}

// WaitIdle polls until every shard queue is empty or ctx ends. A worker
// may still be applying its last popped message when this returns; Stop
// waits for that.
func (e *Engine) WaitIdle(ctx context.Context) error {
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		idle := true
		for _, w := range e.workers {
			if w.queue.Len() > 0 {
				idle = false
				break
			}
		}
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (e *Engine) Router() *Router { return e.router }

func (e *Engine) Workers() []*SymbolWorker { return e.workers }

// Worker returns the symbol's worker, nil when out of range.
func (e *Engine) Worker(symbol orderbook.Symbol) *SymbolWorker {
	if symbol < 1 || int(symbol) > len(e.workers) {
		return nil
	}
	return e.workers[symbol-1]
}

func (e *Engine) Stats() []WorkerStats {
	out := make([]WorkerStats, len(e.workers))
	for i, w := range e.workers {
		out[i] = w.Stats()
	}
	return out
}
