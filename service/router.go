package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"shardbook/domain/message"
	"shardbook/domain/orderbook"
	"shardbook/infra/metrics"
	"shardbook/infra/ring"
)

// Router owns one bounded queue per symbol. Symbols are numbered
// 1..NumSymbols. With the default single-producer queues, only one
// goroutine may call Route.
type Router struct {
	queues  []ring.Queue[message.Message]
	mode    string
	metrics *metrics.Metrics

	routed []prometheus.Counter
}

type routerOptions struct {
	multiProducer bool
	metrics       *metrics.Metrics
}

type RouterOption func(*routerOptions)

// WithMultiProducer backs every shard with an MPSC queue so any number of
// goroutines may call Route concurrently.
func WithMultiProducer() RouterOption {
	return func(o *routerOptions) { o.multiProducer = true }
}

func WithRouterMetrics(m *metrics.Metrics) RouterOption {
	return func(o *routerOptions) { o.metrics = m }
}

// NewRouter builds one queue per symbol. With WithMultiProducer the
// capacity must be at least 2, see ring.NewMPSC.
func NewRouter(numSymbols, capacityPerShard int, opts ...RouterOption) *Router {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New(nil)
	}

	r := &Router{
		queues:  make([]ring.Queue[message.Message], numSymbols),
		mode:    "spsc",
		metrics: o.metrics,
		routed:  make([]prometheus.Counter, numSymbols),
	}
	if o.multiProducer {
		r.mode = "mpsc"
	}
	for i := range r.queues {
		if o.multiProducer {
			r.queues[i] = ring.NewMPSC[message.Message](capacityPerShard)
		} else {
			r.queues[i] = ring.NewSPSC[message.Message](capacityPerShard)
		}
		r.routed[i] = o.metrics.Routed.WithLabelValues(metrics.Symbol(uint32(i + 1)))
	}
	return r
}

// Route enqueues msg on the symbol's shard. It returns false without
// blocking when the symbol is unknown or the shard queue is full.
func (r *Router) Route(symbol orderbook.Symbol, msg message.Message) bool {
	q := r.QueueFor(symbol)
	if q == nil {
		r.metrics.Rejected.WithLabelValues(metrics.ReasonInvalidSymbol).Inc()
		return false
	}
	if !q.Push(msg) {
		r.metrics.Rejected.WithLabelValues(metrics.ReasonBackpressure).Inc()
		return false
	}
	r.routed[symbol-1].Inc()
	return true
}

// QueueFor is the consumer side of a symbol's shard, nil when the symbol
// is out of range.
func (r *Router) QueueFor(symbol orderbook.Symbol) ring.Queue[message.Message] {
	if symbol < 1 || int(symbol) > len(r.queues) {
		return nil
	}
	return r.queues[symbol-1]
}

func (r *Router) NumSymbols() int { return len(r.queues) }

// Mode is "spsc" or "mpsc".
func (r *Router) Mode() string { return r.mode }
