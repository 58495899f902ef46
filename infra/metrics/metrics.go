// Package metrics holds the engine's prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shardbook"

// Reasons a route is refused.
const (
	ReasonInvalidSymbol = "invalid_symbol"
	ReasonBackpressure  = "backpressure"
)

type Metrics struct {
	reg prometheus.Registerer

	Routed    *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	Processed *prometheus.CounterVec
	Trades    *prometheus.CounterVec

	LogDropped  prometheus.Counter
	SinkErrors  prometheus.Counter
	Published   prometheus.Counter
	PublishFail prometheus.Counter
	Pruned      prometheus.Counter
	DeadLetter  prometheus.Counter
}

// New registers the collectors with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Routed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "routed_total",
			Help: "Messages accepted by a shard queue.",
		}, []string{"symbol"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "route_rejected_total",
			Help: "Messages the router refused.",
		}, []string{"reason"}),
		Processed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "processed_total",
			Help: "Messages applied to a book.",
		}, []string{"symbol", "kind"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_total",
			Help: "Trades produced by matching.",
		}, []string{"symbol"}),
		LogDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "log_dropped_total",
			Help: "Trade log lines dropped because the log queue was full.",
		}),
		SinkErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trade_sink_errors_total",
			Help: "Trade batches the sink failed to journal.",
		}),
		Published: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "published_total",
			Help: "Trade events delivered to the broker.",
		}),
		PublishFail: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "publish_failures_total",
			Help: "Failed broker sends.",
		}),
		Pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_pruned_total",
			Help: "Acked outbox records deleted.",
		}),
		DeadLetter: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_dead_total",
			Help: "Outbox records parked as undecodable.",
		}),
	}
}

// WatchQueue exports a gauge sampling fn on every scrape.
func (m *Metrics) WatchQueue(symbol uint32, fn func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Messages waiting in a shard queue.",
		ConstLabels: prometheus.Labels{"symbol": Symbol(symbol)},
	}, func() float64 { return float64(fn()) })
}

// Symbol formats a symbol id as a label value.
func Symbol(s uint32) string {
	return strconv.FormatUint(uint64(s), 10)
}
