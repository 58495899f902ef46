package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Routed.WithLabelValues(Symbol(1)).Add(3)
	m.Rejected.WithLabelValues(ReasonBackpressure).Inc()
	m.LogDropped.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Routed.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(ReasonBackpressure)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Rejected.WithLabelValues(ReasonInvalidSymbol)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LogDropped))
}

func TestWatchQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	depth := 0
	m.WatchQueue(2, func() int { return depth })
	depth = 7

	expected := `
# HELP shardbook_queue_depth Messages waiting in a shard queue.
# TYPE shardbook_queue_depth gauge
shardbook_queue_depth{symbol="2"} 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "shardbook_queue_depth"))
}
