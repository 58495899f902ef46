package service

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardbook/domain/message"
	ob "shardbook/domain/orderbook"
	"shardbook/infra/metrics"
	"shardbook/infra/ring"
)

func TestRouterRejectsOutOfRangeSymbols(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRouter(3, 4, WithRouterMetrics(m))

	assert.False(t, r.Route(0, message.Cancel(1)))
	assert.False(t, r.Route(4, message.Cancel(1)))
	assert.Nil(t, r.QueueFor(0))
	assert.Nil(t, r.QueueFor(4))
	assert.NotNil(t, r.QueueFor(3))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rejected.WithLabelValues(metrics.ReasonInvalidSymbol)))
}

func TestRouterBackpressure(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRouter(1, 2, WithRouterMetrics(m))

	assert.True(t, r.Route(1, message.Cancel(1)))
	assert.True(t, r.Route(1, message.Cancel(2)))
	assert.False(t, r.Route(1, message.Cancel(3)), "full shard must refuse")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(metrics.ReasonBackpressure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Routed.WithLabelValues("1")))

	_, ok := r.QueueFor(1).Pop()
	require.True(t, ok)
	assert.True(t, r.Route(1, message.Cancel(3)))
}

func TestRouterKeepsPerShardOrder(t *testing.T) {
	r := NewRouter(2, 16)
	for i := 1; i <= 5; i++ {
		require.True(t, r.Route(ob.Symbol(1+i%2), message.Cancel(ob.OrderID(i))))
	}

	drain := func(s ob.Symbol) []ob.OrderID {
		var ids []ob.OrderID
		for {
			m, ok := r.QueueFor(s).Pop()
			if !ok {
				return ids
			}
			ids = append(ids, m.OrderID)
		}
	}
	assert.Equal(t, []ob.OrderID{2, 4}, drain(1))
	assert.Equal(t, []ob.OrderID{1, 3, 5}, drain(2))
}

func TestRouterQueueModes(t *testing.T) {
	_, ok := NewRouter(1, 4).QueueFor(1).(*ring.SPSC[message.Message])
	assert.True(t, ok)

	r := NewRouter(1, 4, WithMultiProducer())
	_, ok = r.QueueFor(1).(*ring.MPSC[message.Message])
	assert.True(t, ok)
	assert.Equal(t, "mpsc", r.Mode())
}

func TestRouterMultiProducer(t *testing.T) {
	const producers, per = 4, 500
	r := NewRouter(1, producers*per, WithMultiProducer())

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := ob.OrderID(p*per + i)
				for !r.Route(1, message.Cancel(id)) {
				}
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	n := 0
	for {
		m, ok := r.QueueFor(1).Pop()
		if !ok {
			break
		}
		p, i := int(m.OrderID)/per, int(m.OrderID)%per
		require.Greater(t, i, last[p], "producer %d reordered", p)
		last[p] = i
		n++
	}
	assert.Equal(t, producers*per, n)
}
