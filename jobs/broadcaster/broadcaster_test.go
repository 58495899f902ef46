package broadcaster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ob "shardbook/domain/orderbook"
	"shardbook/infra/codec"
	"shardbook/infra/metrics"
	"shardbook/infra/outbox"
)

type sent struct {
	key, value []byte
	headers    map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[string]bool // by seq header
}

func (f *fakePublisher) Send(_ context.Context, key, value []byte, h map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[h[HeaderSeq]] {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, sent{key, value, h})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func setup(t *testing.T, pub Publisher) (*Broadcaster, *outbox.Outbox, *metrics.Metrics) {
	t.Helper()
	return setupOn(t, vfs.NewMem(), pub)
}

func setupOn(t *testing.T, fs vfs.FS, pub Publisher) (*Broadcaster, *outbox.Outbox, *metrics.Metrics) {
	t.Helper()
	o, err := outbox.Open("outbox", outbox.WithFS(fs), outbox.WithNoSync())
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })

	log, _ := logtest.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	return New(o, pub, 5*time.Millisecond, log, m), o, m
}

func trade(seq uint64, symbol ob.Symbol) codec.TradeEvent {
	return codec.TradeEvent{
		Seq:    seq,
		Symbol: symbol,
		Trade: ob.Trade{
			Bid: ob.TradeInfo{OrderID: 3, Price: 101, Qty: 3},
			Ask: ob.TradeInfo{OrderID: 2, Price: 101, Qty: 3},
		},
	}
}

func TestFlushPublishesInOrderAndAcks(t *testing.T) {
	pub := &fakePublisher{}
	b, o, m := setup(t, pub)
	require.NoError(t, o.Append(trade(1, 4), trade(2, 5), trade(3, 4)))

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, pub.sent, 3)
	for i, s := range pub.sent {
		ev, err := codec.Unmarshal(s.value)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, b.RunID(), s.headers[HeaderRunID])
	}
	assert.Equal(t, []byte("4"), pub.sent[0].key)
	assert.Equal(t, []byte("5"), pub.sent[1].key)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Published))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Pruned))

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "acked records are not resent")
}

func TestFlushStopsAtFailureAndRetriesLater(t *testing.T) {
	pub := &fakePublisher{failOn: map[string]bool{"2": true}}
	b, o, m := setup(t, pub)
	require.NoError(t, o.Append(trade(1, 1), trade(2, 1), trade(3, 1)))

	n, err := b.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFail))

	rec, err := o.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	pub.failOn = nil
	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "2", pub.sent[1].headers[HeaderSeq])
}

// writeCorruptRecord stores a NEW record whose payload is not a trade event,
// bypassing Outbox.Append.
func writeCorruptRecord(t *testing.T, fs vfs.FS, seq uint64) {
	t.Helper()
	db, err := pebble.Open("outbox", &pebble.Options{FS: fs})
	require.NoError(t, err)
	value := make([]byte, 13) // NEW, no retries, no attempt
	value = append(value, 0xff)
	require.NoError(t, db.Set([]byte(fmt.Sprintf("trade/%020d", seq)), value, pebble.Sync))
	require.NoError(t, db.Close())
}

func TestFlushDeadLettersUndecodableRecord(t *testing.T) {
	fs := vfs.NewMem()
	writeCorruptRecord(t, fs, 2)

	pub := &fakePublisher{}
	b, o, m := setupOn(t, fs, pub)
	require.NoError(t, o.Append(trade(1, 1), trade(3, 1)))

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "1", pub.sent[0].headers[HeaderSeq])
	assert.Equal(t, "3", pub.sent[1].headers[HeaderSeq])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadLetter))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Published))

	rec, err := o.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateDead, rec.State)
	assert.Equal(t, "DEAD", rec.State.String())

	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "dead records are not retried")
	rec, err = o.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateDead, rec.State, "prune keeps dead records")
}

func TestStartRequeuesAndDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	b, o, _ := setup(t, pub)
	require.NoError(t, o.Append(trade(1, 1), trade(2, 1)))
	require.NoError(t, o.MarkSent(1))

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, time.Millisecond)
	cancel()
	b.Wait()

	rec, err := o.Get(2)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateAcked, rec.State)
}

func TestSaramaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, SaramaConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "trades" {
			return errors.Newf("topic %q", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "1" {
			return errors.Newf("key %q", key)
		}
		if len(msg.Headers) != 2 {
			return errors.Newf("%d headers", len(msg.Headers))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	pub := NewSaramaPublisherFrom(producer, "trades")
	b, o, _ := setup(t, pub)
	require.NoError(t, o.Append(trade(1, 1), trade(2, 1)))

	n, err := b.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrNotLeaderForPartition))
	assert.Equal(t, 1, n)
	require.NoError(t, b.Close())
}

func TestSaramaPublisherSortsHeaders(t *testing.T) {
	headers := map[string]string{"seq": "9", "b": "2", "run-id": "r", "a": "1"}
	want := []string{"a", "b", "run-id", "seq"}

	producer := mocks.NewSyncProducer(t, SaramaConfig())
	for i := 0; i < 5; i++ {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if len(msg.Headers) != len(want) {
				return errors.Newf("%d headers", len(msg.Headers))
			}
			for j, h := range msg.Headers {
				if string(h.Key) != want[j] || string(h.Value) != headers[want[j]] {
					return errors.Newf("header %d = %s:%s", j, h.Key, h.Value)
				}
			}
			return nil
		})
	}

	pub := NewSaramaPublisherFrom(producer, "trades")
	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Send(context.Background(), []byte("1"), []byte("x"), headers))
	}
	require.NoError(t, pub.Close())
}

func TestSaramaPublisherHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, SaramaConfig())
	pub := NewSaramaPublisherFrom(producer, "trades")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Send(ctx, nil, []byte("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, pub.Close())
}
