package broadcaster

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shardbook/infra/codec"
	"shardbook/infra/metrics"
	"shardbook/infra/outbox"
)

// Publisher delivers one encoded trade event to a broker.
type Publisher interface {
	Send(ctx context.Context, key, value []byte, headers map[string]string) error
	Close() error
}

// Header names attached to every published event.
const (
	HeaderRunID = "run-id"
	HeaderSeq   = "seq"
)

// Broadcaster drains NEW outbox records to a Publisher in sequence order.
// Delivery is at least once: a record is ACKED only after a successful send.
type Broadcaster struct {
	outbox   *outbox.Outbox
	pub      Publisher
	interval time.Duration
	runID    string

	log     logrus.FieldLogger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	ob *outbox.Outbox,
	pub Publisher,
	interval time.Duration,
	log logrus.FieldLogger,
	m *metrics.Metrics,
) *Broadcaster {
	runID := uuid.NewString()
	return &Broadcaster{
		outbox:   ob,
		pub:      pub,
		interval: interval,
		runID:    runID,
		log:      log.WithField("component", "broadcaster").WithField(HeaderRunID, runID),
		metrics:  m,
	}
}

func (b *Broadcaster) RunID() string { return b.runID }

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Start requeues records left in flight by a previous run, then flushes on
// every tick until ctx is cancelled. A final flush runs on the way out.
func (b *Broadcaster) Start(ctx context.Context) {
	if n, err := b.outbox.Requeue(); err != nil {
		b.log.WithError(err).Error("requeue in-flight records")
	} else if n > 0 {
		b.log.WithField("records", n).Warn("requeued in-flight records")
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.log.Info("started")

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.flushLogged(context.Background())
				b.log.Info("stopped")
				return
			case <-ticker.C:
				b.flushLogged(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

func (b *Broadcaster) flushLogged(ctx context.Context) {
	n, err := b.Flush(ctx)
	if err != nil {
		b.log.WithError(err).WithField("sent", n).Warn("flush stopped early, will retry")
		return
	}
	if n > 0 {
		b.log.WithField("sent", n).Debug("flushed")
	}
}

// ------------------------------------------------
// FLUSH
// ------------------------------------------------

// Flush publishes every NEW record once and returns how many were handled,
// dead-lettered records included. It stops at the first failed send so
// events for a symbol never overtake each other.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	var pending []outbox.Record
	err := b.outbox.ScanByState(outbox.StateNew, func(r outbox.Record) error {
		pending = append(pending, r)
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range pending {
		if err := b.publish(ctx, rec); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		pruned, err := b.outbox.Prune()
		if err != nil {
			return sent, err
		}
		b.metrics.Pruned.Add(float64(pruned))
	}
	return sent, nil
}

func (b *Broadcaster) publish(ctx context.Context, rec outbox.Record) error {
	ev, err := codec.Unmarshal(rec.Payload)
	if err != nil {
		// Retrying cannot fix the payload; park it so later records flow.
		b.metrics.DeadLetter.Inc()
		b.log.WithError(err).WithField(HeaderSeq, rec.Seq).Error("undecodable record marked dead")
		return b.outbox.MarkDead(rec.Seq)
	}

	if err := b.outbox.MarkSent(rec.Seq); err != nil {
		return err
	}

	key := []byte(metrics.Symbol(uint32(ev.Symbol)))
	headers := map[string]string{
		HeaderRunID: b.runID,
		HeaderSeq:   strconv.FormatUint(rec.Seq, 10),
	}
	if err := b.pub.Send(ctx, key, rec.Payload, headers); err != nil {
		b.metrics.PublishFail.Inc()
		if rerr := b.outbox.Retry(rec.Seq); rerr != nil {
			return errors.CombineErrors(err, rerr)
		}
		return errors.Wrapf(err, "publish seq %d", rec.Seq)
	}

	b.metrics.Published.Inc()
	return b.outbox.MarkAcked(rec.Seq)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
