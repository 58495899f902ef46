package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"shardbook/infra/ring"
)

// Entry is one log line produced on a hot path. It is written to the
// shared queue by value and formatted later by the Drainer.
type Entry struct {
	Symbol uint32
	Event  string
	Line   string
	Fields logrus.Fields
}

// Drainer is the single consumer of the shared log queue.
type Drainer struct {
	queue   *ring.MPSC[Entry]
	log     logrus.FieldLogger
	backoff time.Duration

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewDrainer(q *ring.MPSC[Entry], log logrus.FieldLogger, backoff time.Duration) *Drainer {
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &Drainer{queue: q, log: log, backoff: backoff}
}

func (d *Drainer) Start() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		idle := time.NewTimer(d.backoff)
		defer idle.Stop()
		for {
			if d.Drain() > 0 {
				select {
				case <-d.stop:
					return
				default:
					continue
				}
			}
			idle.Reset(d.backoff)
			select {
			case <-d.stop:
				return
			case <-idle.C:
			}
		}
	}()
}

// Stop ends the loop and writes whatever is still queued. Producers should
// be stopped first or their later entries stay in the queue.
func (d *Drainer) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	close(d.stop)
	d.wg.Wait()
	d.Drain()
}

// Drain writes every queued entry in arrival order and reports how many.
// Only one goroutine may drain at a time.
func (d *Drainer) Drain() int {
	n := 0
	for {
		e, ok := d.queue.Pop()
		if !ok {
			return n
		}
		d.write(e)
		n++
	}
}

func (d *Drainer) write(e Entry) {
	fields := make(logrus.Fields, len(e.Fields)+2)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields["symbol"] = e.Symbol
	fields["event"] = e.Event
	d.log.WithFields(fields).Info(e.Line)
}
