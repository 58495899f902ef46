// Package outbox journals executed trades in pebble until a publisher has
// delivered them. Records move NEW -> SENT -> ACKED; a failed send goes
// back to NEW with its retry count bumped. A record that cannot be decoded
// is parked as DEAD and kept for inspection.
package outbox

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"shardbook/infra/codec"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const headerLen = 1 + 4 + 8

// value layout: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, errors.Newf("outbox: record %d too short (%d bytes)", seq, len(b))
	}
	payload := make([]byte, len(b)-headerLen)
	copy(payload, b[headerLen:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

type Option func(*pebble.Options, *Outbox)

// WithFS opens the store on fs instead of the OS filesystem.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options, _ *Outbox) { o.FS = fs }
}

// WithNoSync skips fsync on writes.
func WithNoSync() Option {
	return func(_ *pebble.Options, ob *Outbox) { ob.writeOpts = pebble.NoSync }
}

func Open(dir string, opts ...Option) (*Outbox, error) {
	ob := &Outbox{writeOpts: pebble.Sync}
	po := &pebble.Options{}
	for _, opt := range opts {
		opt(po, ob)
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "outbox: open %s", dir)
	}
	ob.db = db
	return ob, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Append journals events as NEW in one atomic batch.
func (o *Outbox) Append(events ...codec.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	b := o.db.NewBatch()
	defer b.Close()

	var scratch []byte
	for _, ev := range events {
		scratch = codec.Marshal(scratch[:0], ev)
		rec := Record{State: StateNew, Payload: scratch}
		if err := b.Set(keyFor(ev.Seq), encodeRecord(rec), nil); err != nil {
			return errors.Wrapf(err, "outbox: stage seq %d", ev.Seq)
		}
	}
	return errors.Wrap(b.Commit(o.writeOpts), "outbox: commit")
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, errors.Wrapf(err, "outbox: get seq %d", seq)
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) { r.State = StateSent })
}

func (o *Outbox) MarkAcked(seq uint64) error {
	return o.update(seq, func(r *Record) { r.State = StateAcked })
}

// MarkDead parks a record the publisher can never deliver. Prune keeps it.
func (o *Outbox) MarkDead(seq uint64) error {
	return o.update(seq, func(r *Record) { r.State = StateDead })
}

// Retry returns a record to NEW and counts the failed attempt.
func (o *Outbox) Retry(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateNew
		r.Retries++
	})
}

// Requeue moves every SENT record back to NEW. Call it on startup: a
// record left SENT was in flight when the process stopped.
func (o *Outbox) Requeue() (int, error) {
	var seqs []uint64
	err := o.ScanByState(StateSent, func(r Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, seq := range seqs {
		if err := o.Retry(seq); err != nil {
			return 0, err
		}
	}
	return len(seqs), nil
}

func (o *Outbox) update(seq uint64, fn func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	fn(&rec)
	rec.LastAttempt = time.Now().UnixNano()
	return errors.Wrapf(o.db.Set(keyFor(seq), encodeRecord(rec), o.writeOpts),
		"outbox: set seq %d", seq)
}

// LastSeq is the highest journaled sequence, zero for an empty outbox.
func (o *Outbox) LastSeq() (uint64, error) {
	iter, err := o.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// Prune deletes ACKED records and reports how many were removed. The
// highest record is always kept so LastSeq survives a restart.
func (o *Outbox) Prune() (int, error) {
	last, err := o.LastSeq()
	if err != nil {
		return 0, err
	}

	b := o.db.NewBatch()
	defer b.Close()

	n := 0
	err = o.ScanByState(StateAcked, func(r Record) error {
		if r.Seq == last {
			return nil
		}
		n++
		return b.Delete(keyFor(r.Seq), nil)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, errors.Wrap(b.Commit(o.writeOpts), "outbox: prune")
}

// -------------------- Scan --------------------

// ScanByState visits records in the given state in sequence order.
// fn must not write to the outbox.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	iter, err := o.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, val)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "trade/"

func (o *Outbox) newIter() (*pebble.Iterator, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("trade0"), // '0' follows '/'
	})
	return iter, errors.Wrap(err, "outbox: iterator")
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b), keyPrefix+"%d", &seq); err != nil {
		return 0, errors.Wrapf(err, "outbox: bad key %q", b)
	}
	return seq, nil
}
