package sequence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Sequencer hands out trade sequence numbers shared by every shard.
// Numbers are strictly increasing and never reused within a process.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after last; the first Next returns last+1.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

// HighWater reports the highest sequence already persisted.
type HighWater interface {
	LastSeq() (uint64, error)
}

// Resume continues numbering after the journal's high-water mark, so a
// restarted engine never reissues a sequence a broker may have seen.
func Resume(hw HighWater) (*Sequencer, error) {
	last, err := hw.LastSeq()
	if err != nil {
		return nil, errors.Wrap(err, "sequence: read high-water mark")
	}
	return New(last), nil
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Reserve claims n consecutive numbers and returns the first. A worker
// stamps one match result with a single Reserve so its trades stay
// contiguous even while other shards interleave. Reserve(0) claims nothing
// and returns the number the next claim would start at.
func (s *Sequencer) Reserve(n uint64) uint64 {
	return s.last.Add(n) - n + 1
}

// Current is the most recently issued number, zero if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
