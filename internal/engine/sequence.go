package engine

import "sync/atomic"

// Sequence numbers published snapshots.
//
// Every publication is stamped with a strictly increasing seq, so observers
// can tell whether the room list changed without comparing contents. Zero
// means nothing has been published yet.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// In practice only the synchronizer calls Next.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence starting at start.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next increments the sequence and returns the new value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
