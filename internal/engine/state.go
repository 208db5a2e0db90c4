package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/roomsync/internal/rooms"
)

// Snapshot is one published room list.
type Snapshot struct {
	// Seq increases with every publication; 0 means nothing was published.
	Seq         int64
	PublishedAt time.Time
	Rooms       []rooms.Room
}

// Room returns the room with the given ID.
func (s Snapshot) Room(id string) (rooms.Room, bool) {
	return rooms.Find(s.Rooms, id)
}

// State is the observable room list. The synchronizer publishes, any number
// of goroutines read.
type State struct {
	seq *Sequence

	mu      sync.RWMutex
	current Snapshot
	changed chan struct{}
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		seq:     NewSequence(),
		current: Snapshot{Rooms: []rooms.Room{}},
		changed: make(chan struct{}),
	}
}

// Publish replaces the current snapshot and wakes everyone waiting on
// Changed.
func (s *State) Publish(rs []rooms.Room, at time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Snapshot{Seq: s.seq.Next(), PublishedAt: at, Rooms: rs}
	close(s.changed)
	s.changed = make(chan struct{})
	return s.current
}

// Current returns the latest snapshot. Callers must not modify it.
func (s *State) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changed returns a channel closed at the next publication.
func (s *State) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// WaitFor blocks until a snapshot satisfies pred, checking the current one
// first.
func (s *State) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		s.mu.RLock()
		snap, changed := s.current, s.changed
		s.mu.RUnlock()

		if pred(snap) {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-changed:
		}
	}
}
