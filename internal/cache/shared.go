package cache

import (
	"sync"

	"github.com/roach88/roomsync/internal/ledger"
)

// Shared holds the committed cache for concurrent readers and one writer.
type Shared struct {
	mu    sync.RWMutex
	cache *LocalCache
}

// NewShared wraps c. c must not be used by the caller afterwards.
func NewShared(c *LocalCache) *Shared {
	if c == nil {
		c = New()
	}
	return &Shared{cache: c}
}

// RoomCursor returns the next root slot to try for a new room.
func (s *Shared) RoomCursor() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.NextRoomIndex
}

// MessageCursor returns the next slot to try under a room. The boolean is
// false when the room is unknown.
func (s *Shared) MessageCursor(path ledger.RecordPath) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache.Rooms[path]
	if !ok {
		return 0, false
	}
	return entry.NextMessageIndex, true
}

// HasRoom reports whether path is a known room.
func (s *Shared) HasRoom(path ledger.RecordPath) bool {
	_, ok := s.MessageCursor(path)
	return ok
}

// Snapshot returns a deep copy of the committed cache.
func (s *Shared) Snapshot() *LocalCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Clone()
}

// Commit replaces the committed cache with c. c must not be modified
// afterwards.
func (s *Shared) Commit(c *LocalCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}
