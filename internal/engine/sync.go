package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// Synchronizer pulls the ledger into the local cache and publishes the
// result. It is the only writer of the cache.
type Synchronizer struct {
	ledger      ledger.Ledger
	cache       *cache.Shared
	blobs       cache.BlobStore
	cacheKey    string
	state       *State
	clock       clock.Clock
	maxAttempts int

	mu        sync.Mutex // one pass at a time
	published bool
}

// NewSynchronizer creates a synchronizer committing to shared, persisting to
// blobs under cacheKey and publishing to state.
func NewSynchronizer(l ledger.Ledger, shared *cache.Shared, blobs cache.BlobStore, cacheKey string, state *State, clk clock.Clock, maxAttempts int) *Synchronizer {
	return &Synchronizer{
		ledger:      l,
		cache:       shared,
		blobs:       blobs,
		cacheKey:    cacheKey,
		state:       state,
		clock:       clk,
		maxAttempts: maxAttempts,
	}
}

// Pass runs one synchronization pass:
//
//  1. Root slots from NextRoomIndex are discovered until an empty slot.
//  2. Inbound shares granted after LastDiscovery and not yet known become
//     pointers in the root, which are then discovered like any other room.
//     LastDiscovery moves to the newest grant time the store reported.
//  3. Every known room's slots are discovered from its cursor until an
//     empty slot.
//  4. If anything was inserted, or nothing was published yet, the room list
//     is published.
//
// Rooms are discovered before shares are linked so that a rebuilt cache
// finds the pointers it already wrote instead of writing them again.
//
// The pass works on a copy of the cache. A store error in steps 1-3 aborts
// it with the committed cache untouched. Otherwise the copy is committed
// and persisted; a persistence failure is returned but the committed state
// stands.
func (s *Synchronizer) Pass(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.cache.Snapshot()

	mutated, err := s.discoverRooms(ctx, working)
	if err != nil {
		return false, err
	}

	linked, newest, err := s.receiveShares(ctx, working)
	if err != nil {
		return false, err
	}
	// The share cursor only moves to grant times the store reported, so a
	// skew between our clock and the store's cannot hide a share.
	if newest.After(working.LastDiscovery) {
		working.LastDiscovery = newest
	}
	if linked > 0 {
		added, err := s.discoverRooms(ctx, working)
		if err != nil {
			return false, err
		}
		mutated = mutated || added
	}

	for _, path := range working.Paths() {
		added, err := s.discoverMessages(ctx, path, working.Rooms[path])
		if err != nil {
			return false, err
		}
		mutated = mutated || added
	}

	s.cache.Commit(working)

	published := false
	if mutated || !s.published {
		snap := s.state.Publish(working.Views(), s.clock.Now().UTC())
		s.published = true
		published = true
		slog.Debug("rooms published", "seq", snap.Seq, "rooms", len(snap.Rooms))
	}

	if err := cache.Save(ctx, s.blobs, s.cacheKey, working); err != nil {
		return published, newStoreError("persist cache", "", err)
	}
	return published, nil
}

// receiveShares links rooms shared with us into our root so discovery finds
// them like rooms we created. It returns how many pointers were written and
// the grant time of the newest share received, zero if there was none.
func (s *Synchronizer) receiveShares(ctx context.Context, working *cache.LocalCache) (int, time.Time, error) {
	var newest time.Time
	shares, err := s.ledger.Receive(ctx, working.LastDiscovery)
	if err != nil {
		return 0, newest, newStoreError("receive shares", "", err)
	}

	root := s.ledger.Root()
	linked := make(map[ledger.RecordPath]bool)
	for _, share := range shares {
		if share.At.After(newest) {
			newest = share.At.UTC()
		}
		if linked[share.Path] {
			continue
		}
		if _, ok := working.Rooms[share.Path]; ok {
			slog.Debug("shared room already known", "room", share.Path, "from", share.From)
			continue
		}

		cursor := func() uint32 { return working.NextRoomIndex }
		c, err := claimSlot(ctx, root, cursor, func(ctx context.Context, slot uint32) (ledger.RecordPath, ledger.Outcome, error) {
			return s.ledger.CreatePointer(ctx, root, share.Path, slot)
		}, s.maxAttempts)
		if err != nil {
			return 0, newest, err
		}
		linked[share.Path] = true
		slog.Info("linked shared room", "room", share.Path, "from", share.From, "slot", c.slot)
	}
	return len(linked), newest, nil
}

// discoverRooms walks root slots from the room cursor.
func (s *Synchronizer) discoverRooms(ctx context.Context, working *cache.LocalCache) (bool, error) {
	root := s.ledger.Root()
	mutated := false

	for idx := working.NextRoomIndex; ; idx++ {
		d, err := s.ledger.Discover(ctx, root, idx, rooms.RoomsProtocol)
		if err != nil {
			return false, newStoreError("discover room", root, err)
		}
		if !d.Occupied {
			working.NextRoomIndex = idx
			return mutated, nil
		}
		if !d.Matched() {
			continue
		}
		if _, ok := working.Rooms[d.Path]; ok {
			continue
		}

		payload, ok, err := s.ledger.ReadPrivate(ctx, d.Path)
		if err != nil {
			return false, newStoreError("read room", d.Path, err)
		}
		if !ok {
			slog.Warn("discovered room vanished", "room", d.Path, "slot", idx)
			continue
		}
		correlationID, err := rooms.DecodeCorrelation(payload)
		if err != nil {
			slog.Warn("skipping undecodable room", "room", d.Path, "slot", idx, "error", err)
			continue
		}

		working.AddRoom(d.Path, correlationID)
		mutated = true
		slog.Debug("room discovered", "room", d.Path, "slot", idx)
	}
}

// discoverMessages walks entry's slots from its cursor. A room we can no
// longer read is logged and left as is.
func (s *Synchronizer) discoverMessages(ctx context.Context, path ledger.RecordPath, entry *cache.RoomEntry) (bool, error) {
	var found []rooms.Message
	idx := entry.NextMessageIndex

	for ; ; idx++ {
		d, err := s.ledger.Discover(ctx, path, idx, rooms.MessagesProtocol)
		if err != nil {
			return s.roomFailed(path, err)
		}
		if !d.Occupied {
			break
		}
		if !d.Matched() {
			continue
		}

		payload, ok, err := s.ledger.ReadPrivate(ctx, d.Path)
		if err != nil {
			return s.roomFailed(path, err)
		}
		if !ok {
			slog.Warn("discovered message vanished", "room", path, "slot", idx)
			continue
		}
		m, err := rooms.DecodeMessage(payload)
		if err != nil {
			slog.Warn("skipping undecodable message", "room", path, "slot", idx, "error", err)
			continue
		}
		found = append(found, m)
	}

	entry.Messages = append(entry.Messages, found...)
	entry.NextMessageIndex = idx
	return len(found) > 0, nil
}

func (s *Synchronizer) roomFailed(path ledger.RecordPath, err error) (bool, error) {
	if errors.Is(err, ledger.ErrPermissionDenied) {
		slog.Warn("room no longer readable, skipping", "room", path, "error", err)
		return false, nil
	}
	return false, newStoreError("discover message", path, err)
}

// MarkRead flags the room's messages as read in the local cache, the way
// opening a room does. Read state is local: it is not written to the ledger
// and is lost when the cache is rebuilt. A change is committed, published
// and persisted like a pass.
func (s *Synchronizer) MarkRead(ctx context.Context, path ledger.RecordPath) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.cache.Snapshot()
	changed, ok := working.MarkRead(path)
	if !ok {
		return 0, newUnknownRoomError(path)
	}
	if changed == 0 {
		return 0, nil
	}

	s.cache.Commit(working)
	snap := s.state.Publish(working.Views(), s.clock.Now().UTC())
	s.published = true
	slog.Debug("room marked read", "room", path, "messages", changed, "seq", snap.Seq)

	if err := cache.Save(ctx, s.blobs, s.cacheKey, working); err != nil {
		return changed, newStoreError("persist cache", path, err)
	}
	return changed, nil
}
