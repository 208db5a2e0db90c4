package cache

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// Epoch is the LastDiscovery of a fresh cache. Every share is newer.
var Epoch = time.Unix(0, 0).UTC()

// LocalCache is the persisted synchronization state for one identity.
type LocalCache struct {
	// NextRoomIndex is the first root slot not yet known to hold a room.
	NextRoomIndex uint32
	Rooms         map[ledger.RecordPath]*RoomEntry
	// LastDiscovery is the store's grant time of the newest inbound share
	// seen. Shares granted later are still to be linked.
	LastDiscovery time.Time
}

// RoomEntry is one known room.
type RoomEntry struct {
	CorrelationID uuid.UUID
	// Messages in discovery order.
	Messages []rooms.Message
	// NextMessageIndex is the first slot under the room not yet discovered.
	// It can exceed len(Messages) when records were skipped.
	NextMessageIndex uint32
}

// New returns an empty cache that forces a full scan.
func New() *LocalCache {
	return &LocalCache{
		Rooms:         make(map[ledger.RecordPath]*RoomEntry),
		LastDiscovery: Epoch,
	}
}

// Clone returns a deep copy of c.
func (c *LocalCache) Clone() *LocalCache {
	out := &LocalCache{
		NextRoomIndex: c.NextRoomIndex,
		Rooms:         make(map[ledger.RecordPath]*RoomEntry, len(c.Rooms)),
		LastDiscovery: c.LastDiscovery,
	}
	for path, entry := range c.Rooms {
		out.Rooms[path] = entry.clone()
	}
	return out
}

func (e *RoomEntry) clone() *RoomEntry {
	return &RoomEntry{
		CorrelationID:    e.CorrelationID,
		Messages:         slices.Clone(e.Messages),
		NextMessageIndex: e.NextMessageIndex,
	}
}

// Paths returns the known room paths in sorted order.
func (c *LocalCache) Paths() []ledger.RecordPath {
	return slices.Sorted(maps.Keys(c.Rooms))
}

// AddRoom inserts an empty room. It reports false and leaves the cache
// unchanged if the path is already known.
func (c *LocalCache) AddRoom(path ledger.RecordPath, correlationID uuid.UUID) bool {
	if _, ok := c.Rooms[path]; ok {
		return false
	}
	c.Rooms[path] = &RoomEntry{CorrelationID: correlationID}
	return true
}

// Views builds the published room views in path order.
func (c *LocalCache) Views() []rooms.Room {
	out := make([]rooms.Room, 0, len(c.Rooms))
	for _, path := range c.Paths() {
		entry := c.Rooms[path]
		out = append(out, rooms.NewRoom(path, entry.CorrelationID, entry.Messages))
	}
	return out
}

// MarkRead flags every message of the room at path as read and returns how
// many changed. It returns false for an unknown room.
func (c *LocalCache) MarkRead(path ledger.RecordPath) (int, bool) {
	entry, ok := c.Rooms[path]
	if !ok {
		return 0, false
	}
	changed := 0
	for i := range entry.Messages {
		if !entry.Messages[i].Read {
			entry.Messages[i].Read = true
			changed++
		}
	}
	return changed, true
}
