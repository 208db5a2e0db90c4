package rooms

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/ledger"
)

// Room is the published view of one room.
type Room struct {
	// ID is the path-derived identifier (the last path segment).
	ID            string            `json:"id"`
	Path          ledger.RecordPath `json:"path"`
	CorrelationID uuid.UUID         `json:"correlation_id"`
	// Authors is the sorted set of identities that authored at least one
	// message, system messages included.
	Authors  []ledger.Identity `json:"authors"`
	Messages []Message         `json:"messages"`
}

// NewRoom builds the view of a room from its discovered messages. The
// messages slice is copied.
func NewRoom(path ledger.RecordPath, correlationID uuid.UUID, messages []Message) Room {
	copied := make([]Message, len(messages))
	copy(copied, messages)
	return Room{
		ID:            path.Last(),
		Path:          path,
		CorrelationID: correlationID,
		Authors:       Authors(copied),
		Messages:      copied,
	}
}

// Authors returns the distinct authors of messages, sorted.
func Authors(messages []Message) []ledger.Identity {
	seen := make(map[ledger.Identity]struct{}, len(messages))
	authors := make([]ledger.Identity, 0, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.Author]; ok {
			continue
		}
		seen[m.Author] = struct{}{}
		authors = append(authors, m.Author)
	}
	slices.Sort(authors)
	return authors
}

// IsGroup reports whether more than two identities take part in the room.
func (r Room) IsGroup() bool {
	return len(r.Authors) > 2
}

// Counterpart returns the participant a direct room is "with" from me's
// point of view: the last author that is not me, or me when alone.
func (r Room) Counterpart(me ledger.Identity) ledger.Identity {
	counterpart := me
	for _, a := range r.Authors {
		if a != me {
			counterpart = a
		}
	}
	return counterpart
}

// Unread counts visible, unread messages written by someone other than me.
func (r Room) Unread(me ledger.Identity) int {
	n := 0
	for _, m := range r.Messages {
		if !m.IsSystem() && !m.Read && m.Author != me {
			n++
		}
	}
	return n
}

// LastActivity returns the timestamp of the last message in discovery
// order. The boolean is false for rooms without messages.
func (r Room) LastActivity() (time.Time, bool) {
	if len(r.Messages) == 0 {
		return time.Time{}, false
	}
	return r.Messages[len(r.Messages)-1].Timestamp, true
}

// Inbox orders rooms for display: most recent activity first, rooms
// without messages last, ties broken by ID. The input is not modified.
func Inbox(rs []Room) []Room {
	sorted := make([]Room, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, oki := sorted[i].LastActivity()
		tj, okj := sorted[j].LastActivity()
		if oki != okj {
			return oki
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Find returns the room with the given ID.
func Find(rs []Room, id string) (Room, bool) {
	for _, r := range rs {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// ByCorrelation returns the room created with the given correlation id.
// This is how a client recognizes a room it just created once discovery
// surfaces it.
func ByCorrelation(rs []Room, id uuid.UUID) (Room, bool) {
	for _, r := range rs {
		if r.CorrelationID == id {
			return r, true
		}
	}
	return Room{}, false
}
