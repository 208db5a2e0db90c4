package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

const timeLayout = "2006-01-02 15:04"

// inboxView is the output of room list and sync.
type inboxView struct {
	Identity ledger.Identity `json:"identity"`
	Seq      int64           `json:"seq"`
	Rooms    []roomSummary   `json:"rooms"`
}

type roomSummary struct {
	ID           string            `json:"id"`
	Path         ledger.RecordPath `json:"path"`
	Title        string            `json:"title"`
	Group        bool              `json:"group"`
	Messages     int               `json:"messages"`
	Unread       int               `json:"unread"`
	LastActivity *time.Time        `json:"last_activity,omitempty"`
}

func newInboxView(snap engine.Snapshot, profiles rooms.Profiles) inboxView {
	me := profiles.Me()
	view := inboxView{Identity: me, Seq: snap.Seq, Rooms: []roomSummary{}}
	for _, r := range rooms.Inbox(snap.Rooms) {
		s := roomSummary{
			ID:       r.ID,
			Path:     r.Path,
			Title:    rooms.Title(r, profiles),
			Group:    r.IsGroup(),
			Messages: len(rooms.Visible(r.Messages)),
			Unread:   r.Unread(me),
		}
		if at, ok := r.LastActivity(); ok {
			s.LastActivity = &at
		}
		view.Rooms = append(view.Rooms, s)
	}
	return view
}

func (v inboxView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rooms for %s (%d)\n", v.Identity, len(v.Rooms))
	for _, r := range v.Rooms {
		last := "-"
		if r.LastActivity != nil {
			last = r.LastActivity.UTC().Format(timeLayout)
		}
		fmt.Fprintf(&b, "  %s  %-16s %3d messages  %2d unread  %s\n", r.ID, r.Title, r.Messages, r.Unread, last)
	}
	return b.String()
}

// roomView is the output of room show.
type roomView struct {
	ID            string            `json:"id"`
	Path          ledger.RecordPath `json:"path"`
	Title         string            `json:"title"`
	CorrelationID uuid.UUID         `json:"correlation_id"`
	Authors       []ledger.Identity `json:"authors"`
	Messages      []rooms.Message   `json:"messages"`

	profiles rooms.Profiles
}

func newRoomView(r rooms.Room, profiles rooms.Profiles) roomView {
	return roomView{
		ID:            r.ID,
		Path:          r.Path,
		Title:         rooms.Title(r, profiles),
		CorrelationID: r.CorrelationID,
		Authors:       r.Authors,
		Messages:      r.Messages,
		profiles:      profiles,
	}
}

func (v roomView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s\n", v.ID)
	fmt.Fprintf(&b, "With: %s\n", v.Title)
	fmt.Fprintf(&b, "Path: %s\n", v.Path)
	fmt.Fprintf(&b, "Correlation: %s\n", v.CorrelationID)
	b.WriteString("\n")
	for _, m := range v.Messages {
		name := v.profiles.DisplayName(m.Author)
		if m.IsSystem() {
			fmt.Fprintf(&b, "  * %s joined\n", name)
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s: %s\n", m.Timestamp.UTC().Format(timeLayout), name, m.Text)
	}
	return b.String()
}

// claimView reports a successful write.
type claimView struct {
	Action        string            `json:"action"`
	Room          string            `json:"room"`
	Path          ledger.RecordPath `json:"path"`
	Slot          uint32            `json:"slot"`
	Collisions    int               `json:"collisions"`
	CorrelationID *uuid.UUID        `json:"correlation_id,omitempty"`
	Shared        []ledger.Identity `json:"shared,omitempty"`
}

func (v claimView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: room %s, slot %d", v.Action, v.Room, v.Slot)
	if v.Collisions > 0 {
		fmt.Fprintf(&b, " (%d occupied slot(s) skipped)", v.Collisions)
	}
	b.WriteString("\n")
	if len(v.Shared) > 0 {
		names := make([]string, len(v.Shared))
		for i, s := range v.Shared {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, "shared with: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}
