package rooms

import (
	"sort"
	"strings"

	"github.com/roach88/roomsync/internal/ledger"
)

// Profiles resolves identities for display. The profile system itself lives
// outside this module; Directory is a static implementation.
type Profiles interface {
	Me() ledger.Identity
	DisplayName(id ledger.Identity) string
	// HasBlocked reports whether who has blocked whom.
	HasBlocked(who, whom ledger.Identity) bool
}

// Profile is one known identity.
type Profile struct {
	Identity ledger.Identity
	Name     string
	Blocked  []ledger.Identity
}

// Directory is an in-memory Profiles.
type Directory struct {
	me       ledger.Identity
	profiles map[ledger.Identity]Profile
}

// NewDirectory builds a Directory for me from known profiles.
func NewDirectory(me ledger.Identity, profiles ...Profile) *Directory {
	d := &Directory{me: me, profiles: make(map[ledger.Identity]Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.Identity] = p
	}
	return d
}

func (d *Directory) Me() ledger.Identity { return d.me }

// DisplayName falls back to the identity itself when no name is known.
func (d *Directory) DisplayName(id ledger.Identity) string {
	if p, ok := d.profiles[id]; ok && p.Name != "" {
		return p.Name
	}
	return string(id)
}

func (d *Directory) HasBlocked(who, whom ledger.Identity) bool {
	p, ok := d.profiles[who]
	if !ok {
		return false
	}
	for _, b := range p.Blocked {
		if b == whom {
			return true
		}
	}
	return false
}

// Title names a room from the viewer's side: the counterpart for direct
// rooms, the other participants' names for groups.
func Title(r Room, profiles Profiles) string {
	me := profiles.Me()
	if !r.IsGroup() {
		return profiles.DisplayName(r.Counterpart(me))
	}
	names := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		if a != me {
			names = append(names, profiles.DisplayName(a))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// BlockedBetween reports whether a direct room cannot be written to because
// either side blocked the other. Groups are never blocked as a whole.
func BlockedBetween(r Room, profiles Profiles) bool {
	if r.IsGroup() {
		return false
	}
	me := profiles.Me()
	other := r.Counterpart(me)
	if other == me {
		return false
	}
	return profiles.HasBlocked(me, other) || profiles.HasBlocked(other, me)
}
