package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPermissionDenied is returned when an identity touches a path it
	// neither owns nor was granted.
	ErrPermissionDenied = errors.New("ledger: permission denied")

	// ErrInvalidPath is returned for malformed record paths or identities.
	ErrInvalidPath = errors.New("ledger: invalid path")

	// ErrNotFound is returned when an operation requires an existing record.
	ErrNotFound = errors.New("ledger: record not found")
)

// Identity identifies a participant. It doubles as the name of the
// participant's root path.
type Identity string

// Validate checks that the identity can be used as a path segment.
func (id Identity) Validate() error {
	if id == "" || strings.ContainsAny(string(id), "/\x00") {
		return fmt.Errorf("%w: identity %q", ErrInvalidPath, string(id))
	}
	return nil
}

// RecordPath is an absolute, slash-separated record address.
type RecordPath string

// RootOf returns the root path of an identity.
func RootOf(id Identity) RecordPath {
	return RecordPath("/" + string(id))
}

// Join returns the child path p/segment.
func (p RecordPath) Join(segment string) RecordPath {
	return RecordPath(strings.TrimSuffix(string(p), "/") + "/" + segment)
}

// Last returns the final path segment.
func (p RecordPath) Last() string {
	s := string(p)
	return s[strings.LastIndexByte(s, '/')+1:]
}

// Parent returns the path without its final segment. The parent of a root
// is the root itself.
func (p RecordPath) Parent() RecordPath {
	s := string(p)
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return p
	}
	return RecordPath(s[:i])
}

// Owner returns the identity whose root contains p.
func (p RecordPath) Owner() Identity {
	s := strings.TrimPrefix(string(p), "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return Identity(s)
}

// IsRoot reports whether p is an identity root.
func (p RecordPath) IsRoot() bool {
	return p.Validate() == nil && strings.Count(string(p), "/") == 1
}

// Contains reports whether other is p or lies beneath it.
func (p RecordPath) Contains(other RecordPath) bool {
	return other == p || strings.HasPrefix(string(other), string(p)+"/")
}

// Validate checks that p is absolute and has no empty segments.
func (p RecordPath) Validate() error {
	s := string(p)
	if !strings.HasPrefix(s, "/") || len(s) == 1 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	for _, segment := range strings.Split(s[1:], "/") {
		if segment == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
	}
	return nil
}

func (p RecordPath) String() string { return string(p) }

// Protocol tags a record with its type. See ProtocolTag.
type Protocol string

// Permissions describe what a record grants to identities it is shared with.
type Permissions struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

func (p Permissions) allows(write bool) bool {
	if write {
		return p.Write
	}
	return p.Read || p.Write
}

// Outcome is the result of a slot claim.
type Outcome int

const (
	// Claimed means the slot now holds the caller's record.
	Claimed Outcome = iota + 1
	// Occupied means another record already held the slot; retry at slot+1.
	Occupied
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case Occupied:
		return "occupied"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Discovery describes what Discover found in a slot.
//
// Occupied is false when the slot is empty, which ends an enumeration.
// When the slot is occupied but holds a record of another protocol (or a
// pointer the caller cannot follow), Path is empty and the caller skips the
// slot.
type Discovery struct {
	Path     RecordPath
	Occupied bool
}

// Matched reports whether the slot held a record of a requested protocol.
func (d Discovery) Matched() bool {
	return d.Occupied && d.Path != ""
}

// Shared is an inbound grant addressed to the receiving identity.
type Shared struct {
	Path RecordPath
	From Identity
	At   time.Time
}

// Ledger is the record store as seen by one identity. Session implements it
// on top of Store.
type Ledger interface {
	Identity() Identity
	Root() RecordPath

	CreatePrivate(ctx context.Context, parent RecordPath, protocol Protocol, slot uint32, perms Permissions, payload []byte) (RecordPath, Outcome, error)
	CreatePointer(ctx context.Context, parent, target RecordPath, slot uint32) (RecordPath, Outcome, error)
	Discover(ctx context.Context, parent RecordPath, slot uint32, protocols ...Protocol) (Discovery, error)
	ReadPrivate(ctx context.Context, path RecordPath) ([]byte, bool, error)
	Share(ctx context.Context, recipient Identity, perms Permissions, path RecordPath) error
	Receive(ctx context.Context, since time.Time) ([]Shared, error)
}
