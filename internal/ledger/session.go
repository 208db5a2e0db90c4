package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Session is the Ledger of a single identity on a Store.
// Safe for concurrent use; the Store serializes writes.
type Session struct {
	store    *Store
	identity Identity
}

var _ Ledger = (*Session)(nil)

// Identity returns the identity this session acts as.
func (s *Session) Identity() Identity { return s.identity }

// Root returns the session's root path.
func (s *Session) Root() RecordPath { return RootOf(s.identity) }

// canAccess reports whether the session may touch path. Owners may do
// anything under their root; other identities need a grant on path or one
// of its ancestors that allows the operation.
func (s *Session) canAccess(ctx context.Context, path RecordPath, write bool) (bool, error) {
	if path.Owner() == s.identity {
		return true, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT permissions
		FROM grants
		WHERE recipient = ?
		  AND (path = ? OR substr(?, 1, length(path) + 1) = path || '/')
	`, string(s.identity), string(path), string(path))
	if err != nil {
		return false, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return false, fmt.Errorf("scan grant: %w", err)
		}
		perms, err := unmarshalPermissions(raw)
		if err != nil {
			return false, err
		}
		if perms.allows(write) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate grants: %w", err)
	}
	return false, nil
}

func (s *Session) requireAccess(ctx context.Context, op string, path RecordPath, write bool) error {
	if err := path.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := s.canAccess(ctx, path, write)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s %s as %s: %w", op, path, s.identity, ErrPermissionDenied)
	}
	return nil
}

func (s *Session) now() int64 {
	return s.store.clock.Now().UnixNano()
}

func marshalPermissions(p Permissions) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal permissions: %w", err)
	}
	return string(data), nil
}

func unmarshalPermissions(raw string) (Permissions, error) {
	var p Permissions
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Permissions{}, fmt.Errorf("unmarshal permissions: %w", err)
	}
	return p, nil
}

// unixNanos converts t for comparison against stored timestamps. The zero
// time sorts before everything.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return math.MinInt64
	}
	return t.UnixNano()
}
