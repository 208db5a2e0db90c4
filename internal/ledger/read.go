package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Discover inspects slot under parent.
//
// An empty slot yields Discovery{}. A slot holding a record tagged with one
// of protocols yields its path; a pointer yields its target's path when the
// target matches and is readable. Anything else is reported as occupied
// without a path. With no protocols every record matches.
func (s *Session) Discover(ctx context.Context, parent RecordPath, slot uint32, protocols ...Protocol) (Discovery, error) {
	if err := s.requireAccess(ctx, "discover", parent, false); err != nil {
		return Discovery{}, err
	}

	var (
		path     string
		protocol string
		target   sql.NullString
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT path, protocol, target
		FROM records
		WHERE parent = ? AND slot = ?
	`, string(parent), slot).Scan(&path, &protocol, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return Discovery{}, nil
	}
	if err != nil {
		return Discovery{}, fmt.Errorf("discover %s[%d]: %w", parent, slot, err)
	}

	if !target.Valid {
		if matchesProtocol(Protocol(protocol), protocols) {
			return Discovery{Path: RecordPath(path), Occupied: true}, nil
		}
		return Discovery{Occupied: true}, nil
	}

	resolved, err := s.resolvePointer(ctx, RecordPath(target.String), protocols)
	if err != nil {
		return Discovery{}, fmt.Errorf("discover %s[%d]: %w", parent, slot, err)
	}
	return Discovery{Path: resolved, Occupied: true}, nil
}

// resolvePointer returns target if it exists, matches protocols and is
// readable by the session; otherwise it returns "".
func (s *Session) resolvePointer(ctx context.Context, target RecordPath, protocols []Protocol) (RecordPath, error) {
	var protocol string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT protocol FROM records WHERE path = ?
	`, string(target)).Scan(&protocol)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve pointer %s: %w", target, err)
	}
	if !matchesProtocol(Protocol(protocol), protocols) {
		return "", nil
	}
	ok, err := s.canAccess(ctx, target, false)
	if err != nil || !ok {
		return "", err
	}
	return target, nil
}

func matchesProtocol(p Protocol, protocols []Protocol) bool {
	return len(protocols) == 0 || slices.Contains(protocols, p)
}

// ReadPrivate returns the payload stored at path. The boolean is false when
// no record exists there. Pointers are followed once.
func (s *Session) ReadPrivate(ctx context.Context, path RecordPath) ([]byte, bool, error) {
	if err := s.requireAccess(ctx, "read private", path, false); err != nil {
		return nil, false, err
	}

	var (
		payload []byte
		target  sql.NullString
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT payload, target FROM records WHERE path = ?
	`, string(path)).Scan(&payload, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read private %s: %w", path, err)
	}

	if target.Valid {
		targetPath := RecordPath(target.String)
		if err := s.requireAccess(ctx, "read private", targetPath, false); err != nil {
			return nil, false, err
		}
		err := s.store.db.QueryRowContext(ctx, `
			SELECT payload FROM records WHERE path = ?
		`, target.String).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("read private %s: %w", targetPath, err)
		}
	}

	if payload == nil {
		payload = []byte{}
	}
	return payload, true, nil
}

// Receive lists grants addressed to the session created strictly after
// since, oldest first.
//
// Returns an empty slice (not nil) if nothing was shared.
func (s *Session) Receive(ctx context.Context, since time.Time) ([]Shared, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT path, grantor, created_at
		FROM grants
		WHERE recipient = ? AND created_at > ?
		ORDER BY created_at ASC, seq ASC
	`, string(s.identity), unixNanos(since))
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	defer rows.Close()

	shared := []Shared{}
	for rows.Next() {
		var (
			path, grantor string
			createdAt     int64
		)
		if err := rows.Scan(&path, &grantor, &createdAt); err != nil {
			return nil, fmt.Errorf("receive: scan: %w", err)
		}
		shared = append(shared, Shared{
			Path: RecordPath(path),
			From: Identity(grantor),
			At:   time.Unix(0, createdAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("receive: iterate: %w", err)
	}
	return shared, nil
}
