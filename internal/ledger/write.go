package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreatePrivate claims slot under parent for a record tagged with protocol.
//
// Uses ON CONFLICT(parent, slot) DO NOTHING: if the slot already holds a
// record, nothing is written and the outcome is Occupied. The returned path
// is the slot's path in either case.
func (s *Session) CreatePrivate(ctx context.Context, parent RecordPath, protocol Protocol, slot uint32, perms Permissions, payload []byte) (RecordPath, Outcome, error) {
	if err := s.requireAccess(ctx, "create private", parent, true); err != nil {
		return "", 0, err
	}

	permsJSON, err := marshalPermissions(perms)
	if err != nil {
		return "", 0, fmt.Errorf("create private: %w", err)
	}

	path := parent.Join(RecordID(parent, slot))
	outcome, err := s.claim(ctx, `
		INSERT INTO records
		(parent, slot, path, owner, protocol, target, permissions, payload, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)
		ON CONFLICT(parent, slot) DO NOTHING
	`,
		string(parent),
		slot,
		string(path),
		string(s.identity),
		string(protocol),
		permsJSON,
		payload,
		s.now(),
	)
	if err != nil {
		return "", 0, fmt.Errorf("create private %s[%d]: %w", parent, slot, err)
	}
	return path, outcome, nil
}

// CreatePointer claims slot under parent for a reference to target. The
// session must be able to read target.
func (s *Session) CreatePointer(ctx context.Context, parent, target RecordPath, slot uint32) (RecordPath, Outcome, error) {
	if err := s.requireAccess(ctx, "create pointer", parent, true); err != nil {
		return "", 0, err
	}
	if err := s.requireAccess(ctx, "create pointer", target, false); err != nil {
		return "", 0, err
	}

	path := parent.Join(RecordID(parent, slot))
	outcome, err := s.claim(ctx, `
		INSERT INTO records
		(parent, slot, path, owner, protocol, target, permissions, payload, created_at)
		VALUES (?, ?, ?, ?, '', ?, '{}', NULL, ?)
		ON CONFLICT(parent, slot) DO NOTHING
	`,
		string(parent),
		slot,
		string(path),
		string(s.identity),
		string(target),
		s.now(),
	)
	if err != nil {
		return "", 0, fmt.Errorf("create pointer %s[%d]: %w", parent, slot, err)
	}
	return path, outcome, nil
}

func (s *Session) claim(ctx context.Context, query string, args ...any) (Outcome, error) {
	result, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return Occupied, nil
	}
	return Claimed, nil
}

// Share grants recipient perms on path. The session needs write access to
// path, and path must exist. Sharing the same path again replaces the
// permissions but keeps the original grant time.
func (s *Session) Share(ctx context.Context, recipient Identity, perms Permissions, path RecordPath) error {
	if err := recipient.Validate(); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	if err := s.requireAccess(ctx, "share", path, true); err != nil {
		return err
	}

	var exists int
	err := s.store.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE path = ?`, string(path)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("share %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("share %s: %w", path, err)
	}

	permsJSON, err := marshalPermissions(perms)
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO grants
		(recipient, grantor, path, permissions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(recipient, path) DO UPDATE SET permissions = excluded.permissions
	`,
		string(recipient),
		string(s.identity),
		string(path),
		permsJSON,
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("share %s with %s: %w", path, recipient, err)
	}
	return nil
}
