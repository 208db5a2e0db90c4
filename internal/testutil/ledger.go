// Package testutil holds fixtures shared by package tests: a ledger on a
// temp SQLite file driven by a fake clock, and predictable correlation ids.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
)

// Epoch is where fixture clocks start.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// OpenLedger opens a ledger store in t's temp dir. The store and the
// returned clock are meant to be shared with the engines under test.
func OpenLedger(t *testing.T) (*ledger.Store, *clock.FakeClock) {
	t.Helper()
	c := clock.Fake(Epoch)
	s, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), ledger.WithClock(c))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, c
}

// Session returns id's view of s.
func Session(t *testing.T, s *ledger.Store, id ledger.Identity) *ledger.Session {
	t.Helper()
	session, err := s.Session(id)
	require.NoError(t, err)
	return session
}
