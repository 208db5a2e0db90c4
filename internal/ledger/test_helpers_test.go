package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/clock"
)

var (
	testEpoch    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testProtocol = ProtocolTag("TestV1")
	otherProto   = ProtocolTag("OtherV1")
	readWrite    = Permissions{Read: true, Write: true}
)

// createTestStore opens a store in a temp dir driven by a fake clock.
func createTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	c := clock.Fake(testEpoch)
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), WithClock(c))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, c
}

func createTestSession(t *testing.T, s *Store, id Identity) *Session {
	t.Helper()
	session, err := s.Session(id)
	require.NoError(t, err)
	return session
}
