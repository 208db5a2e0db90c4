package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
	"github.com/roach88/roomsync/internal/testutil"
)

// fixture is one identity's engine on a shared ledger store.
type fixture struct {
	store   *ledger.Store
	clock   *clock.FakeClock
	session *ledger.Session
	blobs   *cache.MemoryBlobStore
	engine  *Engine
}

func newFixture(t *testing.T, store *ledger.Store, clk *clock.FakeClock, id ledger.Identity, opts ...EngineOption) *fixture {
	t.Helper()
	session := testutil.Session(t, store, id)
	blobs := cache.NewMemoryBlobStore()
	opts = append([]EngineOption{
		WithClock(clk),
		WithCorrelationGenerator(testutil.NewSequentialIDs()),
	}, opts...)
	e, err := New(context.Background(), session, blobs, opts...)
	require.NoError(t, err)
	return &fixture{store: store, clock: clk, session: session, blobs: blobs, engine: e}
}

func newAlice(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	store, clk := testutil.OpenLedger(t)
	return newFixture(t, store, clk, "alice", opts...)
}

func (f *fixture) pass(t *testing.T) bool {
	t.Helper()
	published, err := f.engine.SyncOnce(context.Background())
	require.NoError(t, err)
	return published
}

func (f *fixture) createRoom(t *testing.T) Result {
	t.Helper()
	res := f.engine.Do(context.Background(), CreateRoomRequest(f.engine.correlations.Generate()))
	require.NoError(t, res.Err)
	return res
}

func (f *fixture) send(t *testing.T, room ledger.RecordPath, text string) Result {
	t.Helper()
	req, err := f.engine.MessageRequest(room, text)
	require.NoError(t, err)
	res := f.engine.Do(context.Background(), req)
	require.NoError(t, res.Err)
	return res
}

// writeRoomAt places a room record at a root slot, as another device of
// the same identity would.
func writeRoomAt(t *testing.T, l ledger.Ledger, slot uint32) ledger.RecordPath {
	t.Helper()
	payload, err := rooms.EncodeCorrelation(testutil.ID(1000 + uint64(slot)))
	require.NoError(t, err)
	path, outcome, err := l.CreatePrivate(context.Background(), l.Root(), rooms.RoomsProtocol, slot, rooms.RoomPermissions, payload)
	require.NoError(t, err)
	require.Equal(t, ledger.Claimed, outcome)
	return path
}

// writeMessageAt places a message record at a slot under room.
func writeMessageAt(t *testing.T, l ledger.Ledger, room ledger.RecordPath, slot uint32, text string) {
	t.Helper()
	payload, err := rooms.EncodeMessage(rooms.NewMessage(text, l.Identity(), testutil.Epoch))
	require.NoError(t, err)
	_, outcome, err := l.CreatePrivate(context.Background(), room, rooms.MessagesProtocol, slot, rooms.MessagePermissions, payload)
	require.NoError(t, err)
	require.Equal(t, ledger.Claimed, outcome)
}

// texts returns the message texts of the room at path in the current
// snapshot.
func texts(t *testing.T, e *Engine, path ledger.RecordPath) []string {
	t.Helper()
	for _, r := range e.State().Current().Rooms {
		if r.Path == path {
			out := make([]string, len(r.Messages))
			for i, m := range r.Messages {
				out[i] = m.Text
			}
			return out
		}
	}
	t.Fatalf("room %s not published", path)
	return nil
}

// faultyLedger injects errors into a Ledger.
type faultyLedger struct {
	ledger.Ledger

	mu           sync.Mutex
	discoverErrs map[ledger.RecordPath]error
	receiveErr   error
}

func newFaultyLedger(l ledger.Ledger) *faultyLedger {
	return &faultyLedger{Ledger: l, discoverErrs: make(map[ledger.RecordPath]error)}
}

func (f *faultyLedger) failDiscover(parent ledger.RecordPath, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverErrs[parent] = err
}

func (f *faultyLedger) Discover(ctx context.Context, parent ledger.RecordPath, slot uint32, protocols ...ledger.Protocol) (ledger.Discovery, error) {
	f.mu.Lock()
	err := f.discoverErrs[parent]
	f.mu.Unlock()
	if err != nil {
		return ledger.Discovery{}, err
	}
	return f.Ledger.Discover(ctx, parent, slot, protocols...)
}

func (f *faultyLedger) Receive(ctx context.Context, since time.Time) ([]ledger.Shared, error) {
	f.mu.Lock()
	err := f.receiveErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Ledger.Receive(ctx, since)
}

// failingBlobs refuses every save.
type failingBlobs struct {
	*cache.MemoryBlobStore
}

func (failingBlobs) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// runEngine runs e until the test ends.
func runEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
