package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
	"github.com/roach88/roomsync/internal/testutil"
)

func TestEngine_New_Defaults(t *testing.T) {
	f := newAlice(t)
	e := f.engine

	assert.Equal(t, DefaultSyncInterval, e.syncInterval)
	assert.Equal(t, DefaultRequestInterval, e.requestInterval)
	assert.Equal(t, DefaultCacheKey, e.cacheKey)
	assert.Zero(t, e.maxClaimAttempts)
	assert.Equal(t, ledger.Identity("alice"), e.Identity())
	assert.Zero(t, e.State().Current().Seq, "nothing published before the first pass")
}

func TestEngine_New_RejectsBadIntervals(t *testing.T) {
	store, _ := testutil.OpenLedger(t)
	session := testutil.Session(t, store, "alice")

	_, err := New(context.Background(), session, cache.NewMemoryBlobStore(), WithSyncInterval(0))
	assert.Error(t, err)
	_, err = New(context.Background(), session, cache.NewMemoryBlobStore(), WithRequestInterval(-time.Millisecond))
	assert.Error(t, err)
}

func TestEngine_Run_CreateAndSend(t *testing.T) {
	f := newAlice(t)
	runEngine(t, f.engine)
	ctx := waitCtx(t)

	id, res, err := f.engine.NewRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.ID(1), id)
	assert.Equal(t, uint32(0), res.Slot)

	snap, err := f.engine.State().WaitFor(ctx, func(s Snapshot) bool {
		_, ok := rooms.ByCorrelation(s.Rooms, id)
		return ok
	})
	require.NoError(t, err)
	room, _ := rooms.ByCorrelation(snap.Rooms, id)
	assert.Equal(t, res.Path, room.Path)

	_, err = f.engine.SendMessage(ctx, room.Path, "first")
	require.NoError(t, err)
	_, err = f.engine.SendMessage(ctx, room.Path, "second")
	require.NoError(t, err)

	_, err = f.engine.State().WaitFor(ctx, func(s Snapshot) bool {
		r, ok := s.Room(room.ID)
		return ok && len(r.Messages) == 2
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, texts(t, f.engine, room.Path))
}

func TestEngine_Run_UnknownRoom(t *testing.T) {
	f := newAlice(t)
	runEngine(t, f.engine)

	_, err := f.engine.SendMessage(waitCtx(t), "/alice/missing", "hello?")
	assert.True(t, IsUnknownRoom(err))
}

func TestEngine_Run_Twice(t *testing.T) {
	f := newAlice(t)
	runEngine(t, f.engine)

	// Let the first Run claim the engine.
	_, err := f.engine.State().WaitFor(waitCtx(t), func(s Snapshot) bool { return s.Seq > 0 })
	require.NoError(t, err)

	assert.Error(t, f.engine.Run(context.Background()))
}

func TestEngine_StopFailsQueuedRequests(t *testing.T) {
	f := newAlice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := f.engine.Submit(CreateRoomRequest(testutil.ID(7)))
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Run(ctx), context.Canceled)

	select {
	case res := <-reply:
		assert.True(t, IsQueueClosed(res.Err))
	case <-time.After(5 * time.Second):
		t.Fatal("queued request never answered")
	}

	_, err = f.engine.Submit(CreateRoomRequest(testutil.ID(8)))
	assert.True(t, IsQueueClosed(err))
}

func TestEngine_StartConversation(t *testing.T) {
	store, clk := testutil.OpenLedger(t)
	alice := newFixture(t, store, clk, "alice")
	runEngine(t, alice.engine)
	ctx := waitCtx(t)

	room, err := alice.engine.StartConversation(ctx, "bob", "carol")
	require.NoError(t, err)

	snap, err := alice.engine.State().WaitFor(ctx, func(s Snapshot) bool {
		r, ok := s.Room(room.ID)
		return ok && len(r.Messages) == 3
	})
	require.NoError(t, err)
	r, _ := snap.Room(room.ID)

	authors := make([]ledger.Identity, len(r.Messages))
	for i, m := range r.Messages {
		assert.True(t, m.IsSystem())
		authors[i] = m.Author
	}
	assert.Equal(t, []ledger.Identity{"bob", "carol", "alice"}, authors)
	assert.True(t, r.IsGroup())
	assert.Zero(t, r.Unread("alice"))

	clk.Advance(time.Second)
	bob := newFixture(t, store, clk, "bob")
	bob.pass(t)
	bobView, ok := bob.engine.State().Current().Room(room.ID)
	require.True(t, ok)
	assert.Len(t, bobView.Messages, 3)
}

func TestEngine_SendMessage_Blocked(t *testing.T) {
	store, clk := testutil.OpenLedger(t)
	profiles := rooms.NewDirectory("alice",
		rooms.Profile{Identity: "alice", Blocked: []ledger.Identity{"mallory"}},
	)
	alice := newFixture(t, store, clk, "alice", WithProfiles(profiles))

	blocked := alice.createRoom(t).Path
	friendly := alice.createRoom(t).Path
	alice.pass(t)
	require.NoError(t, alice.engine.Do(context.Background(), ShareRequest(blocked, "mallory")).Err)
	require.NoError(t, alice.engine.Do(context.Background(), ShareRequest(friendly, "bob")).Err)
	alice.pass(t)

	_, err := alice.engine.MessageRequest(blocked, "hello")
	assert.True(t, IsBlocked(err))

	_, err = alice.engine.MessageRequest(friendly, "hello")
	assert.NoError(t, err)

	runEngine(t, alice.engine)
	_, err = alice.engine.SendMessage(waitCtx(t), blocked, "hello")
	assert.True(t, IsBlocked(err))
}
