package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
	"github.com/roach88/roomsync/internal/testutil"
)

func TestHandler_CreateRoom_Sequential(t *testing.T) {
	f := newAlice(t)

	first := f.createRoom(t)
	second := f.createRoom(t)

	assert.Equal(t, uint32(0), first.Slot)
	assert.Equal(t, uint32(1), second.Slot)
	assert.Zero(t, second.Collisions, "own claims are remembered until discovery catches up")
	assert.Equal(t, ledger.RecordPath("/alice").Join(ledger.RecordID("/alice", 1)), second.Path)
}

func TestHandler_CreateRoom_SkipsOccupiedSlots(t *testing.T) {
	f := newAlice(t)
	otherDevice := testutil.Session(t, f.store, "alice")
	writeRoomAt(t, otherDevice, 0)
	writeRoomAt(t, otherDevice, 1)

	res := f.createRoom(t)

	assert.Equal(t, uint32(2), res.Slot)
	assert.Equal(t, 2, res.Collisions, "tried 0 and 1 first")

	f.pass(t)
	assert.Equal(t, uint32(3), f.engine.Cache().NextRoomIndex)
	assert.Len(t, f.engine.State().Current().Rooms, 3)
}

func TestHandler_CreateRoom_Concurrent(t *testing.T) {
	store, clk := testutil.OpenLedger(t)
	const writers = 8

	fixtures := make([]*fixture, writers)
	for i := range fixtures {
		fixtures[i] = newFixture(t, store, clk, "alice")
	}

	results := make([]Result, writers)
	var wg sync.WaitGroup
	for i, f := range fixtures {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.engine.Do(context.Background(), CreateRoomRequest(testutil.ID(uint64(i+1))))
		}()
	}
	wg.Wait()

	slots := make(map[uint32]bool)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.False(t, slots[res.Slot], "slot %d claimed twice", res.Slot)
		slots[res.Slot] = true
	}
	for i := range writers {
		assert.True(t, slots[uint32(i)], "slots are dense: %d missing", i)
	}

	fixtures[0].pass(t)
	snap := fixtures[0].engine.State().Current()
	assert.Len(t, snap.Rooms, writers)
	for i := range writers {
		_, ok := rooms.ByCorrelation(snap.Rooms, testutil.ID(uint64(i+1)))
		assert.True(t, ok, "room %d discovered", i+1)
	}
}

func TestHandler_CreateMessage_UnknownRoom(t *testing.T) {
	f := newAlice(t)
	room := f.createRoom(t).Path

	res := f.engine.Do(context.Background(), CreateMessageRequest(room, rooms.NewMessage("hi", "alice", testutil.Epoch)))
	assert.True(t, IsUnknownRoom(res.Err), "rooms must be discovered before use")

	f.pass(t)
	res = f.engine.Do(context.Background(), CreateMessageRequest(room, rooms.NewMessage("hi", "alice", testutil.Epoch)))
	assert.NoError(t, res.Err)
}

func TestHandler_CreateMessage_SkipsForeignRecords(t *testing.T) {
	f := newAlice(t)
	room := f.createRoom(t).Path
	f.pass(t)

	otherDevice := testutil.Session(t, f.store, "alice")
	writeMessageAt(t, otherDevice, room, 0, "zero")
	writeMessageAt(t, otherDevice, room, 1, "one")
	_, outcome, err := otherDevice.CreatePrivate(context.Background(), room, ledger.ProtocolTag("ReactionsV1"), 2, ledger.Permissions{}, []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, ledger.Claimed, outcome)

	res := f.send(t, room, "three")
	assert.Equal(t, uint32(3), res.Slot)
	assert.Equal(t, 3, res.Collisions)

	f.pass(t)
	assert.Equal(t, []string{"zero", "one", "three"}, texts(t, f.engine, room))
	assert.Equal(t, uint32(4), f.engine.Cache().Rooms[room].NextMessageIndex)
}

func TestHandler_Share(t *testing.T) {
	f := newAlice(t)
	room := f.createRoom(t).Path
	f.pass(t)
	f.send(t, room, "before bob")

	res := f.engine.Do(context.Background(), ShareRequest(room, "bob"))
	require.NoError(t, res.Err)
	assert.Equal(t, uint32(1), res.Slot, "joined message follows the existing one")

	bob := testutil.Session(t, f.store, "bob")
	payload, ok, err := bob.ReadPrivate(context.Background(), room)
	require.NoError(t, err)
	assert.True(t, ok, "grant lets bob read the room")
	assert.NotEmpty(t, payload)

	f.pass(t)
	r, ok := f.engine.State().Current().Room(room.Last())
	require.True(t, ok)
	require.Len(t, r.Messages, 2)
	assert.True(t, r.Messages[1].IsSystem())
	assert.Equal(t, ledger.Identity("bob"), r.Messages[1].Author)
	assert.Equal(t, []ledger.Identity{"alice", "bob"}, r.Authors)
}

func TestHandler_Share_Errors(t *testing.T) {
	f := newAlice(t)

	res := f.engine.Do(context.Background(), ShareRequest("/alice/nope", "bob"))
	assert.True(t, IsUnknownRoom(res.Err))

	room := f.createRoom(t).Path
	f.pass(t)
	res = f.engine.Do(context.Background(), ShareRequest(room, ""))
	var se *ServiceError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, ErrCodeInvalidRequest, se.Code)
}

func TestHandler_UnknownKind(t *testing.T) {
	f := newAlice(t)
	res := f.engine.Do(context.Background(), Request{Kind: RequestKind(42)})

	var se *ServiceError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, ErrCodeInvalidRequest, se.Code)
	assert.Contains(t, se.Message, "RequestKind(42)")
}

func TestHandler_MaxClaimAttempts(t *testing.T) {
	f := newAlice(t, WithMaxClaimAttempts(2))
	otherDevice := testutil.Session(t, f.store, "alice")
	writeRoomAt(t, otherDevice, 0)
	writeRoomAt(t, otherDevice, 1)

	res := f.engine.Do(context.Background(), CreateRoomRequest(testutil.ID(9)))
	assert.True(t, IsContended(res.Err))
}
