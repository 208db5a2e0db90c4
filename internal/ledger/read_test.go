package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_EmptySlot(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")

	d, err := alice.Discover(context.Background(), alice.Root(), 0, testProtocol)
	require.NoError(t, err)
	assert.False(t, d.Occupied)
	assert.False(t, d.Matched())
}

func TestDiscover_FiltersByProtocol(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	ctx := context.Background()

	room, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 0, readWrite, nil)
	require.NoError(t, err)
	_, _, err = alice.CreatePrivate(ctx, alice.Root(), otherProto, 1, readWrite, nil)
	require.NoError(t, err)

	d, err := alice.Discover(ctx, alice.Root(), 0, testProtocol)
	require.NoError(t, err)
	assert.True(t, d.Matched())
	assert.Equal(t, room, d.Path)

	d, err = alice.Discover(ctx, alice.Root(), 1, testProtocol)
	require.NoError(t, err)
	assert.True(t, d.Occupied, "foreign protocol still occupies the slot")
	assert.False(t, d.Matched())

	d, err = alice.Discover(ctx, alice.Root(), 1)
	require.NoError(t, err)
	assert.True(t, d.Matched(), "no protocol filter matches anything")
}

func TestDiscover_PermissionDenied(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	bob := createTestSession(t, s, "bob")

	_, err := bob.Discover(context.Background(), alice.Root(), 0, testProtocol)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDiscover_PointerResolvesToTarget(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	bob := createTestSession(t, s, "bob")
	ctx := context.Background()

	room, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 0, readWrite, []byte("room"))
	require.NoError(t, err)
	require.NoError(t, alice.Share(ctx, "bob", readWrite, room))
	_, _, err = bob.CreatePointer(ctx, bob.Root(), room, 0)
	require.NoError(t, err)

	d, err := bob.Discover(ctx, bob.Root(), 0, testProtocol)
	require.NoError(t, err)
	assert.Equal(t, room, d.Path)

	d, err = bob.Discover(ctx, bob.Root(), 0, otherProto)
	require.NoError(t, err)
	assert.True(t, d.Occupied)
	assert.False(t, d.Matched())

	payload, ok, err := bob.ReadPrivate(ctx, bob.Root().Join(RecordID(bob.Root(), 0)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "room", string(payload), "reading a pointer follows it")
}

func TestReadPrivate_Missing(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")

	payload, ok, err := alice.ReadPrivate(context.Background(), alice.Root().Join("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestReadPrivate_EmptyPayload(t *testing.T) {
	s, _ := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	ctx := context.Background()

	path, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 0, readWrite, nil)
	require.NoError(t, err)

	payload, ok, err := alice.ReadPrivate(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{}, payload)
}

func TestReceive_SinceIsExclusiveAndOrdered(t *testing.T) {
	s, c := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	bob := createTestSession(t, s, "bob")
	ctx := context.Background()

	first, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 0, readWrite, nil)
	require.NoError(t, err)
	second, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 1, readWrite, nil)
	require.NoError(t, err)

	require.NoError(t, alice.Share(ctx, "bob", readWrite, first))
	firstAt := c.Now()
	c.Advance(time.Second)
	require.NoError(t, alice.Share(ctx, "bob", readWrite, second))

	all, err := bob.Receive(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].Path)
	assert.Equal(t, second, all[1].Path)
	assert.Equal(t, Identity("alice"), all[0].From)
	assert.True(t, all[0].At.Equal(firstAt))

	later, err := bob.Receive(ctx, firstAt)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, second, later[0].Path)

	none, err := alice.Receive(ctx, time.Time{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReceive_ReshareKeepsGrantTime(t *testing.T) {
	s, c := createTestStore(t)
	alice := createTestSession(t, s, "alice")
	bob := createTestSession(t, s, "bob")
	ctx := context.Background()

	room, _, err := alice.CreatePrivate(ctx, alice.Root(), testProtocol, 0, readWrite, nil)
	require.NoError(t, err)
	require.NoError(t, alice.Share(ctx, "bob", Permissions{Read: true}, room))
	at := c.Now()

	c.Advance(time.Minute)
	require.NoError(t, alice.Share(ctx, "bob", readWrite, room))

	got, err := bob.Receive(ctx, at)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, outcome, err := bob.CreatePrivate(ctx, room, otherProto, 0, Permissions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Claimed, outcome, "re-share upgraded permissions")
}
