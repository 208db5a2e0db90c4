package cache

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	c := populated()

	data, err := Encode(c)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, c.NextRoomIndex, got.NextRoomIndex)
	assert.True(t, c.LastDiscovery.Equal(got.LastDiscovery))
	require.Len(t, got.Rooms, 2)
	assert.Equal(t, c.Rooms[roomA].CorrelationID, got.Rooms[roomA].CorrelationID)
	assert.Equal(t, c.Rooms[roomA].NextMessageIndex, got.Rooms[roomA].NextMessageIndex)
	assert.Equal(t, c.Rooms[roomA].Messages, got.Rooms[roomA].Messages)
	assert.True(t, got.Rooms[roomA].Messages[0].IsSystem())
	assert.Empty(t, got.Rooms[roomB].Messages)
}

func TestCodec_Deterministic(t *testing.T) {
	first, err := Encode(populated())
	require.NoError(t, err)

	for range 5 {
		again, err := Encode(populated())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCodec_FreshCache(t *testing.T) {
	data, err := Encode(New())
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, New(), got)
}

func TestDecode_Rejects(t *testing.T) {
	wrongVersion, err := cbor.Marshal(map[string]any{"v": 99})
	require.NoError(t, err)

	badPath, err := cbor.Marshal(map[string]any{
		"v": 1,
		"rooms": map[string]any{
			"relative/path": map[string]any{"correlation_id": testCorr.String()},
		},
	})
	require.NoError(t, err)

	badCursor, err := cbor.Marshal(map[string]any{
		"v": 1,
		"rooms": map[string]any{
			string(roomA): map[string]any{
				"correlation_id":     testCorr.String(),
				"next_message_index": 0,
				"messages":           []any{map[string]any{"text": "x", "author": "alice"}},
			},
		},
	})
	require.NoError(t, err)

	tests := map[string][]byte{
		"garbage":       []byte{0xff, 0x00, 0x13},
		"wrong version": wrongVersion,
		"bad path":      badPath,
		"cursor behind": badCursor,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}
