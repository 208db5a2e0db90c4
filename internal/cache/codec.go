package cache

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// blobVersion is bumped whenever the encoded layout changes incompatibly.
// A blob with another version is treated as corrupt and rebuilt.
const blobVersion = 1

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same cache
// always produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

type blob struct {
	Version       int                  `cbor:"v"`
	NextRoomIndex uint32               `cbor:"next_room_index"`
	LastDiscovery time.Time            `cbor:"last_discovery"`
	Rooms         map[string]blobEntry `cbor:"rooms"`
}

type blobEntry struct {
	CorrelationID    string          `cbor:"correlation_id"`
	NextMessageIndex uint32          `cbor:"next_message_index"`
	Messages         []rooms.Message `cbor:"messages"`
}

// Encode serializes c.
func Encode(c *LocalCache) ([]byte, error) {
	b := blob{
		Version:       blobVersion,
		NextRoomIndex: c.NextRoomIndex,
		LastDiscovery: c.LastDiscovery.UTC(),
		Rooms:         make(map[string]blobEntry, len(c.Rooms)),
	}
	for path, entry := range c.Rooms {
		b.Rooms[string(path)] = blobEntry{
			CorrelationID:    entry.CorrelationID.String(),
			NextMessageIndex: entry.NextMessageIndex,
			Messages:         entry.Messages,
		}
	}

	data, err := encMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode cache: %w", err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*LocalCache, error) {
	var b blob
	if err := decMode.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("decode cache: unsupported version %d", b.Version)
	}

	c := New()
	c.NextRoomIndex = b.NextRoomIndex
	if !b.LastDiscovery.IsZero() {
		c.LastDiscovery = b.LastDiscovery.UTC()
	}
	for path, entry := range b.Rooms {
		p := ledger.RecordPath(path)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("decode cache: room %q: %w", path, err)
		}
		if int(entry.NextMessageIndex) < len(entry.Messages) {
			return nil, fmt.Errorf("decode cache: room %q: cursor %d behind %d messages",
				path, entry.NextMessageIndex, len(entry.Messages))
		}
		id, err := uuid.Parse(entry.CorrelationID)
		if err != nil {
			return nil, fmt.Errorf("decode cache: room %q: %w", path, err)
		}
		c.Rooms[p] = &RoomEntry{
			CorrelationID:    id,
			Messages:         entry.Messages,
			NextMessageIndex: entry.NextMessageIndex,
		}
	}
	return c, nil
}
