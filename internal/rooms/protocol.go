package rooms

import "github.com/roach88/roomsync/internal/ledger"

// Protocol tags for the two record kinds the engine writes.
var (
	RoomsProtocol    = ledger.ProtocolTag("RoomsV1")
	MessagesProtocol = ledger.ProtocolTag("MessagesV1")
)

// RoomPermissions is used both when creating a room and when sharing it.
var RoomPermissions = ledger.Permissions{Read: true, Write: true}

// MessagePermissions is empty; messages inherit access from their room.
var MessagePermissions = ledger.Permissions{}
