package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// RequestKind distinguishes between request kinds.
type RequestKind int

const (
	// RequestCreateRoom claims a new room slot under the identity's root.
	RequestCreateRoom RequestKind = iota + 1
	// RequestCreateMessage appends a message to a known room.
	RequestCreateMessage
	// RequestShare grants a recipient access to a known room and announces
	// them with a joined message.
	RequestShare
)

func (k RequestKind) String() string {
	switch k {
	case RequestCreateRoom:
		return "create_room"
	case RequestCreateMessage:
		return "create_message"
	case RequestShare:
		return "share"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// Request is a user-originated write. Which fields are used depends on Kind.
type Request struct {
	Kind RequestKind

	// CorrelationID is stored in the room record (RequestCreateRoom).
	CorrelationID uuid.UUID

	// Room is the target room (RequestCreateMessage, RequestShare).
	Room ledger.RecordPath

	// Message is the message to append (RequestCreateMessage).
	Message rooms.Message

	// Recipient is who the room is shared with (RequestShare).
	Recipient ledger.Identity
}

// CreateRoomRequest builds a RequestCreateRoom.
func CreateRoomRequest(correlationID uuid.UUID) Request {
	return Request{Kind: RequestCreateRoom, CorrelationID: correlationID}
}

// CreateMessageRequest builds a RequestCreateMessage.
func CreateMessageRequest(room ledger.RecordPath, m rooms.Message) Request {
	return Request{Kind: RequestCreateMessage, Room: room, Message: m}
}

// ShareRequest builds a RequestShare.
func ShareRequest(room ledger.RecordPath, recipient ledger.Identity) Request {
	return Request{Kind: RequestShare, Room: room, Recipient: recipient}
}

// Result reports the outcome of a request.
type Result struct {
	// Path is the claimed record: the room for RequestCreateRoom, the
	// message (the joined message for RequestShare) otherwise.
	Path ledger.RecordPath
	// Slot is the index the record was claimed at.
	Slot uint32
	// Collisions counts the occupied slots skipped before the claim.
	Collisions int
	Err        error
}
