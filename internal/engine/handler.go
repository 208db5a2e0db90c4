package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// RequestHandler turns requests into ledger writes.
//
// It never writes the cache. Cursors come from the committed cache, raised
// by hints the handler keeps for slots it claimed itself and discovery has
// not caught up with yet.
type RequestHandler struct {
	ledger      ledger.Ledger
	cache       *cache.Shared
	clock       clock.Clock
	maxAttempts int

	mu           sync.Mutex
	roomHint     uint32
	messageHints map[ledger.RecordPath]uint32
}

// NewRequestHandler creates a handler writing through l.
// maxAttempts <= 0 means the claim loop never gives up.
func NewRequestHandler(l ledger.Ledger, shared *cache.Shared, clk clock.Clock, maxAttempts int) *RequestHandler {
	return &RequestHandler{
		ledger:       l,
		cache:        shared,
		clock:        clk,
		maxAttempts:  maxAttempts,
		messageHints: make(map[ledger.RecordPath]uint32),
	}
}

// Handle executes req and reports the outcome. Errors are carried in
// Result.Err.
func (h *RequestHandler) Handle(ctx context.Context, req Request) Result {
	var res Result
	switch req.Kind {
	case RequestCreateRoom:
		res = h.CreateRoom(ctx, req.CorrelationID)
	case RequestCreateMessage:
		res = h.CreateMessage(ctx, req.Room, req.Message)
	case RequestShare:
		res = h.Share(ctx, req.Room, req.Recipient)
	default:
		res = Result{Err: &ServiceError{
			Code:    ErrCodeInvalidRequest,
			Message: fmt.Sprintf("unknown request kind %s", req.Kind),
		}}
	}

	if res.Err != nil {
		slog.Warn("request failed", "kind", req.Kind, "room", req.Room, "error", res.Err)
	} else {
		slog.Debug("request handled",
			"kind", req.Kind,
			"path", res.Path,
			"slot", res.Slot,
			"collisions", res.Collisions,
		)
	}
	return res
}

// CreateRoom claims the next free root slot for a room record carrying
// correlationID.
func (h *RequestHandler) CreateRoom(ctx context.Context, correlationID uuid.UUID) Result {
	payload, err := rooms.EncodeCorrelation(correlationID)
	if err != nil {
		return Result{Err: newEncodingError("room", err)}
	}

	root := h.ledger.Root()
	c, err := claimSlot(ctx, root, h.roomCursor, func(ctx context.Context, slot uint32) (ledger.RecordPath, ledger.Outcome, error) {
		return h.ledger.CreatePrivate(ctx, root, rooms.RoomsProtocol, slot, rooms.RoomPermissions, payload)
	}, h.maxAttempts)
	if err != nil {
		return Result{Err: err}
	}

	h.mu.Lock()
	h.roomHint = max(h.roomHint, c.slot+1)
	h.mu.Unlock()

	return Result{Path: c.path, Slot: c.slot, Collisions: c.collisions}
}

// CreateMessage claims the next free slot under room for m. The room must
// already be in the cache.
func (h *RequestHandler) CreateMessage(ctx context.Context, room ledger.RecordPath, m rooms.Message) Result {
	if !h.cache.HasRoom(room) {
		return Result{Err: newUnknownRoomError(room)}
	}

	payload, err := rooms.EncodeMessage(m)
	if err != nil {
		return Result{Err: newEncodingError("message", err)}
	}

	cursor := func() uint32 { return h.messageCursor(room) }
	c, err := claimSlot(ctx, room, cursor, func(ctx context.Context, slot uint32) (ledger.RecordPath, ledger.Outcome, error) {
		return h.ledger.CreatePrivate(ctx, room, rooms.MessagesProtocol, slot, rooms.MessagePermissions, payload)
	}, h.maxAttempts)
	if err != nil {
		return Result{Err: err}
	}

	h.mu.Lock()
	h.messageHints[room] = max(h.messageHints[room], c.slot+1)
	h.mu.Unlock()

	return Result{Path: c.path, Slot: c.slot, Collisions: c.collisions}
}

// Share grants recipient access to room, then appends a joined message
// authored by recipient so every participant sees them arrive.
func (h *RequestHandler) Share(ctx context.Context, room ledger.RecordPath, recipient ledger.Identity) Result {
	if !h.cache.HasRoom(room) {
		return Result{Err: newUnknownRoomError(room)}
	}
	if err := recipient.Validate(); err != nil {
		return Result{Err: &ServiceError{Code: ErrCodeInvalidRequest, Message: "invalid recipient", Err: err}}
	}

	if err := h.ledger.Share(ctx, recipient, rooms.RoomPermissions, room); err != nil {
		return Result{Err: newStoreError("share", room, err)}
	}
	slog.Info("room shared", "room", room, "recipient", recipient)

	return h.CreateMessage(ctx, room, rooms.Joined(recipient, h.clock.Now()))
}

func (h *RequestHandler) roomCursor() uint32 {
	fresh := h.cache.RoomCursor()
	h.mu.Lock()
	defer h.mu.Unlock()
	return max(fresh, h.roomHint)
}

func (h *RequestHandler) messageCursor(room ledger.RecordPath) uint32 {
	fresh, _ := h.cache.MessageCursor(room)
	h.mu.Lock()
	defer h.mu.Unlock()
	return max(fresh, h.messageHints[room])
}
