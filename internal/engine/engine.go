package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

const (
	// DefaultSyncInterval is how often the sync loop runs a pass.
	DefaultSyncInterval = time.Second

	// DefaultRequestInterval is how often the request loop drains its queue.
	DefaultRequestInterval = 16 * time.Millisecond

	// DefaultCacheKey is the blob key the cache is stored under.
	DefaultCacheKey = "RoomCache"
)

// Engine runs the request handler and the synchronizer for one identity.
//
// Thread-safety model:
//   - Submit, CreateRoom, SendMessage, Share, NewRoom, StartConversation,
//     State: safe from any goroutine, require Run to be active
//   - Do, SyncOnce: safe from any goroutine, for use without Run
//   - Run: must be called at most once
type Engine struct {
	ledger       ledger.Ledger
	blobs        cache.BlobStore
	cache        *cache.Shared
	handler      *RequestHandler
	sync         *Synchronizer
	state        *State
	queue        *requestQueue
	clock        clock.Clock
	correlations CorrelationGenerator
	profiles     rooms.Profiles

	syncInterval     time.Duration
	requestInterval  time.Duration
	maxClaimAttempts int
	cacheKey         string

	wake    chan struct{} // buffered, size 1
	running atomic.Bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the clock driving both loops and message timestamps.
// Default: clock.Real().
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSyncInterval sets the time between sync passes.
// Default: 1s (DefaultSyncInterval).
func WithSyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.syncInterval = d
	}
}

// WithRequestInterval sets the time between request queue drains.
// Default: 16ms (DefaultRequestInterval).
func WithRequestInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.requestInterval = d
	}
}

// WithMaxClaimAttempts caps the claim loop. Default: 0, unbounded.
func WithMaxClaimAttempts(n int) EngineOption {
	return func(e *Engine) {
		e.maxClaimAttempts = n
	}
}

// WithCorrelationGenerator sets how NewRoom mints correlation ids.
// Default: UUIDv7Generator.
func WithCorrelationGenerator(g CorrelationGenerator) EngineOption {
	return func(e *Engine) {
		e.correlations = g
	}
}

// WithCacheKey sets the blob key the cache is stored under.
// Default: "RoomCache" (DefaultCacheKey).
func WithCacheKey(key string) EngineOption {
	return func(e *Engine) {
		e.cacheKey = key
	}
}

// WithProfiles enables block checks on SendMessage.
func WithProfiles(p rooms.Profiles) EngineOption {
	return func(e *Engine) {
		e.profiles = p
	}
}

// New creates an Engine for l and loads its cache from blobs.
func New(ctx context.Context, l ledger.Ledger, blobs cache.BlobStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		ledger:          l,
		blobs:           blobs,
		state:           NewState(),
		queue:           newRequestQueue(),
		clock:           clock.Real(),
		correlations:    UUIDv7Generator{},
		syncInterval:    DefaultSyncInterval,
		requestInterval: DefaultRequestInterval,
		cacheKey:        DefaultCacheKey,
		wake:            make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.syncInterval <= 0 || e.requestInterval <= 0 {
		return nil, fmt.Errorf("engine intervals must be positive (sync=%s, request=%s)", e.syncInterval, e.requestInterval)
	}

	loaded, err := cache.Load(ctx, blobs, e.cacheKey)
	if err != nil {
		return nil, newStoreError("load cache", "", err)
	}
	e.cache = cache.NewShared(loaded)
	e.handler = NewRequestHandler(l, e.cache, e.clock, e.maxClaimAttempts)
	e.sync = NewSynchronizer(l, e.cache, blobs, e.cacheKey, e.state, e.clock, e.maxClaimAttempts)

	slog.Debug("engine created",
		"identity", l.Identity(),
		"rooms", len(loaded.Rooms),
		"next_room_index", loaded.NextRoomIndex,
	)
	return e, nil
}

// Identity returns the identity the engine acts as.
func (e *Engine) Identity() ledger.Identity {
	return e.ledger.Identity()
}

// State returns the observable room list.
func (e *Engine) State() *State {
	return e.state
}

// Cache returns a copy of the committed cache.
func (e *Engine) Cache() *cache.LocalCache {
	return e.cache.Snapshot()
}

// Run starts the request loop and the sync loop and blocks until ctx is
// cancelled. Requests still queued at that point fail with QUEUE_CLOSED.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine is already running")
	}
	slog.Info("engine starting", "identity", e.ledger.Identity())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.syncLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.requestLoop(ctx)
	}()
	wg.Wait()

	for _, p := range e.queue.Close() {
		p.reply <- Result{Err: newQueueClosedError()}
	}
	slog.Info("engine stopping: context cancelled")
	return ctx.Err()
}

func (e *Engine) requestLoop(ctx context.Context) {
	ticker := e.clock.NewTicker(e.requestInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		for {
			p, ok := e.queue.TryDequeue()
			if !ok {
				break
			}
			res := e.handler.Handle(ctx, p.req)
			p.reply <- res
			if res.Err == nil {
				e.Wake()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.queue.Wait():
		}
	}
}

func (e *Engine) syncLoop(ctx context.Context) {
	ticker := e.clock.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.sync.Pass(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.wake:
		}
	}
}

// Wake asks the sync loop for a pass without waiting for the next tick.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// SyncOnce runs one pass on the caller's goroutine. It reports whether a
// new room list was published.
func (e *Engine) SyncOnce(ctx context.Context) (bool, error) {
	return e.sync.Pass(ctx)
}

// MarkRead marks every message of room as read locally and returns how
// many were unread. Unknown rooms fail with UNKNOWN_ROOM.
func (e *Engine) MarkRead(ctx context.Context, room ledger.RecordPath) (int, error) {
	return e.sync.MarkRead(ctx, room)
}

// Do handles req on the caller's goroutine, bypassing the queue.
func (e *Engine) Do(ctx context.Context, req Request) Result {
	return e.handler.Handle(ctx, req)
}

// Submit queues req for the request loop. The channel receives exactly one
// Result.
func (e *Engine) Submit(req Request) (<-chan Result, error) {
	p := newPending(req)
	if !e.queue.Enqueue(p) {
		return nil, newQueueClosedError()
	}
	return p.reply, nil
}

func (e *Engine) await(ctx context.Context, req Request) (Result, error) {
	reply, err := e.Submit(req)
	if err != nil {
		return Result{}, err
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-reply:
		return res, res.Err
	}
}

// CreateRoom creates a room record carrying correlationID and waits for
// the claim.
func (e *Engine) CreateRoom(ctx context.Context, correlationID uuid.UUID) (Result, error) {
	return e.await(ctx, CreateRoomRequest(correlationID))
}

// NewRoom mints a correlation id and creates a room with it. The room
// shows up in State once discovered; use the id to recognize it.
func (e *Engine) NewRoom(ctx context.Context) (uuid.UUID, Result, error) {
	id := e.correlations.Generate()
	res, err := e.CreateRoom(ctx, id)
	return id, res, err
}

// SendMessage appends text as a message from the engine's identity.
func (e *Engine) SendMessage(ctx context.Context, room ledger.RecordPath, text string) (Result, error) {
	req, err := e.MessageRequest(room, text)
	if err != nil {
		return Result{Err: err}, err
	}
	return e.await(ctx, req)
}

// MessageRequest builds the request for a message from the engine's
// identity, refusing it if the room is blocked.
func (e *Engine) MessageRequest(room ledger.RecordPath, text string) (Request, error) {
	if err := e.checkBlocked(room); err != nil {
		return Request{}, err
	}
	return CreateMessageRequest(room, rooms.NewMessage(text, e.ledger.Identity(), e.clock.Now())), nil
}

// JoinedRequest builds the request announcing the engine's identity in room.
func (e *Engine) JoinedRequest(room ledger.RecordPath) Request {
	return CreateMessageRequest(room, rooms.Joined(e.ledger.Identity(), e.clock.Now()))
}

// Share grants recipient access to room.
func (e *Engine) Share(ctx context.Context, room ledger.RecordPath, recipient ledger.Identity) (Result, error) {
	return e.await(ctx, ShareRequest(room, recipient))
}

// StartConversation creates a room, waits until discovery surfaces it,
// shares it with every recipient and announces the creator with a joined
// message.
func (e *Engine) StartConversation(ctx context.Context, recipients ...ledger.Identity) (rooms.Room, error) {
	id, _, err := e.NewRoom(ctx)
	if err != nil {
		return rooms.Room{}, fmt.Errorf("start conversation: %w", err)
	}

	snap, err := e.state.WaitFor(ctx, func(s Snapshot) bool {
		_, ok := rooms.ByCorrelation(s.Rooms, id)
		return ok
	})
	if err != nil {
		return rooms.Room{}, fmt.Errorf("start conversation: wait for room: %w", err)
	}
	room, _ := rooms.ByCorrelation(snap.Rooms, id)

	for _, recipient := range recipients {
		if _, err := e.Share(ctx, room.Path, recipient); err != nil {
			return room, fmt.Errorf("start conversation: share with %s: %w", recipient, err)
		}
	}

	if _, err := e.await(ctx, e.JoinedRequest(room.Path)); err != nil {
		return room, fmt.Errorf("start conversation: %w", err)
	}
	return room, nil
}

// checkBlocked refuses messages into direct rooms where either side has
// blocked the other. Without profiles nothing is blocked.
func (e *Engine) checkBlocked(path ledger.RecordPath) error {
	if e.profiles == nil {
		return nil
	}
	for _, r := range e.state.Current().Rooms {
		if r.Path != path {
			continue
		}
		if rooms.BlockedBetween(r, e.profiles) {
			return newBlockedError(path, r.Counterpart(e.profiles.Me()))
		}
		return nil
	}
	return nil
}
