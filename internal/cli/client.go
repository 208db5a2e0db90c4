package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/config"
	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// client is an engine with the stores it owns.
type client struct {
	cfg      *config.Config
	store    *ledger.Store
	blobs    cache.BlobStore
	closers  []func() error
	engine   *engine.Engine
	profiles *rooms.Directory
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Identity != "" {
		cfg.Identity = opts.Identity
	}
	if opts.Ledger != "" {
		cfg.Ledger = opts.Ledger
	}
	if opts.Cache != "" {
		cfg.Cache = opts.Cache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openClient opens the ledger and cache described by opts and builds an
// engine on them. Callers must Close the client.
func openClient(ctx context.Context, opts *RootOptions) (*client, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	c := &client{cfg: cfg, profiles: cfg.Directory()}

	var storeOpts []ledger.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, ledger.WithClock(opts.Clock))
	}
	slog.Debug("opening ledger", "path", cfg.Ledger)
	c.store, err = ledger.Open(cfg.Ledger, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	c.closers = append(c.closers, c.store.Close)

	if cfg.Cache != "" {
		blobs, err := cache.OpenSQLite(cfg.Cache)
		if err != nil {
			c.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
		}
		c.blobs = blobs
		c.closers = append(c.closers, blobs.Close)
	} else {
		slog.Debug("no cache file configured, keeping cache in memory")
		c.blobs = cache.NewMemoryBlobStore()
	}

	session, err := c.store.Session(ledger.Identity(cfg.Identity))
	if err != nil {
		c.Close()
		return nil, WrapExitError(ExitCommandError, "invalid identity", err)
	}

	engineOpts := cfg.EngineOptions()
	if opts.Clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(opts.Clock))
	}
	if opts.Correlations != nil {
		engineOpts = append(engineOpts, engine.WithCorrelationGenerator(opts.Correlations))
	}
	c.engine, err = engine.New(ctx, session, c.blobs, engineOpts...)
	if err != nil {
		c.Close()
		return nil, WrapExitError(ExitFailure, "failed to start engine", err)
	}
	return c, nil
}

// Close releases the stores in reverse order of opening.
func (c *client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Error("error closing store", "error", err)
		}
	}
	c.closers = nil
}

// sync runs one pass and returns the resulting snapshot.
func (c *client) sync(ctx context.Context) (engine.Snapshot, error) {
	if _, err := c.engine.SyncOnce(ctx); err != nil {
		return engine.Snapshot{}, err
	}
	return c.engine.State().Current(), nil
}

// findRoom resolves a room by ID or full path in snap.
func (c *client) findRoom(snap engine.Snapshot, ref string) (rooms.Room, error) {
	for _, r := range snap.Rooms {
		if r.ID == ref || string(r.Path) == ref {
			return r, nil
		}
	}
	return rooms.Room{}, &engine.ServiceError{
		Code:    engine.ErrCodeUnknownRoom,
		Message: fmt.Sprintf("no room %q for %s", ref, c.cfg.Identity),
	}
}

func (c *client) me() ledger.Identity {
	return ledger.Identity(c.cfg.Identity)
}
