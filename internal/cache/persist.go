package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Load reads the cache stored under key. A missing blob yields New(). So
// does a blob that cannot be decoded: it is logged and discarded, and the
// next sync rebuilds it from the ledger. Only store errors are returned.
func Load(ctx context.Context, store BlobStore, key string) (*LocalCache, error) {
	data, ok, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	if !ok {
		slog.Debug("no cached state, starting fresh", "key", key)
		return New(), nil
	}

	c, err := Decode(data)
	if err != nil {
		slog.Warn("discarding unreadable cache", "key", key, "error", err)
		return New(), nil
	}
	return c, nil
}

// Save encodes c and stores it under key.
func Save(ctx context.Context, store BlobStore, key string, c *LocalCache) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}
