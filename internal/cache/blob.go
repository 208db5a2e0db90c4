package cache

import (
	"context"
	"slices"
	"sync"
)

// BlobStore is durable key/value storage for the encoded cache.
type BlobStore interface {
	// Load returns the blob stored under key. The boolean is false when
	// nothing is stored.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryBlobStore keeps blobs in memory. Used by tests and one-shot runs.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

// NewMemoryBlobStore returns an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

func (m *MemoryBlobStore) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = slices.Clone(data)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryBlobStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
