// Package cache holds the engine's durable local view of the ledger: how far
// room discovery has progressed, the rooms found so far with their messages
// and per-room discovery cursors, and the time of the last share check.
//
// The cache is rebuilt from the ledger when missing or corrupt, so losing it
// only costs a full re-scan. It is persisted as a single CBOR blob through a
// BlobStore.
//
// # Concurrency
//
// Shared guards the committed cache. The synchronizer is its only writer: it
// works on a Clone and Commits the result when a pass succeeds. The request
// handler only reads discovery cursors.
package cache
