// Package engine keeps a local view of one identity's rooms in step with
// the ledger and turns user requests into ledger writes.
//
// ARCHITECTURE:
//
// Two tasks share the local cache:
//
// Request loop: drains the request queue every tick (or when signaled) and
// hands each request to the RequestHandler, which claims ledger slots with
// the claim-or-advance loop. It reads cursors from the cache but never
// writes it. After every successful claim it wakes the synchronizer.
//
// Sync loop: runs Synchronizer.Pass immediately, then every interval or
// when woken. A pass links inbound shares, discovers new rooms and
// messages, publishes the room list to State when something changed, and
// persists the cache.
//
// SLOTS:
//
// Records live at (parent, slot). Writers race for slots; the first claim
// wins and the others advance. Discovery walks slots from a cursor until
// the first empty one, so every room's message list is a gap-free prefix
// of its slots in discovery order, never re-sorted by timestamp.
//
// CONCURRENCY:
//
// cache.Shared guards the committed cache. The synchronizer works on a copy
// and commits it when a pass succeeds; a failed pass leaves nothing behind.
package engine
