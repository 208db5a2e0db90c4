// Package ledger provides the record store the room engine synchronizes
// against: an append-only, path-addressed store of protocol-tagged records
// partitioned by identity.
//
// The store offers these primitives:
//   - CreatePrivate: claim slot i under a parent path with a payload
//   - CreatePointer: claim slot i with a reference to another path
//   - Discover: look at slot i under a parent, filtered by protocol
//   - ReadPrivate: read a record's payload
//   - Share / Receive: grant another identity access to a path, and list
//     grants addressed to this identity since a point in time
//
// # Slots
//
// Every record lives at (parent, slot). Claims use
// INSERT ... ON CONFLICT(parent, slot) DO NOTHING, so the first writer of a
// slot wins and every later writer observes Occupied and must advance.
// Record paths are derived from (parent, slot), so a slot's path is the same
// no matter which writer claimed it.
//
// # Identities and access
//
// An identity's root is /<identity>. An identity may read and write under
// paths it owns (the first path segment) or under paths it has been granted.
// Pointers let a granted path appear among the recipient's own root slots.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package ledger
