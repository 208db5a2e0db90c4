// Package rooms defines the room and message values shared by the request
// handler and the synchronizer, the record payload encoding, and read-only
// views used by front ends (inbox ordering, unread counts, titles).
//
// Messages in a room are ordered by the ledger slot they were discovered
// at, never by timestamp. Two replicas racing to append may see their own
// sends interleaved differently; the slot order is authoritative.
//
// A message whose text is JoinedText is a system event recording that a
// participant joined the room. It carries no content, is created already
// read, and front ends filter it with Visible.
package rooms
