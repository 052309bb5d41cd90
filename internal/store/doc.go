// Package store composes identity resolution, chronicle merging and the
// canceled-stamp registry into a running store.
//
// The store exposes:
//   - Identity: uuid and public id resolution to nids
//   - Reads: chronicle bytes by nid
//   - Writes: merge-write, the only path by which stored bytes change
//   - Traversal: full scans (sequential and parallel) and category indices
//   - Search: delegated to a search.Searcher
//   - Write sequence: a counter that increases on every successful write
//
// # Backends
//
// Bytes live in a Backend. Two are provided:
//   - MemoryBackend: maps guarded by striped per-nid locks
//   - SQLiteBackend: a single SQLite file in WAL mode
//
// A Backend serializes Update per nid, so a reader never observes a
// half-merged chronicle. Across distinct nids there is no ordering.
//
// # Lifecycle
//
// A Store is created stopped. Start opens the backend through its Opener
// and seeds the nid generator from the highest persisted nid. Stop cancels
// in-flight operations, waits for them to return and closes the backend.
// Start after Stop reopens it. Close stops the store permanently.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer
package store
