// Package store provides SQLite-backed durable storage for the proxy's
// keyspace.
//
// The store models a hash keyspace: each key owns a set of field/value pairs,
// and a key exists while it has at least one field. On top of that it offers
// prefix enumeration (used by restore), integer counters (used by id
// allocation) and the downstream operations queue.
//
// # Atomic Batches
//
// Update runs a function inside one SQLite transaction. Every downstream
// operation and its bookkeeping writes are committed together or not at all,
// so a crash never leaves a fingerprint without its forward attributes.
//
// # Deterministic Reads
//
// Every multi-row query orders by key (and field) with BINARY collation, so
// restore and snapshots are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
