// Package producer is the downstream writer: it accepts an object operation
// together with the bookkeeping writes that must accompany it, and commits
// both atomically.
//
// For every accepted Operation the producer, in one SQLite transaction:
//  1. applies the auxiliary writes in order
//  2. mirrors the operation into ASIC_STATE:<object key>
//  3. appends the operation to the downstream queue, stamped with the epoch
//
// The epoch identifies the producing process. It is a UUIDv7 by default so
// queue entries from successive warm restarts sort by start time.
package producer
