// Package engine implements the idempotent object lifecycle: create, set and
// remove calls that may be replayed any number of times after a warm restart
// without reaching the hardware twice.
//
// ARCHITECTURE:
//
// Single Writer:
// Callers invoke lifecycle calls serially. The engine does no locking of its
// own; at most one call may be in flight.
//
// Per-call Flow:
//  1. Decide from the restored bookkeeping whether the call was already applied
//  2. If so, return success without writing anything (replay-skip)
//  3. Otherwise stage the bookkeeping changes in a repo.Tx
//  4. Hand the operation plus the staged writes to the Writer as one batch
//  5. Commit the Tx to the in-memory tables only after the Writer accepted it
//
// A Writer failure therefore leaves memory, store and hardware unchanged.
//
// Owner Scope:
// The owner tag is an explicit argument of Create and Set. Inside a call it
// travels in an ownerScope value that dies with the call; there is no
// process-wide owner.
//
// ERRORS:
//
// Calls fail with *StatusError carrying INSUFFICIENT_RESOURCES,
// ITEM_NOT_FOUND or INVALID_PARAMETER, or with a wrapped store error.
// Nothing is retried.
package engine
