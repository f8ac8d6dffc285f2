// Package repo owns the idempotency bookkeeping: the fingerprint index, the
// object attribute store, the owner registry and the hardware-default ledger.
//
// The four logical tables are held in memory and mirrored in the persisted
// keyspace. Reads are served from memory. Writes are staged in a Tx, which
// yields the ordered keyspace writes to hand to the downstream writer; the
// in-memory tables change only when the caller commits the Tx after the
// writer has accepted the batch. A failed write therefore leaves memory and
// store in agreement.
//
// Restore rebuilds the tables from the keyspace and must run once before the
// repository is used.
package repo
