package testutil

import (
	"context"
	"sync"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/vid"
)

// SequentialAllocator hands out ids from one in-memory counter shared by all
// types, so tests can predict every id.
//
// The first id has counter 1. Encoding follows package vid, so ids decode to
// the right type.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialAllocator struct {
	mu       sync.Mutex
	next     uint64
	limit    uint64
	calls    int
	released []model.ObjectID
}

// NewSequentialAllocator creates an allocator with no limit.
func NewSequentialAllocator() *SequentialAllocator {
	return &SequentialAllocator{}
}

// NewLimitedAllocator creates an allocator that fails with vid.ErrExhausted
// after limit allocations.
func NewLimitedAllocator(limit uint64) *SequentialAllocator {
	return &SequentialAllocator{limit: limit}
}

// Allocate returns the next id for t.
func (a *SequentialAllocator) Allocate(_ context.Context, t model.ObjectType, _ model.ObjectID) (model.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	info, err := model.LookupType(t)
	if err != nil {
		return model.NullObjectID, err
	}
	if a.limit > 0 && a.next >= a.limit {
		return model.NullObjectID, vid.ErrExhausted
	}
	a.next++
	return vid.Encode(0, info.Code, a.next), nil
}

// ReleaseOps records id and stages no writes.
func (a *SequentialAllocator) ReleaseOps(id model.ObjectID) []producer.AuxOp {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, id)
	return nil
}

// Calls returns how many times Allocate was called.
func (a *SequentialAllocator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Released returns the released ids in order.
func (a *SequentialAllocator) Released() []model.ObjectID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.ObjectID(nil), a.released...)
}

// Reset restarts the counter for test reuse.
func (a *SequentialAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = 0
	a.calls = 0
	a.released = nil
}
