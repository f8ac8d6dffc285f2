// Package vid allocates virtual object ids.
//
// An id packs three parts:
//
//	bits 63..56  switch index
//	bits 55..48  object type code
//	bits 47..0   per-type counter
//
// Counters live in the store, so ids stay unique across restarts. The switch
// index of a non-switch object is taken from the switch id it is created on.
package vid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/store"
)

const (
	counterBits = 48
	typeShift   = 48
	switchShift = 56

	// MaxCounter is the largest per-type counter an id can carry.
	MaxCounter = 1<<counterBits - 1

	// MaxSwitches is the number of distinct switch indices.
	MaxSwitches = 256

	fieldNextSwitch = "next"
	freePrefix      = "free:"
)

var (
	// ErrExhausted is returned when no id is left for the requested type.
	ErrExhausted = errors.New("virtual id space exhausted")

	// ErrInvalidSwitch is returned when the switch id does not name a switch.
	ErrInvalidSwitch = errors.New("invalid switch id")
)

// Encode packs the id parts.
func Encode(switchIndex uint8, code uint8, counter uint64) model.ObjectID {
	return model.ObjectID(uint64(switchIndex)<<switchShift | uint64(code)<<typeShift | counter&MaxCounter)
}

// TypeOf decodes the object type of id.
func TypeOf(id model.ObjectID) (model.ObjectType, bool) {
	return model.TypeByCode(uint8(uint64(id) >> typeShift))
}

// SwitchIndexOf decodes the switch index of id.
func SwitchIndexOf(id model.ObjectID) uint8 {
	return uint8(uint64(id) >> switchShift)
}

// StoreAllocator keeps its counters in the store under VIDCOUNTER and
// SWITCH_INDEX.
type StoreAllocator struct {
	store      *store.Store
	maxPerType uint64
}

// Option configures a StoreAllocator.
type Option func(*StoreAllocator)

// WithMaxPerType caps the counter of every type. Values above MaxCounter are
// clamped.
func WithMaxPerType(n uint64) Option {
	return func(a *StoreAllocator) {
		if n > MaxCounter {
			n = MaxCounter
		}
		a.maxPerType = n
	}
}

// NewStoreAllocator creates an allocator backed by s.
func NewStoreAllocator(s *store.Store, opts ...Option) *StoreAllocator {
	a := &StoreAllocator{store: s, maxPerType: MaxCounter}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a fresh id for an object of type t on switchID.
// Allocating a SWITCH ignores switchID and takes a new switch index.
func (a *StoreAllocator) Allocate(ctx context.Context, t model.ObjectType, switchID model.ObjectID) (model.ObjectID, error) {
	info, err := model.LookupType(t)
	if err != nil {
		return model.NullObjectID, err
	}

	if t.IsSwitch() {
		idx, err := a.allocateSwitchIndex(ctx)
		if err != nil {
			return model.NullObjectID, err
		}
		return Encode(idx, info.Code, 0), nil
	}

	var idx uint8
	if switchID != model.NullObjectID {
		if st, ok := TypeOf(switchID); !ok || !st.IsSwitch() {
			return model.NullObjectID, fmt.Errorf("%w: %s", ErrInvalidSwitch, switchID)
		}
		idx = SwitchIndexOf(switchID)
	}

	n, err := a.store.Incr(ctx, keys.VIDCounter, strconv.Itoa(int(info.Code)))
	if err != nil {
		return model.NullObjectID, fmt.Errorf("allocate %s: %w", t, err)
	}
	if uint64(n) > a.maxPerType {
		return model.NullObjectID, fmt.Errorf("allocate %s: %w", t, ErrExhausted)
	}
	return Encode(idx, info.Code, uint64(n)), nil
}

// ReleaseOps returns the store writes that put a switch index back on the
// free list. Other ids release nothing: per-type counters never move
// backwards. The writes are meant to be committed with the switch removal.
func (a *StoreAllocator) ReleaseOps(id model.ObjectID) []producer.AuxOp {
	t, ok := TypeOf(id)
	if !ok || !t.IsSwitch() {
		return nil
	}
	return []producer.AuxOp{producer.HSet(keys.SwitchIndex, freeField(id), "1")}
}

func freeField(id model.ObjectID) string {
	return freePrefix + strconv.Itoa(int(SwitchIndexOf(id)))
}

// allocateSwitchIndex reuses the lowest released index, else takes the next.
func (a *StoreAllocator) allocateSwitchIndex(ctx context.Context) (uint8, error) {
	var idx uint8
	err := a.store.Update(ctx, func(tx *store.Tx) error {
		fields, err := tx.HGetAll(keys.SwitchIndex)
		if err != nil {
			return err
		}

		var free []int
		for f := range fields {
			if n, ok := strings.CutPrefix(f, freePrefix); ok {
				if i, err := strconv.Atoi(n); err == nil {
					free = append(free, i)
				}
			}
		}
		if len(free) > 0 {
			sort.Ints(free)
			idx = uint8(free[0])
			return tx.HDel(keys.SwitchIndex, freePrefix+strconv.Itoa(free[0]))
		}

		n, err := tx.Incr(keys.SwitchIndex, fieldNextSwitch)
		if err != nil {
			return err
		}
		// Index 0 is reserved for objects created without a switch.
		if n >= MaxSwitches {
			return ErrExhausted
		}
		idx = uint8(n)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("allocate switch index: %w", err)
	}
	return idx, nil
}
