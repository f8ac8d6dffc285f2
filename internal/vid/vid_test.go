package vid

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/store"
)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEncodeDecode(t *testing.T) {
	id := Encode(1, 38, 5)
	assert.Equal(t, model.ObjectID(0x0126000000000005), id)

	typ, ok := TypeOf(id)
	assert.True(t, ok)
	assert.Equal(t, model.TypeVlan, typ)
	assert.Equal(t, uint8(1), SwitchIndexOf(id))
}

func TestAllocate_SwitchThenObjects(t *testing.T) {
	a := NewStoreAllocator(createTestStore(t))
	ctx := testCtx(t)

	sw, err := a.Allocate(ctx, model.TypeSwitch, model.NullObjectID)
	require.NoError(t, err)
	assert.Equal(t, Encode(1, 33, 0), sw)

	v1, err := a.Allocate(ctx, model.TypeVlan, sw)
	require.NoError(t, err)
	v2, err := a.Allocate(ctx, model.TypeVlan, sw)
	require.NoError(t, err)
	p1, err := a.Allocate(ctx, model.TypePort, sw)
	require.NoError(t, err)

	assert.Equal(t, Encode(1, 38, 1), v1)
	assert.Equal(t, Encode(1, 38, 2), v2)
	assert.Equal(t, Encode(1, 1, 1), p1)
}

func TestAllocate_CountersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := testCtx(t)

	s1, err := store.Open(path)
	require.NoError(t, err)
	first, err := NewStoreAllocator(s1).Allocate(ctx, model.TypeVlan, model.NullObjectID)
	require.NoError(t, err)
	s1.Close()

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()
	second, err := NewStoreAllocator(s2).Allocate(ctx, model.TypeVlan, model.NullObjectID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, Encode(0, 38, 2), second)
}

func TestAllocate_Exhausted(t *testing.T) {
	a := NewStoreAllocator(createTestStore(t), WithMaxPerType(2))
	ctx := testCtx(t)

	for i := 0; i < 2; i++ {
		_, err := a.Allocate(ctx, model.TypePort, model.NullObjectID)
		require.NoError(t, err)
	}
	_, err := a.Allocate(ctx, model.TypePort, model.NullObjectID)
	assert.ErrorIs(t, err, ErrExhausted)

	// Other types have their own counter.
	_, err = a.Allocate(ctx, model.TypeVlan, model.NullObjectID)
	assert.NoError(t, err)
}

func TestAllocate_RejectsNonSwitchParent(t *testing.T) {
	a := NewStoreAllocator(createTestStore(t))

	_, err := a.Allocate(testCtx(t), model.TypeVlan, Encode(0, 38, 1))
	assert.ErrorIs(t, err, ErrInvalidSwitch)

	_, err = a.Allocate(testCtx(t), "BOGUS", model.NullObjectID)
	assert.ErrorIs(t, err, model.ErrUnknownObjectType)
}

func TestRelease_ReusesSwitchIndex(t *testing.T) {
	a := NewStoreAllocator(createTestStore(t))
	ctx := testCtx(t)

	sw1, err := a.Allocate(ctx, model.TypeSwitch, model.NullObjectID)
	require.NoError(t, err)
	sw2, err := a.Allocate(ctx, model.TypeSwitch, model.NullObjectID)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), SwitchIndexOf(sw2))

	release(t, a.store, a.ReleaseOps(sw1))
	sw3, err := a.Allocate(ctx, model.TypeSwitch, model.NullObjectID)
	require.NoError(t, err)
	assert.Equal(t, sw1, sw3)

	// Releasing a non-switch id is a no-op.
	assert.Empty(t, a.ReleaseOps(Encode(1, 38, 1)))
}

// release commits release writes the way the producer does.
func release(t *testing.T, s *store.Store, ops []producer.AuxOp) {
	t.Helper()
	for _, op := range ops {
		require.NoError(t, s.HMSet(testCtx(t), op.Key, op.Fields))
	}
}

func TestReleaseOps(t *testing.T) {
	a := NewStoreAllocator(createTestStore(t))

	sw := Encode(3, 33, 0)
	assert.Equal(t, []producer.AuxOp{producer.HSet("SWITCH_INDEX", "free:3", "1")}, a.ReleaseOps(sw))
	assert.Empty(t, a.ReleaseOps(Encode(3, 1, 7)))
}
