package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/testutil"
	"github.com/roach88/idemproxy/internal/vid"
)

func TestRemove_UnknownObjectIsSuccessWithoutWrites(t *testing.T) {
	f := newFixture(t, nil)

	err := f.engine.Remove(testCtx(t), model.ObjectKey{Type: model.TypeVlan, ID: "0x999"})
	require.NoError(t, err)

	assert.Empty(t, f.writer.Ops())
	assert.Empty(t, f.snapshot(t))
}

func TestRemove_UntrackedHardwareObjectIsForwarded(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ASIC_STATE:VLAN:0x1": {"vlan_id": "1"},
	})

	require.NoError(t, f.engine.Remove(testCtx(t), model.ObjectKey{Type: model.TypeVlan, ID: "0x1"}))

	ops := f.writer.Ops()
	require.Len(t, ops, 1)
	assert.Empty(t, ops[0].Aux)
	assert.False(t, f.exists(t, "ASIC_STATE:VLAN:0x1"))
}

func TestRemove_CreatedObjectClearsEverything(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypePort, Attrs: fvs("speed", "10000"), Owner: "orch"})
	require.NoError(t, err)
	k := model.KeyFor(model.TypePort, id)
	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "speed", Value: "25000"}, ""))

	require.NoError(t, f.engine.Remove(testCtx(t), k))

	assert.Empty(t, f.snapshot(t))
	assert.Empty(t, f.engine.Repository().Objects())

	// Replaying the remove, before and after restart, is a no-op.
	f.writer.Reset()
	require.NoError(t, f.engine.Remove(testCtx(t), k))
	f.restart(t)
	require.NoError(t, f.engine.Remove(testCtx(t), k))
	assert.Empty(t, f.writer.Ops())
}

func TestRemove_LeavesSharedFingerprintsOfOtherTypes(t *testing.T) {
	f := newFixture(t, nil)

	vr, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeVirtualRouter})
	require.NoError(t, err)
	_, err = f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeHostifTrapGroup})
	require.NoError(t, err)

	require.NoError(t, f.engine.Remove(testCtx(t), model.KeyFor(model.TypeVirtualRouter, vr)))
	assert.Len(t, f.hgetall(t, "ATTR2OID_NULL=NULL"), 1)
	assert.Empty(t, f.engine.Repository().Verify())
}

func TestRemove_MissingCurrentFingerprint(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"OID2ATTR_PORT:0x10": {"speed": "10000"},
	})
	before := f.snapshot(t)

	err := f.engine.Remove(testCtx(t), port10)
	assert.True(t, IsItemNotFound(err))
	assert.Equal(t, before, f.snapshot(t))
}

func TestRemove_MissingDefaultFingerprint(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ATTR2OID_speed=25000":       {"PORT:0x10": "NULL"},
		"OID2ATTR_PORT:0x10":         {"speed": "25000"},
		"DEFAULT_OID2ATTR_PORT:0x10": {"speed": "10000"},
	})

	err := f.engine.Remove(testCtx(t), port10)
	assert.True(t, IsItemNotFound(err))
	assert.True(t, f.exists(t, "ATTR2OID_speed=25000"))
}

func TestRemove_HardwareDefaultObject(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ASIC_STATE:QUEUE:0x15": {"type": "unicast"},
	})
	q := model.ObjectKey{Type: model.TypeQueue, ID: "0x15"}
	require.NoError(t, f.engine.Set(testCtx(t), q, model.FieldValue{Field: "weight", Value: "5"}, ""))

	require.NoError(t, f.engine.Remove(testCtx(t), q))
	assert.Empty(t, f.snapshot(t))
}

func TestRemove_StructuredEntry(t *testing.T) {
	f := newFixture(t, nil)
	key := model.ObjectKey{Type: model.TypeNeighborEntry, ID: `{"ip":"10.0.0.1","rif":"0x6000000000001"}`}

	require.NoError(t, f.engine.CreateEntry(testCtx(t), key, fvs("dst_mac", "00:11:22:33:44:55")))
	require.NoError(t, f.engine.Remove(testCtx(t), key))
	assert.Empty(t, f.snapshot(t))
}

func TestRemove_SwitchReleasesIndex(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch})
	require.NoError(t, err)
	k := model.KeyFor(model.TypeSwitch, id)

	require.NoError(t, f.engine.Remove(testCtx(t), k))
	assert.False(t, f.exists(t, "RESTORE_SWITCH"))
	assert.Equal(t, []model.ObjectID{id}, f.alloc.Released())

	// A new switch can be created afterwards.
	next, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch})
	require.NoError(t, err)
	assert.NotEqual(t, model.NullObjectID, next)
}

func TestRemove_SwitchReleaseCommitsWithRemoval(t *testing.T) {
	f := newFixture(t, nil)
	f.engine = New(f.engine.Repository(), f.writer, f.store, vid.NewStoreAllocator(f.store))

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch})
	require.NoError(t, err)
	k := model.KeyFor(model.TypeSwitch, id)

	f.writer.FailNext(1)
	err = f.engine.Remove(testCtx(t), k)
	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.True(t, f.exists(t, "RESTORE_SWITCH"))
	assert.NotContains(t, f.hgetall(t, "SWITCH_INDEX"), "free:1")

	f.writer.Reset()
	require.NoError(t, f.engine.Remove(testCtx(t), k))
	ops := f.writer.Ops()
	require.Len(t, ops, 1)
	assert.Contains(t, ops[0].Aux, producer.HSet("SWITCH_INDEX", "free:1", "1"))
	assert.Equal(t, "1", f.hgetall(t, "SWITCH_INDEX")["free:1"])

	next, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch})
	require.NoError(t, err)
	assert.Equal(t, id, next)
}
