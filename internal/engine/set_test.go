package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/testutil"
)

var port10 = model.ObjectKey{Type: model.TypePort, ID: "0x10"}

func portSeed() map[string]map[string]string {
	return map[string]map[string]string{
		"ATTR2OID_speed=10000": {"PORT:0x10": "NULL"},
		"OID2ATTR_PORT:0x10":   {"speed": "10000"},
	}
}

func TestSet_MutatesFingerprints(t *testing.T) {
	f := newFixture(t, portSeed())

	require.NoError(t, f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, ""))

	assert.False(t, f.exists(t, "ATTR2OID_speed=10000"))
	assert.Equal(t, map[string]string{"PORT:0x10": "NULL"}, f.hgetall(t, "DEFAULT_ATTR2OID_speed=10000"))
	assert.Equal(t, map[string]string{"PORT:0x10": "NULL"}, f.hgetall(t, "ATTR2OID_speed=25000"))
	assert.Equal(t, map[string]string{"speed": "25000"}, f.hgetall(t, "OID2ATTR_PORT:0x10"))
	assert.Equal(t, map[string]string{"speed": "10000"}, f.hgetall(t, "DEFAULT_OID2ATTR_PORT:0x10"))
	assert.Equal(t, map[string]string{"speed": "25000"}, f.hgetall(t, "ASIC_STATE:PORT:0x10"))

	assert.Empty(t, f.engine.Repository().Verify())
}

func TestSet_Idempotent(t *testing.T) {
	f := newFixture(t, portSeed())
	fv := model.FieldValue{Field: "speed", Value: "25000"}

	require.NoError(t, f.engine.Set(testCtx(t), port10, fv, ""))
	before := f.snapshot(t)

	require.NoError(t, f.engine.Set(testCtx(t), port10, fv, ""))
	f.restart(t)
	require.NoError(t, f.engine.Set(testCtx(t), port10, fv, ""))

	assert.Equal(t, before, f.snapshot(t))
	assert.Empty(t, f.writer.Ops())
}

func TestSet_SecondChangeKeepsFirstDefault(t *testing.T) {
	f := newFixture(t, portSeed())

	require.NoError(t, f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, ""))
	require.NoError(t, f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "40000"}, ""))

	assert.Equal(t, map[string]string{"speed": "10000"}, f.hgetall(t, "DEFAULT_OID2ATTR_PORT:0x10"))
	assert.True(t, f.exists(t, "DEFAULT_ATTR2OID_speed=10000"))
	assert.False(t, f.exists(t, "ATTR2OID_speed=25000"))
	assert.True(t, f.exists(t, "ATTR2OID_speed=40000"))
}

func TestSet_ReplayedCreateResolvesThroughDefault(t *testing.T) {
	f := newFixture(t, nil)
	req := CreateRequest{Type: model.TypePort, Attrs: fvs("speed", "10000")}

	id, err := f.engine.Create(testCtx(t), req)
	require.NoError(t, err)
	k := model.KeyFor(model.TypePort, id)
	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "speed", Value: "25000"}, ""))

	f.restart(t)
	again, err := f.engine.Create(testCtx(t), req)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, f.writer.Ops())
}

func TestSet_OwnerScopeFromRegistry(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeVlan, Attrs: fvs("vlan_id", "100"), Owner: "tenantA"})
	require.NoError(t, err)
	k := model.KeyFor(model.TypeVlan, id)

	// No owner passed: the recorded one applies.
	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "learn", Value: "false"}, ""))
	assert.True(t, f.exists(t, "ATTR2OID_tenantAlearn=false|vlan_id=100"))
	// Default namespace is never owner scoped.
	assert.True(t, f.exists(t, "DEFAULT_ATTR2OID_vlan_id=100"))

	// Matching owner is accepted.
	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "learn", Value: "true"}, "tenantA"))

	// A different owner is rejected and nothing changes.
	before := f.snapshot(t)
	err = f.engine.Set(testCtx(t), k, model.FieldValue{Field: "learn", Value: "false"}, "tenantB")
	assert.True(t, IsInvalidParameter(err))
	assert.Equal(t, before, f.snapshot(t))
}

func TestSet_UnresolvableFingerprint(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"OID2ATTR_PORT:0x10": {"speed": "10000"},
	})

	err := f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, "")
	require.Error(t, err)
	assert.True(t, IsItemNotFound(err))
	assert.Empty(t, f.writer.Ops())
	assert.Equal(t, map[string]string{"speed": "10000"}, f.hgetall(t, "OID2ATTR_PORT:0x10"))
}

func TestSet_FingerprintOfAnotherObject(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ATTR2OID_speed=10000": {"PORT:0x11": "NULL"},
		"OID2ATTR_PORT:0x10":   {"speed": "10000"},
		"OID2ATTR_PORT:0x11":   {"speed": "10000"},
	})

	err := f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, "")
	assert.True(t, IsItemNotFound(err))
}

func TestSet_AmbiguousFingerprint(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ATTR2OID_speed=10000": {"PORT:0x10": "NULL", "PORT:0x11": "NULL"},
		"OID2ATTR_PORT:0x10":   {"speed": "10000"},
		"OID2ATTR_PORT:0x11":   {"speed": "10000"},
	})

	err := f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, "")
	assert.True(t, IsItemNotFound(err))

	// Create resolves deterministically to the lowest key.
	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypePort, Attrs: fvs("speed", "10000")})
	require.NoError(t, err)
	assert.Equal(t, model.ObjectID(0x10), id)
}

func TestSet_HardwareDefaultObject(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		"ASIC_STATE:QUEUE:0x15": {"type": "unicast"},
	})
	q := model.ObjectKey{Type: model.TypeQueue, ID: "0x15"}

	require.NoError(t, f.engine.Set(testCtx(t), q, model.FieldValue{Field: "scheduler", Value: "0x1"}, ""))

	assert.Equal(t, map[string]string{"scheduler": "0x1"}, f.hgetall(t, "DEFAULT_OBJ_QUEUE:0x15"))
	assert.Equal(t, map[string]string{"scheduler": "0x1"}, f.hgetall(t, "OID2ATTR_QUEUE:0x15"))
	assert.False(t, f.exists(t, "ATTR2OID_scheduler=0x1"))

	// Later changes never rewrite an observed default.
	require.NoError(t, f.engine.Set(testCtx(t), q, model.FieldValue{Field: "scheduler", Value: "0x2"}, ""))
	require.NoError(t, f.engine.Set(testCtx(t), q, model.FieldValue{Field: "weight", Value: "5"}, ""))

	assert.Equal(t, map[string]string{"scheduler": "0x1", "weight": "5"}, f.hgetall(t, "DEFAULT_OBJ_QUEUE:0x15"))
	assert.Equal(t, map[string]string{"scheduler": "0x2", "weight": "5"}, f.hgetall(t, "OID2ATTR_QUEUE:0x15"))
	assert.Equal(t, map[string]string{"type": "unicast", "scheduler": "0x2", "weight": "5"}, f.hgetall(t, "ASIC_STATE:QUEUE:0x15"))

	f.restart(t)
	require.NoError(t, f.engine.Set(testCtx(t), q, model.FieldValue{Field: "scheduler", Value: "0x2"}, ""))
	assert.Empty(t, f.writer.Ops())
	assert.Empty(t, f.engine.Repository().Verify())
}

func TestSet_StructuredEntrySkipsFingerprints(t *testing.T) {
	f := newFixture(t, nil)
	key := model.ObjectKey{Type: model.TypeFDBEntry, ID: `{"mac":"00:11:22:33:44:55","bvid":"0x1"}`}

	require.NoError(t, f.engine.CreateEntry(testCtx(t), key, fvs("type", "STATIC")))
	require.NoError(t, f.engine.Set(testCtx(t), key, model.FieldValue{Field: "type", Value: "DYNAMIC"}, ""))

	assert.Equal(t, map[string]string{"type": "DYNAMIC"}, f.hgetall(t, "OID2ATTR_"+key.String()))
	keys, err := f.store.Keys(testCtx(t), "ATTR2OID_")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.False(t, f.exists(t, "DEFAULT_OBJ_"+key.String()))
}

func TestSet_Switch(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch, Attrs: fvs("src_mac", "00:00:00:00:00:01")})
	require.NoError(t, err)
	k := model.KeyFor(model.TypeSwitch, id)
	f.writer.Reset()

	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "src_mac", Value: "00:00:00:00:00:01"}, ""))
	assert.Empty(t, f.writer.Ops())

	require.NoError(t, f.engine.Set(testCtx(t), k, model.FieldValue{Field: "src_mac", Value: "00:00:00:00:00:02"}, ""))
	assert.Len(t, f.writer.Ops(), 1)
	v, ok, err := f.store.HGet(testCtx(t), "RESTORE_SWITCH", "src_mac")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "00:00:00:00:00:02", v)
}

func TestSet_SwitchReservedField(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch, Attrs: fvs("init_switch", "true")})
	require.NoError(t, err)
	k := model.KeyFor(model.TypeSwitch, id)
	f.writer.Reset()

	err = f.engine.Set(testCtx(t), k, model.FieldValue{Field: "switch_oid", Value: "bogus"}, "")
	assert.True(t, IsInvalidParameter(err))
	assert.ErrorIs(t, err, ErrReservedSwitchField)
	assert.Empty(t, f.writer.Ops())

	_, err = f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch, Attrs: fvs("switch_oid", "bogus")})
	assert.True(t, IsInvalidParameter(err))

	f.restart(t)
	again, err := f.engine.Create(testCtx(t), CreateRequest{Type: model.TypeSwitch})
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestSet_WriterFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, portSeed())
	before := f.snapshot(t)

	f.writer.FailNext(1)
	err := f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, "")
	require.ErrorIs(t, err, testutil.ErrInjected)

	assert.Equal(t, before, f.snapshot(t))
	attrs, _ := f.engine.Repository().Forward(port10)
	assert.Equal(t, model.AttributeSet{"speed": "10000"}, attrs)

	// The retry applies normally.
	require.NoError(t, f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "speed", Value: "25000"}, ""))
	assert.Empty(t, f.engine.Repository().Verify())
}

func TestSet_InvalidParameters(t *testing.T) {
	f := newFixture(t, portSeed())

	err := f.engine.Set(testCtx(t), port10, model.FieldValue{Field: "", Value: "1"}, "")
	assert.True(t, IsInvalidParameter(err))

	err = f.engine.Set(testCtx(t), model.ObjectKey{Type: "BOGUS", ID: "0x1"}, model.FieldValue{Field: "a", Value: "1"}, "")
	assert.True(t, IsInvalidParameter(err))
}
