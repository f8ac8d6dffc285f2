package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeysNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b":   "<x>",
		"a":   int64(1),
		"key": ObjectKey{Type: TypeVlan, ID: "0x1"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":"<x>","key":"VLAN:0x1"}`, string(got))
}

func TestMarshalCanonical_AttributeSet(t *testing.T) {
	got, err := MarshalCanonical(AttributeSet{"speed": "25000", "mtu": "9100"})
	require.NoError(t, err)
	assert.Equal(t, `{"mtu":"9100","speed":"25000"}`, string(got))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	got, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"name": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"caf\u00e9\"}", string(got))

	// The attribute set itself is left untouched.
	s := AttributeSet{"name": "cafe\u0301"}
	_, err = MarshalCanonical(s)
	require.NoError(t, err)
	assert.Equal(t, "cafe\u0301", s["name"])
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)
	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestKeyspaceDigest_Deterministic(t *testing.T) {
	snap := map[string]map[string]string{
		"OID2ATTR_VLAN:0x1": {"vlan_id": "100"},
		"ATTR2OID_vlan_id=100": {"VLAN:0x1": "NULL"},
	}
	d1, err := KeyspaceDigest(snap)
	require.NoError(t, err)
	d2, err := KeyspaceDigest(snap)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	snap["OID2ATTR_VLAN:0x1"]["vlan_id"] = "200"
	d3, err := KeyspaceDigest(snap)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}
