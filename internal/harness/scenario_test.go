package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
seed:
  ASIC_STATE:QUEUE:0x15000000000001:
    type: UNICAST
steps:
  - op: create
    type: PORT
    attrs:
      speed: "100000"
    as: p1
  - op: set
    key: PORT:$p1
    field: mtu
    value: "9100"
    expect:
      status: SUCCESS
assertions:
  - type: ops_count
    count: 2
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Len(t, scenario.Steps, 2)
	assert.Equal(t, "100000", scenario.Steps[0].Attrs["speed"])
	assert.Equal(t, "p1", scenario.Steps[0].As)
	assert.Equal(t, "SUCCESS", scenario.Steps[1].Expect.Status)
	assert.Equal(t, "UNICAST", scenario.Seed["ASIC_STATE:QUEUE:0x15000000000001"]["type"])
	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].Count)
	assert.Equal(t, 2, *scenario.Assertions[0].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, "typo.yaml", `
name: typo
description: "misspelled key"
steps:
  - op: create
    type: PORT
asertions: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps: [{op: restart}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps: [{op: restart}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\nsteps: []\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nsteps: [{op: upsert}]\n",
			wantErr: `unknown op "upsert"`,
		},
		{
			name:    "unknown type",
			content: "name: n\ndescription: d\nsteps: [{op: create, type: TUNNEL_MAP}]\n",
			wantErr: `unknown object type "TUNNEL_MAP"`,
		},
		{
			name:    "set without field",
			content: "name: n\ndescription: d\nsteps: [{op: set, key: 'PORT:0x1'}]\n",
			wantErr: "set requires 'key' and 'field'",
		},
		{
			name:    "alias on remove",
			content: "name: n\ndescription: d\nsteps: [{op: remove, key: 'PORT:0x1', as: x}]\n",
			wantErr: "'as' is only valid on create",
		},
		{
			name:    "ops_count without count",
			content: "name: n\ndescription: d\nsteps: [{op: restart}]\nassertions: [{type: ops_count}]\n",
			wantErr: "ops_count requires 'count'",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nsteps: [{op: restart}]\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_CUE(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/owner_scope.cue")
	require.NoError(t, err)

	assert.Equal(t, "owner_scope", scenario.Name)
	require.Len(t, scenario.Steps, 5)
	assert.Equal(t, "create", scenario.Steps[0].Op)
	assert.Equal(t, "VLAN", scenario.Steps[0].Type)
	assert.Equal(t, "teamd", scenario.Steps[0].Owner)
	assert.Equal(t, "200", scenario.Steps[1].Attrs["vlan_id"])
	assert.Equal(t, "$a", scenario.Steps[2].Expect.ID)
	assert.Equal(t, "INVALID_PARAMETER", scenario.Steps[3].Expect.Status)
	assert.Len(t, scenario.Assertions, 3)
}

func TestParseCUE_IncompleteValueRejected(t *testing.T) {
	_, err := ParseCUE([]byte(`
name: "n"
description: "d"
steps: [{op: string}]
`), "incomplete.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate CUE")
}

func TestParseCUE_ValidationApplies(t *testing.T) {
	_, err := ParseCUE([]byte(`
name: "n"
description: "d"
steps: [{op: "create"}]
`), "invalid.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create requires 'type'")
}
