package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/idemproxy/internal/model"
)

// Snapshot is the deterministic record of a run compared against golden
// files: the executed steps, the downstream queue and the final keyspace.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Result       *Result
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Epochs are left out; sequence numbers are kept.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"pass":   ev.Pass,
			"step":   ev.Step,
			"op":     ev.Op,
			"status": ev.Status,
		}
		if ev.Key != "" {
			m["key"] = ev.Key
		}
		if ev.ID != "" {
			m["id"] = ev.ID
		}
		trace[i] = m
	}

	ops := make([]any, len(s.Result.Ops))
	for i, op := range s.Result.Ops {
		attrs := op.Attrs
		if attrs == nil {
			attrs = map[string]string{}
		}
		ops[i] = map[string]any{
			"seq":   op.Seq,
			"kind":  op.Kind,
			"key":   op.Key,
			"attrs": attrs,
		}
	}

	keyspace := make(map[string]any, len(s.Result.Keyspace))
	for k, fields := range s.Result.Keyspace {
		keyspace[k] = fields
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"ops":           ops,
		"keyspace":      keyspace,
	}
}

// MarshalSnapshot renders the canonical JSON of a run.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	s := Snapshot{ScenarioName: name, Trace: result.Trace, Result: result}
	return model.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario once and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
