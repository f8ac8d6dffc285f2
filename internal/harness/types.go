package harness

import "github.com/roach88/idemproxy/internal/store"

// TraceEvent records one executed step.
type TraceEvent struct {
	// Pass is 1 for the first run of the steps and 2 for the warm-restart
	// replay.
	Pass int `json:"pass"`

	// Step is the 1-based step index.
	Step int `json:"step"`

	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status"`

	// ID is the id returned by a create.
	ID string `json:"id,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Keyspace is the final persisted keyspace.
	Keyspace map[string]map[string]string `json:"keyspace,omitempty"`

	// Ops is the downstream operations queue after the run.
	Ops []store.Op `json:"ops,omitempty"`

	// ReplayOps counts downstream operations emitted by the warm-restart
	// replay. Always zero for Run.
	ReplayOps int64 `json:"replay_ops"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
