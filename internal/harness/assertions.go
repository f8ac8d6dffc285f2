package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/idemproxy/internal/store"
)

// Assertion checks the final keyspace or operations queue.
type Assertion struct {
	// Type is one of key_exists, key_absent, field_equals or ops_count.
	Type string `yaml:"type" json:"type"`

	// Key is the persisted key (key_exists, key_absent, field_equals) or
	// the object key an ops_count is restricted to. May contain $aliases.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// Field and Value are the expected hash entry (field_equals).
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Kind restricts ops_count to create, set or remove operations.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Count is the expected number of queued operations (ops_count).
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertKeyExists   = "key_exists"
	AssertKeyAbsent   = "key_absent"
	AssertFieldEquals = "field_equals"
	AssertOpsCount    = "ops_count"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d.%d] %s %s %s\n", ev.Pass, ev.Step, ev.Op, ev.Key, ev.Status)
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions read from.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	Trace []TraceEvent

	// Expand replaces $aliases with bound ids.
	Expand func(string) string
}

func (c *AssertionContext) expand(s string) string {
	if c.Expand == nil {
		return s
	}
	return c.Expand(s)
}

// EvaluateAssertions runs all assertions and returns failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertKeyExists:
		return assertKeyExists(a, actx, true)
	case AssertKeyAbsent:
		return assertKeyExists(a, actx, false)
	case AssertFieldEquals:
		return assertFieldEquals(a, actx)
	case AssertOpsCount:
		return assertOpsCount(a, actx)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertKeyExists(a Assertion, actx *AssertionContext, want bool) error {
	key := actx.expand(a.Key)
	ok, err := actx.Store.Exists(actx.Ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if ok == want {
		return nil
	}

	expected, actual := "key "+key+" present", "absent"
	if !want {
		expected, actual = "key "+key+" absent", "present"
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: actx.Trace}
}

func assertFieldEquals(a Assertion, actx *AssertionContext) error {
	key := actx.expand(a.Key)
	want := actx.expand(a.Value)
	got, ok, err := actx.Store.HGet(actx.Ctx, key, a.Field)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if ok && got == want {
		return nil
	}

	actual := fmt.Sprintf("%q", got)
	if !ok {
		actual = "field not set"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s %s = %q", key, a.Field, want),
		Actual:   actual,
		Trace:    actx.Trace,
	}
}

func assertOpsCount(a Assertion, actx *AssertionContext) error {
	ops, err := actx.Store.ReadOps(actx.Ctx, 0)
	if err != nil {
		return fmt.Errorf("read ops: %w", err)
	}

	key := actx.expand(a.Key)
	n := 0
	for _, op := range ops {
		if a.Kind != "" && op.Kind != a.Kind {
			continue
		}
		if key != "" && op.Key != key {
			continue
		}
		n++
	}
	if n == *a.Count {
		return nil
	}

	filter := "all"
	if a.Kind != "" || key != "" {
		filter = strings.TrimSpace(a.Kind + " " + key)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d operations (%s)", *a.Count, filter),
		Actual:   fmt.Sprintf("%d operations", n),
		Trace:    actx.Trace,
	}
}
