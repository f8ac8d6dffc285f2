package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/idemproxy/internal/model"
)

// Scenario is a replayable sequence of lifecycle calls.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Epoch is the fixed epoch stamped on queued downstream operations.
	// Defaults to DefaultEpoch.
	Epoch string `yaml:"epoch,omitempty" json:"epoch,omitempty"`

	// Seed lists hashes present in the keyspace before the first restore,
	// typically ASIC_STATE entries of hardware-created objects.
	Seed map[string]map[string]string `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions are evaluated against the final keyspace.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Step is one lifecycle call, or a restart.
type Step struct {
	// Op is one of create, create_entry, set, remove or restart.
	Op string `yaml:"op" json:"op"`

	// Type is the object type of a create.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Switch is the switch id a create is issued on. May be a $alias.
	Switch string `yaml:"switch,omitempty" json:"switch,omitempty"`

	// Owner is the caller's owner tag for create and set.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`

	// Attrs are the attributes of a create or create_entry. Values may
	// reference $aliases.
	Attrs map[string]string `yaml:"attrs,omitempty" json:"attrs,omitempty"`

	// Key is the object key of create_entry, set and remove.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// Field and Value are the attribute of a set.
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// As binds the id returned by a create to $As for later steps.
	As string `yaml:"as,omitempty" json:"as,omitempty"`

	// Expect checks the call's outcome. A step without Expect must succeed.
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Status is a status code such as SUCCESS or ITEM_NOT_FOUND.
	Status string `yaml:"status,omitempty" json:"status,omitempty"`

	// ID is the id a create must return. May be a $alias.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
}

// Step operations.
const (
	StepCreate      = "create"
	StepCreateEntry = "create_entry"
	StepSet         = "set"
	StepRemove      = "remove"
	StepRestart     = "restart"
)

// DefaultEpoch is used when a scenario names no epoch.
const DefaultEpoch = "harness-epoch"

// LoadScenario reads a scenario file. Files ending in .cue are evaluated
// with CUE; everything else is parsed as YAML with unknown fields rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if filepath.Ext(path) == ".cue" {
		scenario, err = ParseCUE(data, path)
	} else {
		scenario, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseYAML parses and validates a YAML scenario.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ParseCUE evaluates a CUE scenario and decodes it. The value must be
// concrete.
func ParseCUE(data []byte, filename string) (*Scenario, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("failed to evaluate CUE: %w", err)
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case StepCreate:
		if step.Type == "" {
			return fmt.Errorf("create requires 'type'")
		}
		if !model.ObjectType(step.Type).Valid() {
			return fmt.Errorf("unknown object type %q", step.Type)
		}
	case StepCreateEntry:
		if step.Key == "" {
			return fmt.Errorf("create_entry requires 'key'")
		}
	case StepSet:
		if step.Key == "" || step.Field == "" {
			return fmt.Errorf("set requires 'key' and 'field'")
		}
	case StepRemove:
		if step.Key == "" {
			return fmt.Errorf("remove requires 'key'")
		}
	case StepRestart:
		if step.Key != "" || len(step.Attrs) > 0 || step.Expect != nil {
			return fmt.Errorf("restart takes no arguments")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.As != "" {
		if step.Op != StepCreate {
			return fmt.Errorf("'as' is only valid on create")
		}
		if strings.ContainsAny(step.As, "$: ") {
			return fmt.Errorf("invalid alias %q", step.As)
		}
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertKeyExists, AssertKeyAbsent:
		if a.Key == "" {
			return fmt.Errorf("%s requires 'key'", a.Type)
		}
	case AssertFieldEquals:
		if a.Key == "" || a.Field == "" {
			return fmt.Errorf("field_equals requires 'key' and 'field'")
		}
	case AssertOpsCount:
		if a.Count == nil {
			return fmt.Errorf("ops_count requires 'count'")
		}
		if *a.Count < 0 {
			return fmt.Errorf("ops_count 'count' must be non-negative")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
