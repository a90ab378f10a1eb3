package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of storage operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the declaration path, relative to the scenario file.
	Schema string `yaml:"schema"`

	// Steps run in order against one database.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the full trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Token is the operation token logged for every call. Defaults to
	// "test-op-default".
	Token string `yaml:"token,omitempty"`
}

// Step is one storage call.
type Step struct {
	// Op is the operation, one of the Op* constants.
	Op string `yaml:"op"`

	// Entity names the entity, or the relation for relation operations.
	Entity string `yaml:"entity"`

	// Match, Attributes and OrderBy use the generic forms accepted by
	// queryir.ParseMatch, ParseAttributes and ParseOrderBy.
	Match      any `yaml:"match,omitempty"`
	Attributes any `yaml:"attributes,omitempty"`
	OrderBy    any `yaml:"orderBy,omitempty"`
	Limit      int `yaml:"limit,omitempty"`
	Offset     int `yaml:"offset,omitempty"`

	// Payload is the create or update payload, or the relation attributes
	// for addRelation.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Source and Target are the endpoint ids for addRelation.
	Source int64 `yaml:"source,omitempty"`
	Target int64 `yaml:"target,omitempty"`

	// Expect checks the outcome of this step. Nil means the step must
	// succeed and nothing else is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a step.
type Expect struct {
	// Error is the code the step must fail with, such as "E404".
	Error string `yaml:"error,omitempty"`

	// Events is the exact event sequence. An empty list expects no events.
	Events []EventExpect `yaml:"events,omitempty"`

	// Count is the number of records returned.
	Count *int `yaml:"count,omitempty"`

	// Paths maps JSONPath expressions to expected values.
	Paths map[string]any `yaml:"paths,omitempty"`
}

// EventExpect identifies one event.
type EventExpect struct {
	Type       string `yaml:"type"`
	RecordName string `yaml:"recordName"`
}

func (e EventExpect) String() string {
	return e.Type + " " + e.RecordName
}

// Assertion validates the trace or the final database state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is "type recordName" (used by event_count).
	Event string `yaml:"event,omitempty"`

	// Events are "type recordName" entries (used by event_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of events or records.
	Count *int `yaml:"count,omitempty"`

	// Entity, Where and Attributes select records (used by final_state).
	Entity     string `yaml:"entity,omitempty"`
	Where      any    `yaml:"where,omitempty"`
	Attributes any    `yaml:"attributes,omitempty"`

	// Paths are JSONPath expectations on {"records": [...]} (used by
	// final_state).
	Paths map[string]any `yaml:"paths,omitempty"`
}

// Operation names.
const (
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpFind           = "find"
	OpFindOne        = "findOne"
	OpAddRelation    = "addRelation"
	OpRemoveRelation = "removeRelation"
	OpUpdateRelation = "updateRelation"
	OpFindRelation   = "findRelation"
)

var validOps = map[string]bool{
	OpCreate: true, OpUpdate: true, OpDelete: true, OpFind: true, OpFindOne: true,
	OpAddRelation: true, OpRemoveRelation: true, OpUpdateRelation: true, OpFindRelation: true,
}

// Assertion type constants.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertFinalState = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. The schema path is
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative schema path
// against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && baseDir != "" {
		scenario.Schema = filepath.Join(baseDir, scenario.Schema)
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
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !validOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Entity == "" {
			return fmt.Errorf("steps[%d]: entity is required", i)
		}
		if step.Op == OpAddRelation && (step.Source == 0 || step.Target == 0) {
			return fmt.Errorf("steps[%d]: addRelation needs source and target ids", i)
		}
		if step.Expect != nil && step.Expect.Count != nil && *step.Expect.Count < 0 {
			return fmt.Errorf("steps[%d].expect: count must be non-negative", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if a.Count == nil && len(a.Paths) == 0 {
			return fmt.Errorf("assertions[%d]: count or paths is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
