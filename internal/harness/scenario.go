package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a propagation test.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph optionally loads a CUE graph before the steps run.
	Graph *GraphRef `yaml:"graph,omitempty"`

	// Options configure the reactor.
	Options Options `yaml:"options,omitempty"`

	// PassPrefix prefixes deterministic pass ids. Defaults to "pass".
	PassPrefix string `yaml:"pass_prefix,omitempty"`

	// Steps mutate the sheet in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and sheet.
	// Supported types: fixed_point, value, dependents, recompute_count,
	// recompute_order
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// GraphRef points at a graph inside a CUE file. File is relative to the
// scenario file.
type GraphRef struct {
	File string `yaml:"file"`
	Name string `yaml:"name"`
}

// Options mirror the reactor's opt-in checks.
type Options struct {
	DetectCycles  bool `yaml:"detect_cycles,omitempty"`
	StrictHandles bool `yaml:"strict_handles,omitempty"`
	MaxSteps      int  `yaml:"max_steps,omitempty"`
}

// Step is exactly one of Input, Compute, Set or Redefine, with optional
// expectations checked after it runs.
type Step struct {
	Input    *ValueStep   `yaml:"input,omitempty"`
	Compute  *ComputeStep `yaml:"compute,omitempty"`
	Set      *ValueStep   `yaml:"set,omitempty"`
	Redefine *ComputeStep `yaml:"redefine,omitempty"`

	// Expect maps cell names to values after the step.
	Expect map[string]ExpectedValue `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with, e.g.
	// CYCLE_DETECTED or UNKNOWN_CELL.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ValueStep creates or sets an input cell.
type ValueStep struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

// ComputeStep creates or redefines a compute cell.
type ComputeStep struct {
	Name    string   `yaml:"name"`
	Deps    []string `yaml:"deps"`
	Formula string   `yaml:"formula"`
}

// Kind returns the step's operation name.
func (s Step) Kind() string {
	switch {
	case s.Input != nil:
		return StepInput
	case s.Compute != nil:
		return StepCompute
	case s.Set != nil:
		return StepSet
	case s.Redefine != nil:
		return StepRedefine
	default:
		return ""
	}
}

// Step kinds.
const (
	StepInput    = "input"
	StepCompute  = "compute"
	StepSet      = "set"
	StepRedefine = "redefine"
)

// Unresolved is the YAML spelling of "this cell has no value".
const Unresolved = "unresolved"

// ExpectedValue is an integer or the string "unresolved".
type ExpectedValue struct {
	Value      int64
	Unresolved bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *ExpectedValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Value == Unresolved {
		*e = ExpectedValue{Unresolved: true}
		return nil
	}
	var v int64
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("line %d: expected an integer or %q", node.Line, Unresolved)
	}
	*e = ExpectedValue{Value: v}
	return nil
}

// String renders the expectation the way it is written in YAML.
func (e ExpectedValue) String() string {
	if e.Unresolved {
		return Unresolved
	}
	return fmt.Sprintf("%d", e.Value)
}

// Assertion validates the trace or the final sheet.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fixed_point": every compute holds fn(current dependency values)
	// - "value": Cell holds Expect
	// - "dependents": Cell's direct dependents are exactly Cells
	// - "recompute_count": pass Pass recomputed Count cells (or Cell
	//   Count times when Cell is set)
	// - "recompute_order": pass Pass recomputed exactly Cells, in order
	Type string `yaml:"type"`

	// Cell is the subject cell (value, dependents, recompute_count).
	Cell string `yaml:"cell,omitempty"`

	// Expect is the expected value (value).
	Expect *ExpectedValue `yaml:"expect,omitempty"`

	// Cells lists names (dependents, recompute_order).
	Cells []string `yaml:"cells,omitempty"`

	// Pass is the 1-based index of a propagation pass in the run.
	Pass int `yaml:"pass,omitempty"`

	// Count is the expected number of recomputations (recompute_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFixedPoint     = "fixed_point"
	AssertValue          = "value"
	AssertDependents     = "dependents"
	AssertRecomputeCount = "recompute_count"
	AssertRecomputeOrder = "recompute_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A graph file path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Graph != nil && !filepath.IsAbs(scenario.Graph.File) {
		scenario.Graph.File = filepath.Join(filepath.Dir(path), scenario.Graph.File)
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Graph != nil {
		if s.Graph.File == "" {
			return fmt.Errorf("graph.file is required")
		}
		if s.Graph.Name == "" {
			return fmt.Errorf("graph.name is required")
		}
	}

	if s.Options.MaxSteps < 0 {
		return fmt.Errorf("options.max_steps must be non-negative")
	}

	if len(s.Steps) == 0 && s.Graph == nil {
		return fmt.Errorf("at least one step or a graph is required")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	n := 0
	for _, set := range []bool{step.Input != nil, step.Compute != nil, step.Set != nil, step.Redefine != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of input, compute, set, redefine is required", index)
	}

	switch {
	case step.Input != nil && step.Input.Name == "":
		return fmt.Errorf("steps[%d]: input.name is required", index)
	case step.Set != nil && step.Set.Name == "":
		return fmt.Errorf("steps[%d]: set.name is required", index)
	case step.Compute != nil && (step.Compute.Name == "" || step.Compute.Formula == ""):
		return fmt.Errorf("steps[%d]: compute.name and compute.formula are required", index)
	case step.Redefine != nil && (step.Redefine.Name == "" || step.Redefine.Formula == ""):
		return fmt.Errorf("steps[%d]: redefine.name and redefine.formula are required", index)
	}

	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFixedPoint:
	case AssertValue:
		if a.Cell == "" || a.Expect == nil {
			return fmt.Errorf("assertions[%d]: cell and expect are required for value", index)
		}
	case AssertDependents:
		if a.Cell == "" {
			return fmt.Errorf("assertions[%d]: cell is required for dependents", index)
		}
	case AssertRecomputeCount:
		if a.Pass < 1 {
			return fmt.Errorf("assertions[%d]: pass must be >= 1 for recompute_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for recompute_count", index)
		}
	case AssertRecomputeOrder:
		if a.Pass < 1 {
			return fmt.Errorf("assertions[%d]: pass must be >= 1 for recompute_order", index)
		}
		if len(a.Cells) == 0 {
			return fmt.Errorf("assertions[%d]: cells list is required for recompute_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
