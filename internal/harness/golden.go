package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cellgraph/internal/ir"
)

// TraceSnapshot captures the trace and final values of a scenario run.
// It serializes to canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Final        []CellState
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Zero-valued optional fields are omitted, except
// "changed" and "value" on recomputed events.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"seq":  ev.Seq,
		}
		if ev.Pass != "" {
			m["pass"] = ev.Pass
		}
		if ev.Origin != "" {
			m["origin"] = ev.Origin
		}
		if ev.Cell != "" {
			m["cell"] = ev.Cell
		}
		if ev.Type == "recomputed" {
			m["value"] = ev.Value
			m["changed"] = ev.Changed
		}
		if ev.Type == "pass_finished" {
			m["steps"] = ev.Steps
		}
		traceList[i] = m
	}

	final := make(map[string]any, len(s.Final))
	for _, c := range s.Final {
		if c.Resolved {
			final[c.Name] = c.Value
		} else {
			final[c.Name] = Unresolved
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final":         final,
	}
}

// MarshalTrace returns the canonical JSON of a run, as stored in golden
// files.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}

	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
