package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/cellgraph/internal/compiler"
	"github.com/roach88/cellgraph/internal/reactor"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Events of the pass in question, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nPass trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s=%d\n", ev.Seq, ev.Type, ev.Cell, ev.Value)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(result *Result, sheet *compiler.Sheet, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, sheet, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, sheet *compiler.Sheet, a Assertion) error {
	switch a.Type {
	case AssertFixedPoint:
		return assertFixedPoint(sheet)
	case AssertValue:
		return assertValue(sheet, a)
	case AssertDependents:
		return assertDependents(sheet, a)
	case AssertRecomputeCount:
		return assertRecomputeCount(result, a)
	case AssertRecomputeOrder:
		return assertRecomputeOrder(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertFixedPoint checks that no compute cell is stale.
func assertFixedPoint(sheet *compiler.Sheet) error {
	stale := sheet.Stale()
	if len(stale) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFixedPoint,
		Expected: "every compute cell consistent with its dependencies",
		Actual:   fmt.Sprintf("stale cells: %s", strings.Join(stale, ", ")),
	}
}

func assertValue(sheet *compiler.Sheet, a Assertion) error {
	if msg := checkValue(sheet, a.Cell, *a.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", a.Cell, a.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertDependents compares direct dependents in ascending handle order.
func assertDependents(sheet *compiler.Sheet, a Assertion) error {
	id, ok := sheet.Cell(a.Cell)
	if !ok {
		return fmt.Errorf("unknown cell %q", a.Cell)
	}

	deps := sheet.Reactor().Dependents(id)
	actual := make([]string, len(deps))
	for i, d := range deps {
		actual[i] = sheet.CellName(reactor.Compute(d))
	}

	want := a.Cells
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(actual, want) {
		return &AssertionError{
			Type:     AssertDependents,
			Expected: fmt.Sprintf("%s -> [%s]", a.Cell, strings.Join(want, ", ")),
			Actual:   fmt.Sprintf("%s -> [%s]", a.Cell, strings.Join(actual, ", ")),
		}
	}
	return nil
}

// assertRecomputeCount counts recomputations in one pass, either all of
// them or those of a single cell.
func assertRecomputeCount(result *Result, a Assertion) error {
	events, ok := result.passEvents(a.Pass)
	if !ok {
		return fmt.Errorf("pass %d does not exist (run had %d passes)", a.Pass, len(result.Passes))
	}

	actual := 0
	for _, ev := range events {
		if a.Cell == "" || ev.Cell == a.Cell {
			actual++
		}
	}

	if actual != a.Count {
		subject := "cells"
		if a.Cell != "" {
			subject = a.Cell
		}
		return &AssertionError{
			Type:     AssertRecomputeCount,
			Expected: fmt.Sprintf("pass %d recomputes %s %d times", a.Pass, subject, a.Count),
			Actual:   fmt.Sprintf("%d times", actual),
			Trace:    events,
		}
	}
	return nil
}

// assertRecomputeOrder checks the exact recompute sequence of one pass.
func assertRecomputeOrder(result *Result, a Assertion) error {
	events, ok := result.passEvents(a.Pass)
	if !ok {
		return fmt.Errorf("pass %d does not exist (run had %d passes)", a.Pass, len(result.Passes))
	}

	actual := make([]string, len(events))
	for i, ev := range events {
		actual[i] = ev.Cell
	}

	if !slices.Equal(actual, a.Cells) {
		return &AssertionError{
			Type:     AssertRecomputeOrder,
			Expected: strings.Join(a.Cells, " -> "),
			Actual:   strings.Join(actual, " -> "),
			Trace:    events,
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
