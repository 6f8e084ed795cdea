package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgraph/internal/formula"
	"github.com/roach88/cellgraph/internal/reactor"
)

// DemoStep is one checked step of the demo.
type DemoStep struct {
	Action string           `json:"action"`
	Values map[string]int64 `json:"values"`
	Want   map[string]int64 `json:"want"`
	OK     bool             `json:"ok"`
}

// DemoResult is the JSON payload of the demo command.
type DemoResult struct {
	Steps  []DemoStep `json:"steps"`
	Passes int        `json:"passes"`
	OK     bool       `json:"ok"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the reference two-input graph",
		Long: `Build inputs a=12 and b=13 and a compute cell diff = a - b, then
change a, redefine diff as a * b, add top = max(a, diff) and change b.
Every step is checked against the expected values.

Exits 1 if any value differs from the expected one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, rootOpts)
		},
	}
}

func runDemo(cmd *cobra.Command, rootOpts *RootOptions) error {
	formatter := newFormatter(rootOpts, cmd)

	result, err := referenceDriver()
	if err != nil {
		return WrapExitError(ExitFailure, "demo failed", err)
	}

	if err := formatter.Result(result, formatDemo(result)); err != nil {
		return err
	}
	if !result.OK {
		return NewExitError(ExitFailure, "demo produced unexpected values")
	}
	return nil
}

// referenceDriver runs the reference scenario on a bare reactor.
func referenceDriver() (*DemoResult, error) {
	r := reactor.New[int64](reactor.WithCycleDetection(), reactor.WithLogger(slog.Default()))

	a := r.CreateInput(12)
	b := r.CreateInput(13)
	ab := []reactor.CellID{reactor.Input(a), reactor.Input(b)}

	result := &DemoResult{OK: true}
	cells := map[string]reactor.CellID{"a": reactor.Input(a), "b": reactor.Input(b)}

	check := func(action string, want map[string]int64) {
		step := DemoStep{Action: action, Values: map[string]int64{}, Want: want, OK: true}
		for name := range want {
			v, ok := r.Value(cells[name])
			if ok {
				step.Values[name] = v
			}
			if !ok || v != want[name] {
				step.OK = false
			}
		}
		if !step.OK {
			result.OK = false
		}
		result.Steps = append(result.Steps, step)
	}

	diff, err := r.CreateCompute(ab, formula.MustCompile("sub"))
	if err != nil {
		return nil, fmt.Errorf("create diff: %w", err)
	}
	cells["diff"] = reactor.Compute(diff)
	check("diff = a - b", map[string]int64{"diff": -1})

	if err := r.ChangeInput(a, 13); err != nil {
		return nil, fmt.Errorf("set a: %w", err)
	}
	check("a = 13", map[string]int64{"diff": 0})

	if err := r.ChangeCompute(diff, ab, formula.MustCompile("mul")); err != nil {
		return nil, fmt.Errorf("redefine diff: %w", err)
	}
	check("diff = a * b", map[string]int64{"diff": 169})

	top, err := r.CreateCompute([]reactor.CellID{reactor.Input(a), reactor.Compute(diff)}, formula.MustCompile("max"))
	if err != nil {
		return nil, fmt.Errorf("create top: %w", err)
	}
	cells["top"] = reactor.Compute(top)
	check("top = max(a, diff)", map[string]int64{"top": 169})

	if err := r.ChangeInput(b, -2); err != nil {
		return nil, fmt.Errorf("set b: %w", err)
	}
	check("b = -2", map[string]int64{"diff": -26, "top": 13})

	result.Passes = r.Stats().Passes
	return result, nil
}

func formatDemo(result *DemoResult) string {
	var sb strings.Builder
	for _, step := range result.Steps {
		mark := "✓"
		if !step.OK {
			mark = "✗"
		}
		fmt.Fprintf(&sb, "%s %-20s", mark, step.Action)
		for _, name := range sortedNames(step.Want) {
			if got, ok := step.Values[name]; ok {
				fmt.Fprintf(&sb, " %s=%d", name, got)
			} else {
				fmt.Fprintf(&sb, " %s=unresolved", name)
			}
			if step.Values[name] != step.Want[name] {
				fmt.Fprintf(&sb, " (want %d)", step.Want[name])
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n%d passes\n", result.Passes)
	return sb.String()
}
