package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cellgraph/internal/compiler"
	"github.com/roach88/cellgraph/internal/formula"
	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/reactor"
	"github.com/roach88/cellgraph/internal/store"
	"github.com/roach88/cellgraph/internal/testutil"
)

// Error codes reported for steps that fail outside the reactor.
const (
	CodeUnknownCell   = "UNKNOWN_CELL"
	CodeDuplicateCell = "DUPLICATE_CELL"
	CodeNotInput      = "NOT_INPUT"
	CodeNotCompute    = "NOT_COMPUTE"
	CodeFormulaError  = "FORMULA_ERROR"
	CodeEvalError     = "EVAL_ERROR"
	CodeUnknown       = "ERROR"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	ctx     context.Context
	journal *store.Store
}

// WithJournal mirrors every pass of the run into st.
func WithJournal(st *store.Store) RunOption {
	return func(c *runConfig) {
		c.journal = st
	}
}

// WithContext sets the context used for journal writes.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) {
		c.ctx = ctx
	}
}

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	sheet    *compiler.Sheet
	result   *Result
	journal  *store.Journal
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh reactor with deterministic pass ids. The clock
// starts at 0, or after the journal's last seq when WithJournal is set.
// Failed expectations and assertions are reported in the result; an error
// is returned only when the scenario cannot run at all (graph load
// failure, journal failure).
//
// Execution flow:
// 1. Build an empty sheet with the scenario's reactor options
// 2. Attach the trace recorder (and journal)
// 3. Load the graph, if any
// 4. Execute steps, checking expect and expect_error after each
// 5. Evaluate assertions and capture final values
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{ctx: context.Background()}
	for _, opt := range opts {
		opt(cfg)
	}

	var spec *ir.GraphSpec
	if scenario.Graph != nil {
		var err error
		spec, err = compiler.LoadGraphFile(scenario.Graph.File, scenario.Graph.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph: %w", err)
		}
	}

	reactorOpts := scenarioOptions(scenario)
	if cfg.journal != nil {
		// Continue the journal's sequence so passes from earlier runs keep
		// their place in the timeline.
		last, err := cfg.journal.LastSeq(cfg.ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		reactorOpts = append(reactorOpts, reactor.WithClock(reactor.NewClockAt(last)))
	}

	h := &Harness{
		scenario: scenario,
		sheet:    compiler.NewSheet(scenario.Name, reactorOpts...),
		result:   NewResult(),
	}

	h.sheet.Reactor().AddObserver(&recorder{result: h.result, name: h.sheet.CellName})

	if cfg.journal != nil {
		// A scenario that builds its cells step by step is journaled under
		// an empty graph carrying its name.
		journaled := ir.GraphSpec{Name: scenario.Name}
		if spec != nil {
			journaled = *spec
		}
		graphHash, err := cfg.journal.WriteGraph(cfg.ctx, journaled)
		if err != nil {
			return nil, fmt.Errorf("failed to journal graph: %w", err)
		}
		h.journal = store.NewJournal(cfg.ctx, cfg.journal, graphHash, h.sheet.CellName)
		h.sheet.Reactor().AddObserver(h.journal)
	}

	if spec != nil {
		if err := h.sheet.Load(spec); err != nil {
			return nil, fmt.Errorf("failed to build graph %q: %w", spec.Name, err)
		}
	}

	for i, step := range scenario.Steps {
		h.executeStep(i, step)
	}

	if h.journal != nil {
		if err := h.journal.Err(); err != nil {
			return nil, fmt.Errorf("failed to write journal: %w", err)
		}
	}

	for _, msg := range EvaluateAssertions(h.result, h.sheet, scenario.Assertions) {
		h.result.AddError(msg)
	}

	for _, cv := range h.sheet.Snapshot() {
		h.result.Final = append(h.result.Final, CellState{Name: cv.Name, Value: cv.Value, Resolved: cv.Resolved})
	}

	return h.result, nil
}

// Sheet returns the sheet a harness ran against.
func (h *Harness) Sheet() *compiler.Sheet {
	return h.sheet
}

func scenarioOptions(s *Scenario) []reactor.Option {
	prefix := s.PassPrefix
	if prefix == "" {
		prefix = "pass"
	}

	var extra []reactor.Option
	if s.Options.DetectCycles {
		extra = append(extra, reactor.WithCycleDetection())
	}
	if s.Options.StrictHandles {
		extra = append(extra, reactor.WithStrictHandles())
	}
	if s.Options.MaxSteps > 0 {
		extra = append(extra, reactor.WithMaxSteps(s.Options.MaxSteps))
	}

	return testutil.ReactorOptions(testutil.NewDeterministicPassGenerator(prefix), extra...)
}

func (h *Harness) executeStep(index int, step Step) {
	var err error
	switch {
	case step.Input != nil:
		err = h.sheet.AddInput(step.Input.Name, step.Input.Value)
	case step.Compute != nil:
		err = h.sheet.AddCompute(step.Compute.Name, step.Compute.Deps, step.Compute.Formula)
	case step.Set != nil:
		err = h.sheet.Set(step.Set.Name, step.Set.Value)
	case step.Redefine != nil:
		err = h.sheet.Redefine(step.Redefine.Name, step.Redefine.Deps, step.Redefine.Formula)
	}

	label := fmt.Sprintf("steps[%d] (%s)", index, step.Kind())

	switch {
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got none", label, step.ExpectError))
	case step.ExpectError != "" && ErrorCode(err) != step.ExpectError:
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got %s: %v", label, step.ExpectError, ErrorCode(err), err))
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
	}

	for _, name := range sortedKeys(step.Expect) {
		if msg := checkValue(h.sheet, name, step.Expect[name]); msg != "" {
			h.result.AddError(fmt.Sprintf("%s: %s", label, msg))
		}
	}
}

// ErrorCode classifies a step error for expect_error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	if reactor.IsStepsExceeded(err) {
		return string(reactor.ErrCodeStepsExceeded)
	}

	var re *reactor.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}

	var compileErr *formula.CompileError
	var evalErr *formula.EvalError
	switch {
	case errors.Is(err, compiler.ErrUnknownCell):
		return CodeUnknownCell
	case errors.Is(err, compiler.ErrDuplicateCell):
		return CodeDuplicateCell
	case errors.Is(err, compiler.ErrNotInput):
		return CodeNotInput
	case errors.Is(err, compiler.ErrNotCompute):
		return CodeNotCompute
	case errors.As(err, &compileErr):
		return CodeFormulaError
	case errors.As(err, &evalErr):
		return CodeEvalError
	default:
		return CodeUnknown
	}
}

// checkValue returns a failure message, or "" if name holds want.
func checkValue(s *compiler.Sheet, name string, want ExpectedValue) string {
	got, ok, err := s.Value(name)
	if err != nil {
		return fmt.Sprintf("%s: %v", name, err)
	}

	actual := ExpectedValue{Value: got, Unresolved: !ok}
	if !ok {
		actual.Value = 0
	}
	if actual != want {
		return fmt.Sprintf("%s = %s, expected %s", name, actual, want)
	}
	return ""
}
