package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgraph/internal/compiler"
	"github.com/roach88/cellgraph/internal/harness"
	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/reactor"
	"github.com/roach88/cellgraph/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	Graph        string
	Sets         []string
	DBPath       string
	DetectCycles bool
	MaxSteps     int
}

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Graph  string      `json:"graph"`
	Cells  []CellState `json:"cells"`
	Passes int         `json:"passes"`
	Steps  int         `json:"recomputes"`
}

// CellState is one cell's value after evaluation.
type CellState struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Value    *int64 `json:"value"` // nil when unresolved
	Resolved bool   `json:"resolved"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <graphs-dir>",
		Short: "Build a graph, apply input writes and print every cell",
		Long: `Build a graph from CUE definitions, write each --set value to its
input cell in order, and print the value of every cell.

Each --set runs one propagation pass. With --db every pass is journaled
to SQLite for later inspection with the trace command.

Exits 1 if a write is rejected, 2 if the graph cannot be loaded.`,
		Example: `  cellgraph eval ./graphs --graph pricing --set qty=4
  cellgraph eval ./graphs --graph pricing --set qty=4 --set price=90 --db journal.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "graph name (required when the directory declares more than one)")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "input write as name=value (repeatable, applied in order)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal passes to this SQLite database")
	cmd.Flags().BoolVar(&opts.DetectCycles, "detect-cycles", true, "reject edits that close a dependency cycle")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "stop a pass after this many recomputations (0 = unlimited)")

	return cmd
}

func runEval(cmd *cobra.Command, rootOpts *RootOptions, opts *EvalOptions, graphsDir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(rootOpts, cmd)

	writes, err := parseSets(opts.Sets)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}

	spec, err := selectGraph(graphsDir, opts.Graph)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load graph", err)
	}

	reactorOpts := []reactor.Option{reactor.WithLogger(slog.Default())}
	if opts.DetectCycles {
		reactorOpts = append(reactorOpts, reactor.WithCycleDetection())
	}
	if opts.MaxSteps > 0 {
		reactorOpts = append(reactorOpts, reactor.WithMaxSteps(opts.MaxSteps))
	}

	var (
		st      *store.Store
		journal *store.Journal
		hash    string
	)
	if opts.DBPath != "" {
		st, err = store.Open(opts.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read database", err)
		}
		reactorOpts = append(reactorOpts, reactor.WithClock(reactor.NewClockAt(last)))

		hash, err = st.WriteGraph(ctx, *spec)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to journal graph", err)
		}
	}

	sheet := compiler.NewSheet(spec.Name, reactorOpts...)
	if st != nil {
		journal = store.NewJournal(ctx, st, hash, sheet.CellName)
		sheet.Reactor().AddObserver(journal)
	}

	if err := sheet.Load(spec); err != nil {
		_ = formatter.Error(harness.ErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build graph", err)
	}
	formatter.VerboseLog("Built graph %s (%d cells)", spec.Name, len(sheet.Names()))

	for _, w := range writes {
		formatter.VerboseLog("Set %s = %d", w.name, w.value)
		if err := sheet.Set(w.name, w.value); err != nil {
			_ = formatter.Error(harness.ErrorCode(err), err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("set %s", w.name), err)
		}
	}

	if journal != nil {
		if err := journal.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to write journal", err)
		}
		slog.Info("journal written", "db", opts.DBPath, "graph", spec.Name, "hash", hash)
	}

	stats := sheet.Reactor().Stats()
	result := EvalResult{
		Graph:  spec.Name,
		Cells:  cellStates(sheet),
		Passes: stats.Passes,
		Steps:  stats.Recomputes,
	}
	return formatter.Result(result, formatEval(result))
}

type inputWrite struct {
	name  string
	value int64
}

func parseSets(sets []string) ([]inputWrite, error) {
	writes := make([]inputWrite, 0, len(sets))
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: expected name=value", s)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %q: value must be an integer", s)
		}
		writes = append(writes, inputWrite{name: name, value: v})
	}
	return writes, nil
}

// selectGraph loads the named graph, or the only graph when name is empty.
func selectGraph(dir, name string) (*ir.GraphSpec, error) {
	if name != "" {
		return loadGraph(dir, name)
	}

	graphs, err := loadGraphs(dir)
	if err != nil {
		return nil, err
	}
	if len(graphs) != 1 {
		names := make([]string, len(graphs))
		for i := range graphs {
			names[i] = graphs[i].Name
		}
		return nil, &LoadError{
			Code:    ErrCodeUnknownGraph,
			Message: fmt.Sprintf("--graph is required: %s declares %s", dir, strings.Join(names, ", ")),
		}
	}
	return &graphs[0], nil
}

func cellStates(sheet *compiler.Sheet) []CellState {
	snapshot := sheet.Snapshot()
	cells := make([]CellState, 0, len(snapshot))
	for _, cv := range snapshot {
		cs := CellState{Name: cv.Name, Kind: cv.Cell.Kind.String(), Resolved: cv.Resolved}
		if cv.Resolved {
			v := cv.Value
			cs.Value = &v
		}
		cells = append(cells, cs)
	}
	return cells
}

func formatEval(result EvalResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n\n", result.Graph)

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CELL\tKIND\tVALUE")
	for _, c := range result.Cells {
		value := "unresolved"
		if c.Value != nil {
			value = strconv.FormatInt(*c.Value, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Kind, value)
	}
	tw.Flush()

	fmt.Fprintf(&sb, "\n%d passes, %d recomputes\n", result.Passes, result.Steps)
	return sb.String()
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
