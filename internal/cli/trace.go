package cli

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Pass     string // optional - show one pass
	Cell     string // optional - show one cell's history
	Graph    string // graph the cell belongs to; required with Cell
}

// TraceEvent is one recomputation in the timeline.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Pass     string `json:"pass"`
	Cell     string `json:"cell"`
	Value    *int64 `json:"value"` // nil when unresolved
	Resolved bool   `json:"resolved"`
	Changed  bool   `json:"changed"`
}

// PassSummary is one journaled pass.
type PassSummary struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Origin     string `json:"origin"`
	Graph      string `json:"graph,omitempty"`
	Steps      int    `json:"steps"`
	Recomputes int    `json:"recomputes"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Passes   []PassSummary `json:"passes"`
	Timeline []TraceEvent  `json:"timeline,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the propagation journal",
		Long: `Query a propagation journal written by eval or run --db.

Without filters, lists every pass in sequence order. With --pass, shows
the pass and each recomputation it made, revisits included. With --cell,
and --graph, shows every recomputation of one cell across the passes of
that graph.

Examples:
  cellgraph trace --db ./journal.db
  cellgraph trace --db ./journal.db --pass pass-0002
  cellgraph trace --db ./journal.db --cell total --graph pricing --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "pass id to show")
	cmd.Flags().StringVar(&opts.Cell, "cell", "", "cell name to show the history of")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph the cell belongs to")
	cmd.MarkFlagsMutuallyExclusive("pass", "cell")
	cmd.MarkFlagsRequiredTogether("cell", "graph")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	graphs := graphNames{st: st, names: map[string]string{}}
	result := TraceResult{Passes: []PassSummary{}}

	switch {
	case opts.Pass != "":
		p, err := st.ReadPass(ctx, opts.Pass)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitFailure, fmt.Sprintf("pass not found: %s", opts.Pass))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read pass", err)
		}
		recs, err := st.ReadRecomputes(ctx, p.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read recomputes", err)
		}
		summary, err := graphs.summarize(ctx, p, len(recs))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read graph", err)
		}
		result.Passes = append(result.Passes, summary)
		result.Timeline = buildTimeline(recs)

	case opts.Cell != "":
		recs, err := cellHistory(ctx, st, opts.Graph, opts.Cell)
		if err != nil {
			return err
		}
		result.Timeline = buildTimeline(recs)

	default:
		passes, err := st.ReadPasses(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read passes", err)
		}
		for _, p := range passes {
			n, err := st.CountRecomputes(ctx, p.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to count recomputes", err)
			}
			summary, err := graphs.summarize(ctx, p, n)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read graph", err)
			}
			result.Passes = append(result.Passes, summary)
		}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts)
	return nil
}

// cellHistory merges the history of a cell across every journaled version
// of the named graph.
func cellHistory(ctx context.Context, st *store.Store, graph, cell string) ([]ir.RecomputeRecord, error) {
	hashes, err := st.GraphHashes(ctx, graph)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read graphs", err)
	}
	if len(hashes) == 0 {
		return nil, NewExitError(ExitFailure, fmt.Sprintf("graph not found in journal: %s", graph))
	}

	var recs []ir.RecomputeRecord
	for _, h := range hashes {
		history, err := st.ReadCellHistory(ctx, h, cell)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read cell history", err)
		}
		recs = append(recs, history...)
	}
	slices.SortStableFunc(recs, func(a, b ir.RecomputeRecord) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return recs, nil
}

// graphNames resolves journaled graph hashes to names, reading each once.
type graphNames struct {
	st    *store.Store
	names map[string]string
}

func (g graphNames) summarize(ctx context.Context, p ir.PassRecord, recomputes int) (PassSummary, error) {
	summary := PassSummary{ID: p.ID, Seq: p.Seq, Origin: p.Origin, Steps: p.Steps, Recomputes: recomputes}
	if p.GraphHash == "" {
		return summary, nil
	}

	name, ok := g.names[p.GraphHash]
	if !ok {
		spec, err := g.st.ReadGraph(ctx, p.GraphHash)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return summary, err
		}
		name = spec.Name
		g.names[p.GraphHash] = name
	}
	summary.Graph = name
	return summary, nil
}

// buildTimeline converts journal records to timeline events.
func buildTimeline(recs []ir.RecomputeRecord) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(recs))
	for _, r := range recs {
		ev := TraceEvent{
			Seq:      r.Seq,
			Pass:     r.PassID,
			Cell:     r.Cell,
			Resolved: r.Resolved,
			Changed:  r.Changed,
		}
		if r.Resolved {
			v := r.Value
			ev.Value = &v
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(w io.Writer, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, opts *TraceOptions) {
	if opts.Cell == "" {
		fmt.Fprintln(w, "=== Passes ===")
		if len(result.Passes) == 0 {
			fmt.Fprintln(w, "  (no passes)")
		}
		for _, p := range result.Passes {
			fmt.Fprintf(w, "  [%d] %s origin=%s steps=%d", p.Seq, p.ID, p.Origin, p.Steps)
			if p.Graph != "" {
				fmt.Fprintf(w, " graph=%s", p.Graph)
			}
			fmt.Fprintln(w)
		}
	}

	if opts.Pass == "" && opts.Cell == "" {
		return
	}

	if opts.Pass != "" {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
		return
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, opts.Cell != "")
	}
}

func formatTimelineEvent(w io.Writer, ev TraceEvent, showPass bool) {
	fmt.Fprintf(w, "  [%d] ", ev.Seq)
	if showPass {
		fmt.Fprintf(w, "%s ", ev.Pass)
	}
	if !ev.Resolved {
		fmt.Fprintf(w, "%s unresolved\n", ev.Cell)
		return
	}
	fmt.Fprintf(w, "%s = %d", ev.Cell, *ev.Value)
	if !ev.Changed {
		fmt.Fprint(w, " (unchanged)")
	}
	fmt.Fprintln(w)
}
