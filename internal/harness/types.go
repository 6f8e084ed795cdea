package harness

// TraceEvent is one reactor event, with handles replaced by cell names.
type TraceEvent struct {
	Type    string `json:"type"` // pass_started, recomputed, unresolved, pass_finished
	Seq     int64  `json:"seq"`
	Pass    string `json:"pass,omitempty"` // empty for the initial computation of a new cell
	Origin  string `json:"origin,omitempty"`
	Cell    string `json:"cell,omitempty"`
	Value   int64  `json:"value,omitempty"`
	Changed bool   `json:"changed,omitempty"`
	Steps   int    `json:"steps,omitempty"`
}

// PassSummary describes one propagation pass of a run.
type PassSummary struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Steps  int    `json:"steps"`
}

// CellState is a cell's final value.
type CellState struct {
	Name     string `json:"name"`
	Value    int64  `json:"value"`
	Resolved bool   `json:"resolved"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every reactor event in order.
	Trace []TraceEvent `json:"trace"`

	// Passes lists propagation passes in order.
	Passes []PassSummary `json:"passes"`

	// Final holds every cell's value after the last step.
	Final []CellState `json:"final"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Passes: []PassSummary{},
		Final:  []CellState{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// passEvents returns the recompute events of the n-th pass (1-based).
func (r *Result) passEvents(n int) ([]TraceEvent, bool) {
	if n < 1 || n > len(r.Passes) {
		return nil, false
	}
	id := r.Passes[n-1].ID

	var events []TraceEvent
	for _, ev := range r.Trace {
		if ev.Pass == id && (ev.Type == "recomputed" || ev.Type == "unresolved") {
			events = append(events, ev)
		}
	}
	return events, true
}
