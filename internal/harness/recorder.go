package harness

import (
	"github.com/roach88/cellgraph/internal/reactor"
)

// recorder turns reactor events into trace events as they happen.
type recorder struct {
	result *Result
	name   func(reactor.CellID) string
}

func (rec *recorder) Observe(ev reactor.Event[int64]) {
	te := TraceEvent{
		Type: ev.Type.String(),
		Seq:  ev.Seq,
		Pass: ev.PassID,
	}

	switch ev.Type {
	case reactor.EventPassStarted:
		te.Origin = rec.name(ev.Origin)
		rec.result.Passes = append(rec.result.Passes, PassSummary{ID: ev.PassID, Origin: te.Origin})
	case reactor.EventRecomputed:
		te.Cell = rec.name(reactor.Compute(ev.Cell))
		te.Value = ev.Value
		te.Changed = ev.Changed
	case reactor.EventUnresolved:
		te.Cell = rec.name(reactor.Compute(ev.Cell))
	case reactor.EventPassFinished:
		te.Origin = rec.name(ev.Origin)
		te.Steps = ev.Steps
		if n := len(rec.result.Passes); n > 0 && rec.result.Passes[n-1].ID == ev.PassID {
			rec.result.Passes[n-1].Steps = ev.Steps
		}
	}

	rec.result.Trace = append(rec.result.Trace, te)
}
