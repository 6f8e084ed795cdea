package store

import (
	"context"

	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/reactor"
)

// Journal mirrors reactor events into a Store.
//
// Register it with (*reactor.Reactor).AddObserver. Observers cannot return
// errors, so the first write failure is kept and later events are dropped;
// check Err after the writes of interest. Recomputations outside a pass
// (CreateCompute) are not journaled.
type Journal struct {
	ctx       context.Context
	store     *Store
	graphHash string
	name      func(reactor.CellID) string

	open map[string]ir.PassRecord
	err  error
}

// NewJournal returns a journal writing to s. name maps handles to the cell
// names stored in the journal; nil uses the handle's string form.
func NewJournal(ctx context.Context, s *Store, graphHash string, name func(reactor.CellID) string) *Journal {
	if name == nil {
		name = reactor.CellID.String
	}
	return &Journal{
		ctx:       ctx,
		store:     s,
		graphHash: graphHash,
		name:      name,
		open:      make(map[string]ir.PassRecord),
	}
}

// Observe implements reactor.Observer.
func (j *Journal) Observe(ev reactor.Event[int64]) {
	if j.err != nil || ev.PassID == "" {
		return
	}

	switch ev.Type {
	case reactor.EventPassStarted:
		p := ir.PassRecord{
			ID:        ev.PassID,
			Origin:    j.name(ev.Origin),
			Seq:       ev.Seq,
			GraphHash: j.graphHash,
		}
		j.open[ev.PassID] = p
		j.err = j.store.WritePass(j.ctx, p)

	case reactor.EventRecomputed, reactor.EventUnresolved:
		r := ir.RecomputeRecord{
			PassID:   ev.PassID,
			Seq:      ev.Seq,
			Cell:     j.name(reactor.Compute(ev.Cell)),
			Resolved: ev.Type == reactor.EventRecomputed,
		}
		if r.Resolved {
			r.Value = ev.Value
			r.Changed = ev.Changed
		}
		j.err = j.store.WriteRecompute(j.ctx, r)

	case reactor.EventPassFinished:
		p, ok := j.open[ev.PassID]
		if !ok {
			return
		}
		delete(j.open, ev.PassID)
		p.Steps = ev.Steps
		j.err = j.store.WritePass(j.ctx, p)
	}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	return j.err
}
