package reactor

// pass carries the identity of the propagation pass in progress.
type pass struct {
	id     string
	origin CellID
}

// propagate refreshes every transitive dependent of origin.
//
// When self is non-nil the compute cell it names is recomputed first; this
// is the ChangeCompute path, where origin is that cell.
//
// The queue is level-ordered, not topologically sorted. A cell reachable
// along paths of different lengths is recomputed once per refreshed
// dependency; its last recomputation happens after all its dependencies
// have settled, which is what makes the pass end at a fixed point.
func (r *Reactor[T]) propagate(origin CellID, self *ComputeID) error {
	p := &pass{id: r.passGen.Generate(), origin: origin}
	r.stats.Passes++
	r.emit(Event[T]{Type: EventPassStarted, PassID: p.id, Origin: origin})

	if self != nil {
		r.recompute(*self, p)
	}

	quota := NewQuotaEnforcer(r.maxSteps)
	queue := newWorkQueue()
	queue.Push(r.index.of(origin)...)

	for {
		id, ok := queue.Pop()
		if !ok {
			break
		}

		if err := quota.Check(p.id); err != nil {
			r.logger.Warn("propagation pass stopped",
				"pass", p.id,
				"origin", origin,
				"limit", quota.MaxSteps(),
				"pending", queue.Len(),
			)
			r.emit(Event[T]{Type: EventPassFinished, PassID: p.id, Origin: origin, Steps: quota.MaxSteps()})
			return err
		}

		r.recompute(id, p)
		queue.Push(r.index.of(Compute(id))...)
	}

	r.logger.Debug("propagation pass finished",
		"pass", p.id,
		"origin", origin,
		"steps", quota.Current(),
	)
	r.emit(Event[T]{Type: EventPassFinished, PassID: p.id, Origin: origin, Steps: quota.Current()})

	return nil
}

// recompute applies a compute cell's function to the current values of
// its dependencies. If any dependency has no value the cell keeps what it
// had (a stale value, or nothing) and recompute returns false.
func (r *Reactor[T]) recompute(id ComputeID, p *pass) bool {
	cell := &r.computes[id]

	args := make([]T, len(cell.deps))
	for i, dep := range cell.deps {
		v, ok := r.resolve(dep)
		if !ok {
			r.emit(r.event(EventUnresolved, id, p))
			return false
		}
		args[i] = v
	}

	v := cell.fn(args)
	changed := !cell.resolved || v != cell.value
	cell.value = v
	cell.resolved = true
	r.stats.Recomputes++

	ev := r.event(EventRecomputed, id, p)
	ev.Value = v
	ev.Changed = changed
	r.emit(ev)

	return true
}

// resolve returns the current value of any handle. Unknown handles and
// unresolved compute cells report ok == false.
func (r *Reactor[T]) resolve(id CellID) (T, bool) {
	var zero T
	switch id.Kind {
	case KindInput:
		if !r.inputExists(InputID(id.Index)) {
			return zero, false
		}
		return r.inputs[id.Index].value, true
	case KindCompute:
		if !r.computeExists(ComputeID(id.Index)) {
			return zero, false
		}
		c := r.computes[id.Index]
		if !c.resolved {
			return zero, false
		}
		return c.value, true
	default:
		return zero, false
	}
}

func (r *Reactor[T]) event(t EventType, id ComputeID, p *pass) Event[T] {
	ev := Event[T]{Type: t, Cell: id}
	if p != nil {
		ev.PassID = p.id
		ev.Origin = p.origin
	}
	return ev
}
