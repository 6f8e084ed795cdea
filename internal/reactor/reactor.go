package reactor

import (
	"log/slog"
)

// Reactor is the cell store, dependency index and propagation engine.
//
// T needs equality (Changed flags in events) and uses its zero value as
// the placeholder for unresolved compute cells.
//
// INVARIANTS:
//   - inputs and computes only grow; a handle stays valid forever
//   - the dependency index mirrors every compute cell's dependency list
//   - after a mutating call returns without error, every compute cell whose
//     dependencies all resolve holds fn(current dependency values)
type Reactor[T comparable] struct {
	inputs   []inputCell[T]
	computes []computeCell[T]
	index    *dependencyIndex

	clock   *Clock
	passGen PassIDGenerator
	logger  *slog.Logger

	detectCycles  bool
	strictHandles bool
	maxSteps      int

	observers    []registeredObserver[T]
	nextObserver ObserverID

	stats Stats
}

// Stats counts engine activity since construction.
type Stats struct {
	Passes     int
	Recomputes int
}

// Option configures a Reactor.
type Option func(*options)

type options struct {
	detectCycles  bool
	strictHandles bool
	maxSteps      int
	passGen       PassIDGenerator
	logger        *slog.Logger
	clock         *Clock
}

// WithCycleDetection rejects CreateCompute and ChangeCompute calls that
// would close a dependency cycle. Without it a cycle is accepted and the
// next pass through it does not terminate on its own.
func WithCycleDetection() Option {
	return func(o *options) {
		o.detectCycles = true
	}
}

// WithStrictHandles rejects dependency handles that name no existing cell.
// Without it such a compute cell is accepted and stays unresolved.
func WithStrictHandles() Option {
	return func(o *options) {
		o.strictHandles = true
	}
}

// WithMaxSteps limits the recomputations of a single propagation pass.
//
// Default: 0 (unlimited).
// Use WithMaxSteps(10) in tests that exercise a cycle.
func WithMaxSteps(maxSteps int) Option {
	return func(o *options) {
		o.maxSteps = maxSteps
	}
}

// WithPassGenerator overrides the pass id generator (default UUIDv7).
func WithPassGenerator(g PassIDGenerator) Option {
	return func(o *options) {
		o.passGen = g
	}
}

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the logical clock used to stamp events.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates an empty Reactor.
func New[T comparable](opts ...Option) *Reactor[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.passGen == nil {
		o.passGen = UUIDv7Generator{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	return &Reactor[T]{
		index:         newDependencyIndex(),
		clock:         o.clock,
		passGen:       o.passGen,
		logger:        o.logger,
		detectCycles:  o.detectCycles,
		strictHandles: o.strictHandles,
		maxSteps:      o.maxSteps,
	}
}

// CreateInput adds an input cell holding v. Always succeeds.
func (r *Reactor[T]) CreateInput(v T) InputID {
	r.inputs = append(r.inputs, inputCell[T]{value: v})
	return InputID(len(r.inputs) - 1)
}

// CreateCompute adds a compute cell reading deps through fn and computes
// its value immediately.
//
// If a dependency has no value (a dangling handle, or an unresolved
// compute cell) the new cell stays unresolved and no error is returned.
// An error is returned only by the opt-in checks: WithStrictHandles for
// dangling handles, WithCycleDetection for a self-reference. Nothing is
// created when an error is returned.
func (r *Reactor[T]) CreateCompute(deps []CellID, fn ComputeFunc[T]) (ComputeID, error) {
	id := ComputeID(len(r.computes))
	if err := r.checkDeps(id, deps); err != nil {
		return 0, err
	}

	r.computes = append(r.computes, computeCell[T]{
		deps: cloneDeps(deps),
		fn:   fn,
	})
	r.index.link(id, deps)

	r.recompute(id, nil)

	r.logger.Debug("compute cell created",
		"cell", Compute(id),
		"deps", len(deps),
		"resolved", r.computes[id].resolved,
	)

	return id, nil
}

// ChangeInput overwrites an input's value and propagates to every
// transitive dependent. Writing the current value still runs a full pass.
func (r *Reactor[T]) ChangeInput(id InputID, v T) error {
	if !r.inputExists(id) {
		return NewNonexistentCellError(Input(id))
	}

	r.inputs[id].value = v
	return r.propagate(Input(id), nil)
}

// ChangeCompute replaces a compute cell's dependency list and function,
// recomputes it, and propagates to its transitive dependents.
//
// The reverse edges are moved and the new list and function stored before
// anything is recomputed, so no recomputation sees a half-edited cell.
func (r *Reactor[T]) ChangeCompute(id ComputeID, deps []CellID, fn ComputeFunc[T]) error {
	if !r.computeExists(id) {
		return NewNonexistentCellError(Compute(id))
	}
	if err := r.checkDeps(id, deps); err != nil {
		return err
	}

	cell := &r.computes[id]
	r.index.rewire(id, cell.deps, deps)
	cell.deps = cloneDeps(deps)
	cell.fn = fn

	return r.propagate(Compute(id), &id)
}

// Value returns a cell's current value. ok is false for a compute cell
// that has never resolved.
//
// Panics with *Error if id names no cell: handles are only ever obtained
// from this reactor, so an unknown one is a programming error. Use Lookup
// to get the error instead.
func (r *Reactor[T]) Value(id CellID) (T, bool) {
	v, ok, err := r.Lookup(id)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// Lookup is Value with the invalid-handle case returned as an error.
func (r *Reactor[T]) Lookup(id CellID) (T, bool, error) {
	var zero T
	if !r.exists(id) {
		return zero, false, NewNonexistentCellError(id)
	}
	v, ok := r.resolve(id)
	return v, ok, nil
}

// Dependents returns the compute cells that directly read id, ascending.
func (r *Reactor[T]) Dependents(id CellID) []ComputeID {
	return r.index.of(id)
}

// Dependencies returns a copy of a compute cell's dependency list.
func (r *Reactor[T]) Dependencies(id ComputeID) ([]CellID, error) {
	if !r.computeExists(id) {
		return nil, NewNonexistentCellError(Compute(id))
	}
	return cloneDeps(r.computes[id].deps), nil
}

// InputCount returns the number of input cells.
func (r *Reactor[T]) InputCount() int {
	return len(r.inputs)
}

// ComputeCount returns the number of compute cells.
func (r *Reactor[T]) ComputeCount() int {
	return len(r.computes)
}

// Stats returns activity counters.
func (r *Reactor[T]) Stats() Stats {
	return r.stats
}

// checkDeps runs the opt-in validation for a dependency list that is about
// to be given to id. It never mutates the reactor.
func (r *Reactor[T]) checkDeps(id ComputeID, deps []CellID) error {
	if r.strictHandles {
		for _, dep := range deps {
			if dep == Compute(id) {
				// the cell itself; reported as a cycle below if enabled
				continue
			}
			if !r.exists(dep) {
				return NewNonexistentCellError(dep)
			}
		}
	}
	if r.detectCycles {
		if path := r.findCycle(id, deps); path != nil {
			return NewCycleError(Compute(id), path)
		}
	}
	return nil
}

func (r *Reactor[T]) exists(id CellID) bool {
	switch id.Kind {
	case KindInput:
		return r.inputExists(InputID(id.Index))
	case KindCompute:
		return r.computeExists(ComputeID(id.Index))
	default:
		return false
	}
}

func (r *Reactor[T]) inputExists(id InputID) bool {
	return id >= 0 && int(id) < len(r.inputs)
}

func (r *Reactor[T]) computeExists(id ComputeID) bool {
	return id >= 0 && int(id) < len(r.computes)
}

func cloneDeps(deps []CellID) []CellID {
	if deps == nil {
		return nil
	}
	out := make([]CellID, len(deps))
	copy(out, deps)
	return out
}
