package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/cellgraph/internal/formula"
	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/reactor"
)

// Sheet errors. Each is wrapped with the offending name.
var (
	ErrUnknownCell   = errors.New("unknown cell")
	ErrDuplicateCell = errors.New("cell already defined")
	ErrNotInput      = errors.New("not an input cell")
	ErrNotCompute    = errors.New("not a compute cell")
)

// Sheet is a reactor addressed by cell name, with formulas as source text.
//
// A Sheet is not safe for concurrent use.
type Sheet struct {
	name    string
	reactor *reactor.Reactor[int64]

	cells    map[string]reactor.CellID
	names    map[reactor.CellID]string
	order    []string
	formulas map[reactor.ComputeID]string
	fns      map[reactor.ComputeID]reactor.ComputeFunc[int64]
}

// CellValue is one row of a Snapshot.
type CellValue struct {
	Name     string
	Cell     reactor.CellID
	Value    int64
	Resolved bool
}

// NewSheet returns an empty sheet over a fresh reactor.
func NewSheet(name string, opts ...reactor.Option) *Sheet {
	return &Sheet{
		name:     name,
		reactor:  reactor.New[int64](opts...),
		cells:    make(map[string]reactor.CellID),
		names:    make(map[reactor.CellID]string),
		formulas: make(map[reactor.ComputeID]string),
		fns:      make(map[reactor.ComputeID]reactor.ComputeFunc[int64]),
	}
}

// Build instantiates a graph on a fresh sheet. See Load.
func Build(spec *ir.GraphSpec, opts ...reactor.Option) (*Sheet, error) {
	s := NewSheet(spec.Name, opts...)
	if err := s.Load(spec); err != nil {
		return nil, err
	}
	return s, nil
}

// Load adds a graph's cells to the sheet: inputs first, then computes,
// each in declaration order. Every formula is compiled before any cell is
// created.
//
// Compute handles are assigned up front, so a compute may name one declared
// after it. Such a cell stays unresolved until a later pass reaches it.
func (s *Sheet) Load(spec *ir.GraphSpec) error {
	fns := make([]reactor.ComputeFunc[int64], len(spec.Computes))
	for i, c := range spec.Computes {
		fn, err := compileFor(c.Formula, len(c.Deps))
		if err != nil {
			return fmt.Errorf("compute %q: %w", c.Name, err)
		}
		fns[i] = fn
	}

	for _, in := range spec.Inputs {
		if err := s.AddInput(in.Name, in.Value); err != nil {
			return err
		}
	}

	base := s.reactor.ComputeCount()
	pending := make(map[string]reactor.CellID, len(spec.Computes))
	for i, c := range spec.Computes {
		if _, dup := s.cells[c.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCell, c.Name)
		}
		if _, dup := pending[c.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCell, c.Name)
		}
		pending[c.Name] = reactor.Compute(reactor.ComputeID(base + i))
	}

	for i, c := range spec.Computes {
		deps, err := s.resolveNames(c.Deps, pending)
		if err != nil {
			return fmt.Errorf("compute %q: %w", c.Name, err)
		}
		if err := s.createCompute(c.Name, deps, c.Formula, fns[i]); err != nil {
			return err
		}
	}

	return nil
}

// Name returns the sheet's graph name.
func (s *Sheet) Name() string {
	return s.name
}

// Reactor exposes the underlying engine.
func (s *Sheet) Reactor() *reactor.Reactor[int64] {
	return s.reactor
}

// Cell returns the handle for a name.
func (s *Sheet) Cell(name string) (reactor.CellID, bool) {
	id, ok := s.cells[name]
	return id, ok
}

// CellName returns the name for a handle, or the handle's string form if
// the sheet did not create it.
func (s *Sheet) CellName(id reactor.CellID) string {
	if name, ok := s.names[id]; ok {
		return name
	}
	return id.String()
}

// Names returns every cell name in creation order.
func (s *Sheet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Formula returns a compute cell's formula source.
func (s *Sheet) Formula(name string) (string, error) {
	id, err := s.compute(name)
	if err != nil {
		return "", err
	}
	return s.formulas[id], nil
}

// AddInput creates a named input cell.
func (s *Sheet) AddInput(name string, v int64) error {
	if _, dup := s.cells[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateCell, name)
	}
	id := reactor.Input(s.reactor.CreateInput(v))
	s.register(name, id)
	return nil
}

// AddCompute creates a named compute cell over existing cells.
func (s *Sheet) AddCompute(name string, deps []string, src string) error {
	if _, dup := s.cells[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateCell, name)
	}
	fn, err := compileFor(src, len(deps))
	if err != nil {
		return fmt.Errorf("compute %q: %w", name, err)
	}
	ids, err := s.resolveNames(deps, nil)
	if err != nil {
		return fmt.Errorf("compute %q: %w", name, err)
	}
	return s.createCompute(name, ids, src, fn)
}

// Set changes an input's value and propagates.
func (s *Sheet) Set(name string, v int64) (err error) {
	id, ok := s.cells[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCell, name)
	}
	if id.Kind != reactor.KindInput {
		return fmt.Errorf("%w: %q", ErrNotInput, name)
	}
	defer recoverEval(&err)
	return s.reactor.ChangeInput(reactor.InputID(id.Index), v)
}

// Redefine replaces a compute cell's dependencies and formula and
// propagates from it.
func (s *Sheet) Redefine(name string, deps []string, src string) (err error) {
	id, err := s.compute(name)
	if err != nil {
		return err
	}
	fn, err := compileFor(src, len(deps))
	if err != nil {
		return fmt.Errorf("compute %q: %w", name, err)
	}
	ids, err := s.resolveNames(deps, nil)
	if err != nil {
		return fmt.Errorf("compute %q: %w", name, err)
	}

	prevSrc, prevFn := s.formulas[id], s.fns[id]
	s.formulas[id] = src
	s.fns[id] = fn

	defer recoverEval(&err)
	err = s.reactor.ChangeCompute(id, ids, fn)
	if err != nil && !reactor.IsStepsExceeded(err) {
		// rejected before anything changed
		s.formulas[id] = prevSrc
		s.fns[id] = prevFn
	}
	return err
}

// Value returns a cell's current value by name.
func (s *Sheet) Value(name string) (int64, bool, error) {
	id, ok := s.cells[name]
	if !ok {
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownCell, name)
	}
	return s.reactor.Lookup(id)
}

// Snapshot returns every cell's value in creation order.
func (s *Sheet) Snapshot() []CellValue {
	out := make([]CellValue, 0, len(s.order))
	for _, name := range s.order {
		id := s.cells[name]
		v, ok := s.reactor.Value(id)
		out = append(out, CellValue{Name: name, Cell: id, Value: v, Resolved: ok})
	}
	return out
}

// Stale returns the compute cells whose value is not what their formula
// yields for the current dependency values. Cells with an unresolved
// dependency are skipped. After every successful mutation the result is
// empty.
func (s *Sheet) Stale() []string {
	var stale []string
	for _, name := range s.order {
		cell := s.cells[name]
		if cell.Kind != reactor.KindCompute {
			continue
		}
		id := reactor.ComputeID(cell.Index)

		deps, err := s.reactor.Dependencies(id)
		if err != nil {
			continue
		}
		args := make([]int64, 0, len(deps))
		resolved := true
		for _, dep := range deps {
			v, ok, err := s.reactor.Lookup(dep)
			if err != nil || !ok {
				resolved = false
				break
			}
			args = append(args, v)
		}
		if !resolved {
			continue
		}

		got, ok := s.reactor.Value(cell)
		want, evalErr := safeEval(s.fns[id], args)
		if evalErr != nil || !ok || got != want {
			stale = append(stale, name)
		}
	}
	return stale
}

// createCompute registers the name before the cell exists so observers see
// it during the initial computation.
//
// A formula that fails on that first computation still leaves the cell
// created: it stays registered and unresolved until a later pass computes
// it, and the *formula.EvalError is returned.
func (s *Sheet) createCompute(name string, deps []reactor.CellID, src string, fn reactor.ComputeFunc[int64]) error {
	next := reactor.ComputeID(s.reactor.ComputeCount())
	s.register(name, reactor.Compute(next))
	s.formulas[next] = src
	s.fns[next] = fn

	err := s.tryCreate(deps, fn)
	var evalErr *formula.EvalError
	switch {
	case errors.As(err, &evalErr):
		return fmt.Errorf("compute %q created unresolved: %w", name, err)
	case err != nil:
		s.unregister(name)
		return fmt.Errorf("compute %q: %w", name, err)
	}
	return nil
}

func (s *Sheet) tryCreate(deps []reactor.CellID, fn reactor.ComputeFunc[int64]) (err error) {
	defer recoverEval(&err)
	_, err = s.reactor.CreateCompute(deps, fn)
	return err
}

func (s *Sheet) register(name string, id reactor.CellID) {
	s.cells[name] = id
	s.names[id] = name
	s.order = append(s.order, name)
}

func (s *Sheet) unregister(name string) {
	id := s.cells[name]
	delete(s.cells, name)
	delete(s.names, id)
	s.order = s.order[:len(s.order)-1]
	if id.Kind == reactor.KindCompute {
		delete(s.formulas, reactor.ComputeID(id.Index))
		delete(s.fns, reactor.ComputeID(id.Index))
	}
}

func (s *Sheet) compute(name string) (reactor.ComputeID, error) {
	id, ok := s.cells[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCell, name)
	}
	if id.Kind != reactor.KindCompute {
		return 0, fmt.Errorf("%w: %q", ErrNotCompute, name)
	}
	return reactor.ComputeID(id.Index), nil
}

// resolveNames maps names to handles, consulting pending for computes that
// are declared but not created yet.
func (s *Sheet) resolveNames(names []string, pending map[string]reactor.CellID) ([]reactor.CellID, error) {
	ids := make([]reactor.CellID, 0, len(names))
	for _, n := range names {
		if id, ok := s.cells[n]; ok {
			ids = append(ids, id)
			continue
		}
		if id, ok := pending[n]; ok {
			ids = append(ids, id)
			continue
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownCell, n)
	}
	return ids, nil
}

// recoverEval turns a formula runtime failure into an error. The pass that
// was running is abandoned where it stopped.
func recoverEval(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var evalErr *formula.EvalError
	if e, ok := r.(error); ok && errors.As(e, &evalErr) {
		*err = evalErr
		return
	}
	panic(r)
}

// compileFor compiles src for a cell with n dependencies.
func compileFor(src string, n int) (reactor.ComputeFunc[int64], error) {
	fn, err := formula.Compile(src)
	if err != nil {
		return nil, err
	}
	if err := formula.CheckArity(src, n); err != nil {
		return nil, err
	}
	return fn, nil
}

func safeEval(fn reactor.ComputeFunc[int64], args []int64) (v int64, err error) {
	defer recoverEval(&err)
	return fn(args), nil
}
