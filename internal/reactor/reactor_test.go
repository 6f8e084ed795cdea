package reactor

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReactor(opts ...Option) *Reactor[int] {
	base := []Option{
		WithPassGenerator(NewSequentialGenerator("test-pass")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New[int](append(base, opts...)...)
}

func sub(a []int) int { return a[0] - a[1] }
func mul(a []int) int { return a[0] * a[1] }
func plus(n int) ComputeFunc[int] {
	return func(a []int) int { return a[0] + n }
}
func times(n int) ComputeFunc[int] {
	return func(a []int) int { return a[0] * n }
}
func sum(a []int) int {
	total := 0
	for _, v := range a {
		total += v
	}
	return total
}
func maxOf(a []int) int {
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func mustCompute(t *testing.T, r *Reactor[int], deps []CellID, fn ComputeFunc[int]) ComputeID {
	t.Helper()
	id, err := r.CreateCompute(deps, fn)
	require.NoError(t, err)
	return id
}

func requireValue(t *testing.T, r *Reactor[int], id CellID, want int) {
	t.Helper()
	got, ok := r.Value(id)
	require.True(t, ok, "%s should be resolved", id)
	assert.Equal(t, want, got, "value of %s", id)
}

// requireFixedPoint checks every resolvable compute cell against its
// function applied to current dependency values.
func requireFixedPoint(t *testing.T, r *Reactor[int]) {
	t.Helper()
	for i := range r.computes {
		cell := r.computes[i]
		args := make([]int, 0, len(cell.deps))
		resolvable := true
		for _, dep := range cell.deps {
			v, ok := r.resolve(dep)
			if !ok {
				resolvable = false
				break
			}
			args = append(args, v)
		}
		if !resolvable {
			continue
		}
		require.True(t, cell.resolved, "compute:%d should be resolved", i)
		assert.Equal(t, cell.fn(args), cell.value, "compute:%d is stale", i)
	}
}

func TestReactor_CreateInput_ReturnsValue(t *testing.T) {
	r := newTestReactor()

	for _, v := range []int{0, 1, -7, 1 << 30} {
		id := r.CreateInput(v)
		requireValue(t, r, Input(id), v)
	}
	assert.Equal(t, 4, r.InputCount())
}

func TestReactor_HandlesAreSequential(t *testing.T) {
	r := newTestReactor()

	assert.Equal(t, InputID(0), r.CreateInput(1))
	assert.Equal(t, InputID(1), r.CreateInput(2))

	c0 := mustCompute(t, r, []CellID{Input(0)}, plus(1))
	c1 := mustCompute(t, r, []CellID{Input(1)}, plus(1))
	assert.Equal(t, ComputeID(0), c0)
	assert.Equal(t, ComputeID(1), c1)
}

func TestReactor_CreateCompute_Eager(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(4)
	b := r.CreateInput(6)

	c := mustCompute(t, r, []CellID{Input(a), Input(b)}, sum)

	requireValue(t, r, Compute(c), 10)
	assert.Equal(t, 1, r.Stats().Recomputes)
	assert.Equal(t, 0, r.Stats().Passes, "creation is not a propagation pass")
}

func TestReactor_CreateCompute_NoDependencies(t *testing.T) {
	r := newTestReactor()

	c := mustCompute(t, r, nil, func([]int) int { return 42 })

	requireValue(t, r, Compute(c), 42)
}

// The sequence run by the reference driver.
func TestReactor_ReferenceDriver(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(12)
	b := r.CreateInput(13)

	diff := mustCompute(t, r, []CellID{Input(a), Input(b)}, sub)
	requireValue(t, r, Compute(diff), -1)

	require.NoError(t, r.ChangeInput(a, 13))
	requireValue(t, r, Compute(diff), 0)

	require.NoError(t, r.ChangeCompute(diff, []CellID{Input(a), Input(b)}, mul))
	requireValue(t, r, Compute(diff), 169)

	top := mustCompute(t, r, []CellID{Input(a), Compute(diff)}, maxOf)
	requireValue(t, r, Compute(top), 169)

	require.NoError(t, r.ChangeInput(b, -2))
	requireValue(t, r, Compute(diff), -26)
	requireValue(t, r, Compute(top), 13)

	requireFixedPoint(t, r)
}

func TestReactor_ChangeInput_PropagatesTransitively(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	c0 := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c1 := mustCompute(t, r, []CellID{Compute(c0)}, plus(1))
	c2 := mustCompute(t, r, []CellID{Compute(c1)}, plus(1))

	require.NoError(t, r.ChangeInput(a, 10))

	requireValue(t, r, Compute(c0), 11)
	requireValue(t, r, Compute(c1), 12)
	requireValue(t, r, Compute(c2), 13)
}

func TestReactor_ChangeInput_NoDependents(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	require.NoError(t, r.ChangeInput(a, 2))

	requireValue(t, r, Input(a), 2)
	assert.Equal(t, 1, r.Stats().Passes)
	assert.Equal(t, 0, r.Stats().Recomputes)
}

func TestReactor_ChangeInput_SameValueStillPropagates(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(3)
	c := mustCompute(t, r, []CellID{Input(a)}, times(2))

	require.NoError(t, r.ChangeInput(a, 5))
	first, _ := r.Value(Compute(c))
	recomputes := r.Stats().Recomputes

	require.NoError(t, r.ChangeInput(a, 5))
	second, _ := r.Value(Compute(c))

	assert.Equal(t, first, second)
	assert.Equal(t, recomputes+1, r.Stats().Recomputes, "equal write must not short-circuit")
}

func TestReactor_ChangeInput_InvalidHandle(t *testing.T) {
	r := newTestReactor()
	r.CreateInput(1)

	err := r.ChangeInput(InputID(5), 2)
	require.Error(t, err)
	assert.True(t, IsNonexistentCell(err))

	err = r.ChangeInput(InputID(-1), 2)
	assert.True(t, IsNonexistentCell(err))
}

// a -> b -> c and a -> d -> c: d reads a stale sibling on its first visit
// and is corrected when its other dependency is refreshed.
func TestReactor_Diamond_RevisitReachesFixedPoint(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	b := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c := mustCompute(t, r, []CellID{Compute(b)}, times(2))
	d := mustCompute(t, r, []CellID{Input(a), Compute(c)}, sum)
	requireValue(t, r, Compute(d), 5)

	var seen []int
	r.AddObserver(ObserverFunc[int](func(ev Event[int]) {
		if ev.Type == EventRecomputed && ev.Cell == d {
			seen = append(seen, ev.Value)
		}
	}))

	require.NoError(t, r.ChangeInput(a, 10))

	// first visit: 10 + stale 4; second visit: 10 + 22
	assert.Equal(t, []int{14, 32}, seen)
	requireValue(t, r, Compute(b), 11)
	requireValue(t, r, Compute(c), 22)
	requireValue(t, r, Compute(d), 32)
	requireFixedPoint(t, r)
}

func TestReactor_Diamond_StepCount(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)
	b := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c := mustCompute(t, r, []CellID{Input(a)}, times(2))
	d := mustCompute(t, r, []CellID{Compute(b), Compute(c)}, sum)

	var steps int
	r.AddObserver(ObserverFunc[int](func(ev Event[int]) {
		if ev.Type == EventPassFinished {
			steps = ev.Steps
		}
	}))

	require.NoError(t, r.ChangeInput(a, 5))

	// b, c, then d once per refreshed dependency
	assert.Equal(t, 4, steps)
	requireValue(t, r, Compute(d), 16)
}

func TestReactor_ChangeCompute_RewiresEdges(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)
	b := r.CreateInput(2)
	x := r.CreateInput(100)

	c := mustCompute(t, r, []CellID{Input(a), Input(b)}, sum)
	require.True(t, r.index.has(Input(a), c))
	require.True(t, r.index.has(Input(b), c))

	require.NoError(t, r.ChangeCompute(c, []CellID{Input(b), Input(x)}, sum))

	assert.False(t, r.index.has(Input(a), c), "old edge must be removed")
	assert.True(t, r.index.has(Input(b), c))
	assert.True(t, r.index.has(Input(x), c), "new edge must be added")
	requireValue(t, r, Compute(c), 102)

	deps, err := r.Dependencies(c)
	require.NoError(t, err)
	assert.Equal(t, []CellID{Input(b), Input(x)}, deps)

	// writes to the dropped dependency no longer reach c
	before := r.Stats().Recomputes
	require.NoError(t, r.ChangeInput(a, 50))
	assert.Equal(t, before, r.Stats().Recomputes)
	requireValue(t, r, Compute(c), 102)
}

func TestReactor_ChangeCompute_PropagatesNewFormula(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(3)
	c := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	d := mustCompute(t, r, []CellID{Compute(c)}, times(10))
	requireValue(t, r, Compute(d), 40)

	require.NoError(t, r.ChangeCompute(c, []CellID{Input(a)}, times(3)))

	requireValue(t, r, Compute(c), 9)
	requireValue(t, r, Compute(d), 90)
	requireFixedPoint(t, r)
}

func TestReactor_ChangeCompute_InvalidHandle(t *testing.T) {
	r := newTestReactor()

	err := r.ChangeCompute(ComputeID(0), nil, sum)
	require.Error(t, err)
	assert.True(t, IsNonexistentCell(err))
}

func TestReactor_ChangeCompute_DependencyListIsCopied(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)
	b := r.CreateInput(2)

	deps := []CellID{Input(a)}
	c := mustCompute(t, r, deps, plus(0))
	deps[0] = Input(b)

	got, err := r.Dependencies(c)
	require.NoError(t, err)
	assert.Equal(t, []CellID{Input(a)}, got)
}

func TestReactor_Unresolved_DanglingHandle(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	c, err := r.CreateCompute([]CellID{Input(a), Input(InputID(9))}, sum)
	require.NoError(t, err, "dangling handles are silent by default")

	_, ok := r.Value(Compute(c))
	assert.False(t, ok)

	// dependents of an unresolved cell stay unresolved too
	d := mustCompute(t, r, []CellID{Compute(c)}, plus(1))
	_, ok = r.Value(Compute(d))
	assert.False(t, ok)

	require.NoError(t, r.ChangeInput(a, 2))
	_, ok = r.Value(Compute(d))
	assert.False(t, ok)
}

func TestReactor_Unresolved_KeepsStaleValue(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(7)
	c := mustCompute(t, r, []CellID{Input(a)}, times(2))
	requireValue(t, r, Compute(c), 14)

	require.NoError(t, r.ChangeCompute(c, []CellID{Compute(ComputeID(42))}, plus(1)))

	requireValue(t, r, Compute(c), 14)
}

// A forward reference resolves once the referenced cell exists and a pass
// reaches the referrer through it.
func TestReactor_ForwardReference(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	early := mustCompute(t, r, []CellID{Compute(ComputeID(1))}, times(100))
	_, ok := r.Value(Compute(early))
	require.False(t, ok)

	late := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	require.Equal(t, ComputeID(1), late)

	// creating late does not propagate, so early is still unresolved
	_, ok = r.Value(Compute(early))
	assert.False(t, ok)

	require.NoError(t, r.ChangeInput(a, 2))
	requireValue(t, r, Compute(early), 300)
}

func TestReactor_Value_InvalidHandlePanics(t *testing.T) {
	r := newTestReactor()
	r.CreateInput(1)

	assert.Panics(t, func() { r.Value(Input(InputID(3))) })
	assert.Panics(t, func() { r.Value(Compute(ComputeID(0))) })
	assert.Panics(t, func() { r.Value(CellID{}) })
}

func TestReactor_Lookup_InvalidHandle(t *testing.T) {
	r := newTestReactor()

	_, _, err := r.Lookup(Compute(ComputeID(0)))
	require.Error(t, err)
	assert.True(t, IsNonexistentCell(err))

	var re *Error
	require.ErrorAs(t, err, &re)
	require.NotNil(t, re.Cell)
	assert.Equal(t, Compute(ComputeID(0)), *re.Cell)
}

func TestReactor_CycleDetection_RejectsBeforeMutating(t *testing.T) {
	r := newTestReactor(WithCycleDetection())
	a := r.CreateInput(1)
	c0 := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c1 := mustCompute(t, r, []CellID{Compute(c0)}, plus(1))

	err := r.ChangeCompute(c0, []CellID{Compute(c1)}, plus(1))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "compute:0 -> compute:1 -> compute:0", re.Details["path"])

	deps, derr := r.Dependencies(c0)
	require.NoError(t, derr)
	assert.Equal(t, []CellID{Input(a)}, deps)
	assert.True(t, r.index.has(Input(a), c0))
	assert.False(t, r.index.has(Compute(c1), c0))
	requireValue(t, r, Compute(c0), 2)
}

func TestReactor_CycleDetection_SelfReference(t *testing.T) {
	r := newTestReactor(WithCycleDetection())

	_, err := r.CreateCompute([]CellID{Compute(ComputeID(0))}, plus(1))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Equal(t, 0, r.ComputeCount(), "nothing is created on error")
}

func TestReactor_CycleDetection_ForwardReferenceClosed(t *testing.T) {
	r := newTestReactor(WithCycleDetection())

	// compute:0 reads compute:1 before it exists
	_, err := r.CreateCompute([]CellID{Compute(ComputeID(1))}, plus(1))
	require.NoError(t, err)

	_, err = r.CreateCompute([]CellID{Compute(ComputeID(0))}, plus(1))
	assert.True(t, IsCycleError(err))
}

func TestReactor_UndetectedCycle_StoppedByMaxSteps(t *testing.T) {
	r := newTestReactor(WithMaxSteps(10))
	a := r.CreateInput(1)
	c0 := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c1 := mustCompute(t, r, []CellID{Compute(c0)}, plus(1))

	err := r.ChangeCompute(c0, []CellID{Compute(c1)}, plus(1))
	require.Error(t, err)
	assert.True(t, IsStepsExceeded(err))
	assert.True(t, IsStepsExceededError(err))

	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 10, se.Limit)
	assert.Equal(t, 11, se.Steps)
	assert.Equal(t, "test-pass-1", se.PassID)
}

func TestReactor_StrictHandles(t *testing.T) {
	r := newTestReactor(WithStrictHandles())
	a := r.CreateInput(1)

	_, err := r.CreateCompute([]CellID{Input(a), Input(InputID(4))}, sum)
	require.Error(t, err)
	assert.True(t, IsNonexistentCell(err))
	assert.Equal(t, 0, r.ComputeCount())

	c := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	err = r.ChangeCompute(c, []CellID{Compute(ComputeID(8))}, plus(1))
	assert.True(t, IsNonexistentCell(err))
	requireValue(t, r, Compute(c), 2)
}

func TestReactor_Observers(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	var events []Event[int]
	id := r.AddObserver(ObserverFunc[int](func(ev Event[int]) {
		events = append(events, ev)
	}))

	c := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	require.NoError(t, r.ChangeInput(a, 1))

	require.Len(t, events, 4)
	assert.Equal(t, EventRecomputed, events[0].Type)
	assert.Equal(t, "", events[0].PassID, "creation is outside any pass")
	assert.True(t, events[0].Changed)

	assert.Equal(t, EventPassStarted, events[1].Type)
	assert.Equal(t, Input(a), events[1].Origin)
	assert.Equal(t, "test-pass-1", events[1].PassID)

	assert.Equal(t, EventRecomputed, events[2].Type)
	assert.Equal(t, c, events[2].Cell)
	assert.Equal(t, 2, events[2].Value)
	assert.False(t, events[2].Changed, "same value reported as unchanged")

	assert.Equal(t, EventPassFinished, events[3].Type)
	assert.Equal(t, 1, events[3].Steps)

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}

	require.NoError(t, r.RemoveObserver(id))
	require.NoError(t, r.ChangeInput(a, 3))
	assert.Len(t, events, 4, "removed observer receives nothing")

	err := r.RemoveObserver(id)
	require.Error(t, err)
	assert.True(t, IsNonexistentObserver(err))
}

func TestReactor_Observers_UnresolvedEvent(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)

	var types []EventType
	r.AddObserver(ObserverFunc[int](func(ev Event[int]) {
		types = append(types, ev.Type)
	}))

	mustCompute(t, r, []CellID{Input(a), Compute(ComputeID(5))}, sum)

	assert.Equal(t, []EventType{EventUnresolved}, types)
}

func TestReactor_Dependents(t *testing.T) {
	r := newTestReactor()
	a := r.CreateInput(1)
	c0 := mustCompute(t, r, []CellID{Input(a)}, plus(1))
	c1 := mustCompute(t, r, []CellID{Input(a), Compute(c0)}, sum)
	c2 := mustCompute(t, r, []CellID{Input(a)}, plus(2))

	assert.Equal(t, []ComputeID{c0, c1, c2}, r.Dependents(Input(a)))
	assert.Equal(t, []ComputeID{c1}, r.Dependents(Compute(c0)))
	assert.Empty(t, r.Dependents(Compute(c2)))
}

// Random writes over a layered graph always settle at a fixed point.
func TestReactor_FixedPointAfterWriteSequence(t *testing.T) {
	r := newTestReactor()
	var inputs []InputID
	for i := 0; i < 4; i++ {
		inputs = append(inputs, r.CreateInput(i))
	}

	var cells []CellID
	for _, in := range inputs {
		cells = append(cells, Input(in))
	}
	// each layer reads a window of everything created so far
	for layer := 0; layer < 6; layer++ {
		n := len(cells)
		deps := []CellID{cells[n-1], cells[layer%n], cells[(layer*3)%n]}
		id := mustCompute(t, r, deps, func(a []int) int { return a[0] + 2*a[1] - a[2] })
		cells = append(cells, Compute(id))
	}

	writes := []struct {
		in  int
		val int
	}{{0, 5}, {3, -2}, {1, 1}, {2, 9}, {0, 5}, {3, 0}}
	for _, w := range writes {
		require.NoError(t, r.ChangeInput(inputs[w.in], w.val))
		requireFixedPoint(t, r)
	}
}
