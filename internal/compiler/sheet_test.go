package compiler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellgraph/internal/formula"
	"github.com/roach88/cellgraph/internal/ir"
	"github.com/roach88/cellgraph/internal/reactor"
)

func testOptions(extra ...reactor.Option) []reactor.Option {
	return append([]reactor.Option{
		reactor.WithPassGenerator(reactor.NewSequentialGenerator("test-pass")),
		reactor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, extra...)
}

func requireValue(t *testing.T, s *Sheet, name string, want int64) {
	t.Helper()
	got, ok, err := s.Value(name)
	require.NoError(t, err)
	require.True(t, ok, "%s should be resolved", name)
	assert.Equal(t, want, got, name)
}

func TestBuildPricing(t *testing.T) {
	s, err := Build(validSpec(), testOptions()...)
	require.NoError(t, err)

	assert.Equal(t, "pricing", s.Name())
	assert.Equal(t, []string{"price", "qty", "subtotal", "discounted"}, s.Names())
	requireValue(t, s, "subtotal", 360)
	requireValue(t, s, "discounted", 324)

	require.NoError(t, s.Set("qty", 4))
	requireValue(t, s, "subtotal", 480)
	requireValue(t, s, "discounted", 432)
	assert.Empty(t, s.Stale())
}

func TestBuildRejectsBadFormulaBeforeCreatingCells(t *testing.T) {
	spec := validSpec()
	spec.Computes[1].Formula = "nope"

	_, err := Build(spec, testOptions()...)
	var compileErr *formula.CompileError
	require.ErrorAs(t, err, &compileErr)
}

func TestBuildDuplicateName(t *testing.T) {
	spec := validSpec()
	spec.Computes[0].Name = "price"

	_, err := Build(spec, testOptions()...)
	require.ErrorIs(t, err, ErrDuplicateCell)
}

func TestBuildForwardReferenceResolvesLater(t *testing.T) {
	spec := &ir.GraphSpec{
		Name:   "forward",
		Inputs: []ir.InputSpec{{Name: "x", Value: 2}},
		Computes: []ir.ComputeSpec{
			{Name: "a", Deps: []string{"b"}, Formula: "js: args[0] + 1"},
			{Name: "b", Deps: []string{"x"}, Formula: "js: args[0] * 10"},
		},
	}

	s, err := Build(spec, testOptions()...)
	require.NoError(t, err)

	requireValue(t, s, "b", 20)
	_, ok, err := s.Value("a")
	require.NoError(t, err)
	assert.False(t, ok, "a was created before b existed")

	require.NoError(t, s.Set("x", 3))
	requireValue(t, s, "b", 30)
	requireValue(t, s, "a", 31)
}

func TestBuildForwardReferenceStrict(t *testing.T) {
	spec := &ir.GraphSpec{
		Name:   "forward",
		Inputs: []ir.InputSpec{{Name: "x", Value: 2}},
		Computes: []ir.ComputeSpec{
			{Name: "a", Deps: []string{"b"}, Formula: "sum"},
			{Name: "b", Deps: []string{"x"}, Formula: "sum"},
		},
	}

	_, err := Build(spec, testOptions(reactor.WithStrictHandles())...)
	require.Error(t, err)
	assert.True(t, reactor.IsNonexistentCell(err))
}

func TestSheetAddAndRedefine(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)
	require.NoError(t, s.AddInput("a", 1))
	require.NoError(t, s.AddInput("b", 2))
	require.NoError(t, s.AddCompute("total", []string{"a", "b"}, "sum"))
	requireValue(t, s, "total", 3)

	require.NoError(t, s.Redefine("total", []string{"a", "b"}, "mul"))
	requireValue(t, s, "total", 2)

	src, err := s.Formula("total")
	require.NoError(t, err)
	assert.Equal(t, "mul", src)

	id, ok := s.Cell("total")
	require.True(t, ok)
	assert.Equal(t, "total", s.CellName(id))
	assert.Equal(t, "compute:9", s.CellName(reactor.Compute(9)))
}

func TestSheetErrors(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)
	require.NoError(t, s.AddInput("a", 1))
	require.NoError(t, s.AddCompute("c", []string{"a"}, "neg"))

	assert.ErrorIs(t, s.AddInput("a", 5), ErrDuplicateCell)
	assert.ErrorIs(t, s.AddCompute("d", []string{"zzz"}, "sum"), ErrUnknownCell)
	assert.ErrorIs(t, s.Set("c", 1), ErrNotInput)
	assert.ErrorIs(t, s.Set("zzz", 1), ErrUnknownCell)
	assert.ErrorIs(t, s.Redefine("a", []string{"a"}, "sum"), ErrNotCompute)

	_, _, err := s.Value("zzz")
	assert.ErrorIs(t, err, ErrUnknownCell)

	_, err = s.Formula("a")
	assert.ErrorIs(t, err, ErrNotCompute)
}

func TestSheetRecoversFormulaFailure(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)
	require.NoError(t, s.AddInput("x", 1))
	require.NoError(t, s.AddCompute("guarded", []string{"x"}, "js: args[0] > 5 ? null : args[0]"))

	err := s.Set("x", 10)
	var evalErr *formula.EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestSheetChecksArityBeforeCreating(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)

	var compileErr *formula.CompileError
	require.ErrorAs(t, s.AddCompute("m", nil, "max"), &compileErr)
	_, ok := s.Cell("m")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Reactor().ComputeCount())

	require.NoError(t, s.AddInput("x", 4))
	require.NoError(t, s.AddCompute("m", []string{"x"}, "max"))
	requireValue(t, s, "m", 4)

	require.ErrorAs(t, s.Redefine("m", nil, "first"), &compileErr)
	src, err := s.Formula("m")
	require.NoError(t, err)
	assert.Equal(t, "max", src)
	deps, err := s.Reactor().Dependencies(0)
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestBuildChecksArity(t *testing.T) {
	spec := &ir.GraphSpec{
		Name:     "g",
		Computes: []ir.ComputeSpec{{Name: "m", Deps: []string{}, Formula: "max"}},
	}

	_, err := Build(spec, testOptions()...)
	var compileErr *formula.CompileError
	require.ErrorAs(t, err, &compileErr)
}

func TestSheetCreateFailureLeavesCellUnresolved(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)
	require.NoError(t, s.AddInput("x", 10))

	err := s.AddCompute("g", []string{"x"}, "js: args[0] > 5 ? null : args[0]")
	var evalErr *formula.EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), "created unresolved")

	_, ok := s.Cell("g")
	require.True(t, ok, "the cell exists after a failed first computation")
	_, resolved, err := s.Value("g")
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.ErrorIs(t, s.AddCompute("g", []string{"x"}, "sum"), ErrDuplicateCell)

	require.NoError(t, s.Set("x", 1))
	requireValue(t, s, "g", 1)
}

func TestSheetSnapshot(t *testing.T) {
	s := NewSheet("adhoc", testOptions()...)
	require.NoError(t, s.AddInput("a", 7))
	require.NoError(t, s.AddCompute("b", []string{"a"}, "neg"))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, CellValue{Name: "a", Cell: reactor.Input(0), Value: 7, Resolved: true}, snap[0])
	assert.Equal(t, CellValue{Name: "b", Cell: reactor.Compute(0), Value: -7, Resolved: true}, snap[1])
}
