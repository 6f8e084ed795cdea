package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellgraph/internal/ir"
)

func validSpec() *ir.GraphSpec {
	return &ir.GraphSpec{
		Name:   "pricing",
		Inputs: []ir.InputSpec{{Name: "price", Value: 120}, {Name: "qty", Value: 3}},
		Computes: []ir.ComputeSpec{
			{Name: "subtotal", Deps: []string{"price", "qty"}, Formula: "mul"},
			{Name: "discounted", Deps: []string{"subtotal"}, Formula: "js: args[0] * 9 / 10"},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateGraphValid(t *testing.T) {
	assert.Empty(t, ValidateGraph(validSpec()))
}

func TestValidateGraphErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.GraphSpec)
		want   []string
	}{
		{
			name:   "missing graph name",
			mutate: func(g *ir.GraphSpec) { g.Name = " " },
			want:   []string{ErrEmptyGraphName},
		},
		{
			name:   "empty cell name",
			mutate: func(g *ir.GraphSpec) { g.Inputs[1].Name = "" },
			want:   []string{ErrEmptyCellName, ErrUnknownDependency},
		},
		{
			name:   "duplicate name across kinds",
			mutate: func(g *ir.GraphSpec) { g.Computes[1].Name = "price" },
			want:   []string{ErrDuplicateCellName},
		},
		{
			name:   "unknown dependency",
			mutate: func(g *ir.GraphSpec) { g.Computes[0].Deps = []string{"price", "tax"} },
			want:   []string{ErrUnknownDependency},
		},
		{
			name: "forward reference",
			mutate: func(g *ir.GraphSpec) {
				g.Computes[0].Deps = []string{"discounted"}
				g.Computes[1].Deps = []string{"price"}
			},
			want: []string{ErrForwardReference},
		},
		{
			name:   "bad formula",
			mutate: func(g *ir.GraphSpec) { g.Computes[0].Formula = "frobnicate" },
			want:   []string{ErrInvalidFormula},
		},
		{
			name:   "no deps",
			mutate: func(g *ir.GraphSpec) { g.Computes[0].Deps = nil },
			want:   []string{ErrNoDependencies},
		},
		{
			name:   "self dependency",
			mutate: func(g *ir.GraphSpec) { g.Computes[1].Deps = []string{"discounted"} },
			want:   []string{ErrDependencyCycle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)
			assert.Equal(t, tt.want, codes(ValidateGraph(spec)))
		})
	}
}

func TestValidateGraphReportsEverything(t *testing.T) {
	spec := &ir.GraphSpec{
		Name:   "broken",
		Inputs: []ir.InputSpec{{Name: "a", Value: 1}, {Name: "a", Value: 2}},
		Computes: []ir.ComputeSpec{
			{Name: "b", Deps: []string{"zzz"}, Formula: "js: (("},
		},
	}

	errs := ValidateGraph(spec)
	require.Len(t, errs, 3)
	assert.Equal(t, []string{ErrDuplicateCellName, ErrUnknownDependency, ErrInvalidFormula}, codes(errs))
	assert.Equal(t, "inputs[1].name", errs[0].Field)
	assert.Equal(t, "computes[0].deps", errs[1].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "computes[0].deps", Message: "boom", Code: ErrUnknownDependency}
	assert.Equal(t, "[E103] computes[0].deps: boom", err.Error())
}
