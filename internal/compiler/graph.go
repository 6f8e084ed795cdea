package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cellgraph/internal/ir"
)

// CompileError reports a CUE value that is not a well-formed graph.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileGraph parses a CUE value into a GraphSpec.
//
// The value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	spec, err := CompileGraph(v.LookupPath(cue.ParsePath("graph.pricing")))
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GraphSpec{}

	if sels := v.Path().Selectors(); len(sels) > 0 {
		last := sels[len(sels)-1]
		if last.LabelType() == cue.StringLabel {
			spec.Name = last.Unquoted()
		} else {
			spec.Name = last.String()
		}
	}

	var err error
	spec.Inputs, err = parseInputs(v)
	if err != nil {
		return nil, err
	}

	spec.Computes, err = parseComputes(v)
	if err != nil {
		return nil, err
	}

	if len(spec.Inputs) == 0 && len(spec.Computes) == 0 {
		return nil, &CompileError{
			Field:   "graph",
			Message: "graph declares no cells",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// CompileGraphs compiles every graph under the top-level "graph" field, in
// declaration order.
func CompileGraphs(root cue.Value) ([]ir.GraphSpec, error) {
	graphsVal := root.LookupPath(cue.ParsePath("graph"))
	if !graphsVal.Exists() {
		return nil, &CompileError{Field: "graph", Message: "no graph field found", Pos: root.Pos()}
	}

	iter, err := graphsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.GraphSpec
	for iter.Next() {
		spec, err := CompileGraph(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

func parseInputs(v cue.Value) ([]ir.InputSpec, error) {
	listVal := v.LookupPath(cue.ParsePath("inputs"))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var inputs []ir.InputSpec
	for iter.Next() {
		item := iter.Value()

		name, err := requiredString(item, "name", "inputs.name")
		if err != nil {
			return nil, err
		}

		valueVal := item.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{
				Field:   "inputs.value",
				Message: fmt.Sprintf("input %q needs a value", name),
				Pos:     item.Pos(),
			}
		}
		if valueVal.Kind() != cue.IntKind {
			return nil, &CompileError{
				Field:   "inputs.value",
				Message: fmt.Sprintf("input %q: value must be an integer, got %v", name, valueVal.Kind()),
				Pos:     valueVal.Pos(),
			}
		}
		n, err := valueVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}

		inputs = append(inputs, ir.InputSpec{Name: name, Value: n})
	}
	return inputs, nil
}

func parseComputes(v cue.Value) ([]ir.ComputeSpec, error) {
	listVal := v.LookupPath(cue.ParsePath("computes"))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var computes []ir.ComputeSpec
	for iter.Next() {
		item := iter.Value()

		name, err := requiredString(item, "name", "computes.name")
		if err != nil {
			return nil, err
		}

		formula, err := requiredString(item, "formula", "computes.formula")
		if err != nil {
			return nil, err
		}

		c := ir.ComputeSpec{Name: name, Formula: formula, Deps: []string{}}

		depsVal := item.LookupPath(cue.ParsePath("deps"))
		if depsVal.Exists() {
			depIter, err := depsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for depIter.Next() {
				dep, err := depIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				c.Deps = append(c.Deps, dep)
			}
		}

		computes = append(computes, c)
	}
	return computes, nil
}

func requiredString(v cue.Value, key, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", key),
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
