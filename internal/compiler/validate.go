package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cellgraph/internal/formula"
	"github.com/roach88/cellgraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyGraphName    = "E100" // graph name is required
	ErrEmptyCellName     = "E101" // cell name is required
	ErrDuplicateCellName = "E102" // name declared twice
	ErrUnknownDependency = "E103" // dependency names no cell
	ErrForwardReference  = "E104" // dependency declared after its dependent
	ErrInvalidFormula    = "E105" // formula does not compile
	ErrDependencyCycle   = "E106" // computes depend on each other
	ErrNoDependencies    = "E107" // compute with no deps is constant
)

// ValidationError represents a graph validation problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateGraph checks a compiled graph and returns every problem found.
//
// A forward reference is reported because a freshly built graph would leave
// the dependent unresolved until something upstream changes. Build itself
// accepts forward references.
func ValidateGraph(spec *ir.GraphSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "graph",
			Message: "graph name is required",
			Code:    ErrEmptyGraphName,
		})
	}

	// position of every name in creation order
	order := make(map[string]int)
	for i, name := range spec.CellNames() {
		field := cellField(spec, i)
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "cell name is required",
				Code:    ErrEmptyCellName,
			})
			continue
		}
		if _, dup := order[name]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate cell name %q", name),
				Code:    ErrDuplicateCellName,
			})
			continue
		}
		order[name] = i
	}

	base := len(spec.Inputs)
	for i, c := range spec.Computes {
		field := fmt.Sprintf("computes[%d]", i)

		if len(c.Deps) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".deps",
				Message: fmt.Sprintf("compute %q has no dependencies", c.Name),
				Code:    ErrNoDependencies,
			})
		}

		for _, dep := range c.Deps {
			pos, ok := order[dep]
			switch {
			case !ok:
				errs = append(errs, ValidationError{
					Field:   field + ".deps",
					Message: fmt.Sprintf("compute %q depends on unknown cell %q", c.Name, dep),
					Code:    ErrUnknownDependency,
				})
			case pos >= base+i && dep != c.Name:
				errs = append(errs, ValidationError{
					Field:   field + ".deps",
					Message: fmt.Sprintf("compute %q depends on %q which is declared later", c.Name, dep),
					Code:    ErrForwardReference,
				})
			}
		}

		if err := formula.Check(c.Formula); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".formula",
				Message: err.Error(),
				Code:    ErrInvalidFormula,
			})
		}
	}

	for _, cycle := range AnalyzeCycles(spec) {
		errs = append(errs, ValidationError{
			Field:   "computes",
			Message: cycle.Message,
			Code:    ErrDependencyCycle,
		})
	}

	return errs
}

func cellField(spec *ir.GraphSpec, i int) string {
	if i < len(spec.Inputs) {
		return fmt.Sprintf("inputs[%d].name", i)
	}
	return fmt.Sprintf("computes[%d].name", i-len(spec.Inputs))
}
