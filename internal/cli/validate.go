package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cellgraph/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Graphs []GraphValidation          `json:"graphs,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// GraphValidation is the outcome for one graph.
type GraphValidation struct {
	Name   string                     `json:"name"`
	Cells  int                        `json:"cells"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graphs-dir>",
		Short: "Validate graph definitions",
		Long: `Validate the CUE graph definitions in a directory.

Reports duplicate and unknown cell names, forward references, formulas
that do not compile and dependency cycles.

Exits 1 if any graph is invalid, 2 if the directory cannot be loaded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, graphsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	graphs, err := loadGraphs(graphsDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code == ErrCodeCompile {
			return outputValidationErrors(formatter, ValidationResult{
				Errors: []compiler.ValidationError{{
					Field:   "load",
					Message: loadErr.Error(),
					Code:    loadErr.Code,
				}},
			})
		}
		return outputValidateError(formatter, loadErrorCode(err), err.Error())
	}

	result := ValidationResult{Valid: true}
	for i := range graphs {
		g := &graphs[i]
		formatter.VerboseLog("Validating graph: %s", g.Name)

		errs := compiler.ValidateGraph(g)
		result.Graphs = append(result.Graphs, GraphValidation{
			Name:   g.Name,
			Cells:  len(g.Inputs) + len(g.Computes),
			Errors: errs,
		})
		if len(errs) > 0 {
			result.Valid = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, g := range result.Graphs {
		fmt.Fprintf(formatter.Writer, "✓ %s (%d cells)\n", g.Name, g.Cells)
	}
	fmt.Fprintln(formatter.Writer, "✓ All graphs valid")
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, message)
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = false
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	if len(result.Graphs) == 0 {
		for _, err := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
		}
		return exitErr
	}

	for _, g := range result.Graphs {
		if len(g.Errors) == 0 {
			continue
		}
		fmt.Fprintf(formatter.Writer, "graph %s\n", g.Name)
		for _, err := range g.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return exitErr
}
