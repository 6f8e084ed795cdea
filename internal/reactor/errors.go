package reactor

import (
	"errors"
	"fmt"
)

// Error reports a rejected reactor operation.
//
// Errors include:
//   - Nonexistent cell: a handle that names no cell of its kind
//   - Nonexistent observer: RemoveObserver with an unknown id
//   - Cycle detected: an edit would make a compute cell depend on itself
//   - Steps exceeded: a propagation pass ran past its step limit
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Cell is the offending handle, if any.
	Cell *CellID

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes reactor errors.
type ErrorCode string

const (
	// ErrCodeNonexistentCell indicates a handle outside its arena.
	ErrCodeNonexistentCell ErrorCode = "NONEXISTENT_CELL"

	// ErrCodeNonexistentObserver indicates an unknown observer id.
	ErrCodeNonexistentObserver ErrorCode = "NONEXISTENT_OBSERVER"

	// ErrCodeCycleDetected indicates a compute cell would reach itself.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeStepsExceeded indicates a pass hit the max steps limit.
	ErrCodeStepsExceeded ErrorCode = "STEPS_EXCEEDED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cell != nil {
		return fmt.Sprintf("%s: %s (cell=%s)", e.Code, e.Message, e.Cell)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNonexistentCell returns true if err reports an invalid handle.
// Uses errors.As to handle wrapped errors.
func IsNonexistentCell(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeNonexistentCell
	}
	return false
}

// IsNonexistentObserver returns true if err reports an unknown observer.
func IsNonexistentObserver(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeNonexistentObserver
	}
	return false
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycleDetected
	}
	return false
}

// IsStepsExceeded returns true if a pass was stopped by its step limit.
// Matches both Error with ErrCodeStepsExceeded and StepsExceededError.
func IsStepsExceeded(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeStepsExceeded
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewNonexistentCellError creates an Error for a handle outside its arena.
func NewNonexistentCellError(id CellID) *Error {
	return &Error{
		Code:    ErrCodeNonexistentCell,
		Message: "handle does not name an existing cell",
		Cell:    &id,
	}
}

// NewCycleError creates an Error for an edit that would close a cycle.
// path lists the cells from target back to target.
func NewCycleError(target CellID, path []CellID) *Error {
	return &Error{
		Code:    ErrCodeCycleDetected,
		Message: "dependency list would make the cell depend on itself",
		Cell:    &target,
		Details: map[string]string{"path": formatPath(path)},
	}
}

func newNonexistentObserverError(id ObserverID) *Error {
	return &Error{
		Code:    ErrCodeNonexistentObserver,
		Message: fmt.Sprintf("observer %d is not registered", id),
	}
}

func formatPath(path []CellID) string {
	s := ""
	for i, id := range path {
		if i > 0 {
			s += " -> "
		}
		s += id.String()
	}
	return s
}
