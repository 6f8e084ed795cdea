package reactor

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the recomputations of one propagation pass and
// enforces a maximum steps limit.
//
// Revisit-based propagation may recompute a cell several times, so the
// count is recomputations, not distinct cells. A limit of 0 disables the
// check.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
// Returns StepsExceededError once the limit is passed.
func (q *QuotaEnforcer) Check(passID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			PassID: passID,
			Steps:  q.current,
			Limit:  q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a pass exceeds the max steps quota.
//
// The pass stops where it is; cells already recomputed keep their new
// values and cells still queued keep their old ones.
type StepsExceededError struct {
	PassID string
	Steps  int
	Limit  int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("%s: pass %s exceeded max steps: %d steps > %d limit",
		ErrCodeStepsExceeded, e.PassID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
