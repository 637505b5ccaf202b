// Package persistence provides standardized error types for plan storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPlanNotFound indicates a plan was not found by the given identifier.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanAlreadyExists indicates a plan with the same identifier is already stored.
	ErrPlanAlreadyExists = errors.New("plan already exists")

	// ErrPlanArchived indicates a write against a read-only archived plan.
	ErrPlanArchived = errors.New("plan is archived")

	// ErrNotTerminal indicates an attempt to archive a plan that has not finished.
	ErrNotTerminal = errors.New("plan is not in a terminal status")
)

// PlanError wraps plan storage errors with additional context.
type PlanError struct {
	Op     string // Operation being performed (e.g., "Get", "Archive", "Update")
	PlanID string // Plan ID if applicable
	Err    error  // Underlying error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s operation failed for plan %s: %v", e.Op, e.PlanID, e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for plan errors.
func (e *PlanError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPlanError creates a new plan error with context.
func NewPlanError(op, planID string, err error) *PlanError {
	return &PlanError{
		Op:     op,
		PlanID: planID,
		Err:    err,
	}
}

// IsPlanNotFound checks if an error indicates a plan was not found.
func IsPlanNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}

// IsPlanArchived checks if an error indicates a write to an archived plan.
func IsPlanArchived(err error) bool {
	return errors.Is(err, ErrPlanArchived)
}
