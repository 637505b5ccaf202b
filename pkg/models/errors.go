package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates a status change that is not an edge of the state machine.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStepNotFound indicates a step index or identifier outside the plan.
	ErrStepNotFound = errors.New("step not found")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	PlanID string
	StepID string // empty for plan-level transitions
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("step %s of plan %s: %v: %s -> %s", e.StepID, e.PlanID, ErrInvalidTransition, e.From, e.To)
	}

	return fmt.Sprintf("plan %s: %v: %s -> %s", e.PlanID, ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsInvalidTransition checks if an error indicates a rejected status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
