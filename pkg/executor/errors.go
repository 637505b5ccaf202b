package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrStepExecution wraps every error returned by an action handler.
	ErrStepExecution = errors.New("step execution failed")

	// ErrTimeout indicates a handler exceeded the timeout of its action.
	ErrTimeout = errors.New("action timed out")

	// ErrHandlerPanic indicates a handler panicked.
	ErrHandlerPanic = errors.New("action handler panicked")
)

// StepError records which step failed and why.
type StepError struct {
	PlanID    string
	StepID    string
	StepIndex int
	ActionID  string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) of plan %s: action '%s': %v", e.StepIndex, e.StepID, e.PlanID, e.ActionID, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrStepExecution, e.Err}
}

// IsTimeout checks if an error indicates a handler timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
