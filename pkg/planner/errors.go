package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanValidation indicates generator output that cannot become a plan.
	ErrPlanValidation = errors.New("plan validation failed")

	// ErrEmptyPlan indicates a generator that returned no steps.
	ErrEmptyPlan = errors.New("generator returned no steps")

	// ErrMalformedIntent indicates interpreter output that is not a usable intent.
	ErrMalformedIntent = errors.New("malformed intent")

	// ErrMalformedPlan indicates generator output that could not be parsed.
	ErrMalformedPlan = errors.New("malformed plan output")

	// ErrEmptyRequest indicates a request without any text to interpret.
	ErrEmptyRequest = errors.New("request text is empty")

	// ErrFallbackUnavailable indicates the fallback action is not registered.
	ErrFallbackUnavailable = errors.New("fallback action is not registered")
)

// ValidationError names the step that made generator output invalid.
type ValidationError struct {
	Index    int
	ActionID string
	Reason   string
	Cause    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%v: step %d", ErrPlanValidation, e.Index)
	if e.ActionID != "" {
		msg += fmt.Sprintf(" (action '%s')", e.ActionID)
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrPlanValidation}
	}

	return []error{ErrPlanValidation, e.Cause}
}

// IsPlanValidation checks if an error is a plan validation error.
func IsPlanValidation(err error) bool {
	return errors.Is(err, ErrPlanValidation)
}

// IsEmptyPlan checks if an error indicates a generator returned no steps.
func IsEmptyPlan(err error) bool {
	return errors.Is(err, ErrEmptyPlan)
}

// IsMalformedIntent checks if an error indicates unusable interpreter output.
func IsMalformedIntent(err error) bool {
	return errors.Is(err, ErrMalformedIntent)
}
