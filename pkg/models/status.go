package models

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"     // Generated, awaiting review
	PlanStatusApproved  PlanStatus = "approved"  // Reviewed, ready to execute
	PlanStatusExecuting PlanStatus = "executing" // Steps are running
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// planTransitions lists every legal edge of the plan state machine.
// Terminal statuses have no outgoing edges.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusDraft:     {PlanStatusApproved, PlanStatusCancelled},
	PlanStatusApproved:  {PlanStatusExecuting, PlanStatusCancelled},
	PlanStatusExecuting: {PlanStatusCompleted, PlanStatusFailed, PlanStatusCancelled},
	PlanStatusCompleted: {},
	PlanStatusFailed:    {},
	PlanStatusCancelled: {},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// IsTerminal returns true for Completed, Failed and Cancelled.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed || s == PlanStatusCancelled
}

// IsValid returns true if s is one of the known plan statuses.
func (s PlanStatus) IsValid() bool {
	_, ok := planTransitions[s]

	return ok
}

// StepStatus represents the execution state of a single step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// IsTerminal returns true once a step can no longer change.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}
