package models

import "time"

// Summary counts the steps of a plan by outcome. Pending includes steps
// that were still in progress when the summary was taken.
type Summary struct {
	PlanID    string     `json:"plan_id"`
	Status    PlanStatus `json:"status"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Pending   int        `json:"pending"`
}

// ProgressEventType distinguishes step-level from plan-level events.
type ProgressEventType string

const (
	ProgressEventStep ProgressEventType = "step"
	ProgressEventPlan ProgressEventType = "plan"
)

// ProgressEvent is a unit of observable execution state pushed to subscribers.
type ProgressEvent struct {
	Type         ProgressEventType `json:"type"`
	PlanID       string            `json:"plan_id"`
	StepID       string            `json:"step_id,omitempty"`
	StepIndex    int               `json:"step_index"`
	PlanProgress float64           `json:"plan_progress"`
	StepProgress *float64          `json:"step_progress,omitempty"`
	Status       string            `json:"status"`
	Message      string            `json:"message"`
	Summary      *Summary          `json:"summary,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// IsTerminal returns true for the final plan-level event of an execution.
func (e ProgressEvent) IsTerminal() bool {
	return e.Type == ProgressEventPlan && PlanStatus(e.Status).IsTerminal()
}

// NewStepEvent builds the event emitted for a step status transition.
func NewStepEvent(plan *Plan, index int, message string, now time.Time) ProgressEvent {
	step := plan.Steps[index]
	stepProgress := step.Progress

	return ProgressEvent{
		Type:         ProgressEventStep,
		PlanID:       plan.ID,
		StepID:       step.ID,
		StepIndex:    index,
		PlanProgress: plan.TotalProgress,
		StepProgress: &stepProgress,
		Status:       string(step.Status),
		Message:      message,
		Timestamp:    now,
	}
}

// NewPlanEvent builds the terminal event of a plan, carrying its summary.
func NewPlanEvent(plan *Plan, message string, now time.Time) ProgressEvent {
	summary := plan.Summary()

	return ProgressEvent{
		Type:         ProgressEventPlan,
		PlanID:       plan.ID,
		StepIndex:    -1,
		PlanProgress: plan.TotalProgress,
		Status:       string(plan.Status),
		Message:      message,
		Summary:      &summary,
		Timestamp:    now,
	}
}
