// Package models defines the plan and step data model of the execution engine.
package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Step is one action invocation within a plan.
type Step struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Detail            string         `json:"detail"`
	ActionID          string         `json:"action_id"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Status            StepStatus     `json:"status"`
	Progress          float64        `json:"progress"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	ActualDuration    time.Duration  `json:"actual_duration,omitempty"`
	Error             string         `json:"error,omitempty"`
	Result            any            `json:"result,omitempty"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
}

// NewStep creates a pending step from a generator spec.
func NewStep(spec StepSpec, estimated time.Duration) *Step {
	return &Step{
		ID:                uuid.NewString(),
		Title:             spec.Title,
		Detail:            spec.Detail,
		ActionID:          spec.ActionID,
		Parameters:        maps.Clone(spec.Parameters),
		Status:            StepStatusPending,
		EstimatedDuration: estimated,
	}
}

func (s *Step) transition(planID string, from, to StepStatus) error {
	if s.Status != from {
		return &TransitionError{PlanID: planID, StepID: s.ID, From: string(s.Status), To: string(to)}
	}

	s.Status = to

	return nil
}

// Start moves a pending step to in progress.
func (s *Step) Start(planID string, now time.Time) error {
	err := s.transition(planID, StepStatusPending, StepStatusInProgress)
	if err != nil {
		return err
	}

	s.StartedAt = &now
	s.Progress = 0

	return nil
}

// SetProgress raises the step progress; lower values are ignored.
func (s *Step) SetProgress(progress float64) {
	if s.Status != StepStatusInProgress {
		return
	}

	progress = clamp(progress)
	if progress > s.Progress {
		s.Progress = progress
	}
}

// Complete records a successful result.
func (s *Step) Complete(planID string, result any, now time.Time) error {
	err := s.transition(planID, StepStatusInProgress, StepStatusCompleted)
	if err != nil {
		return err
	}

	s.Result = result
	s.Progress = 1.0
	s.finish(now)

	return nil
}

// Fail records a handler error. Progress keeps its last value.
func (s *Step) Fail(planID string, cause error, now time.Time) error {
	err := s.transition(planID, StepStatusInProgress, StepStatusFailed)
	if err != nil {
		return err
	}

	if cause != nil {
		s.Error = cause.Error()
	}

	s.finish(now)

	return nil
}

// Skip marks a step that will never run.
func (s *Step) Skip(planID string, now time.Time) error {
	err := s.transition(planID, StepStatusPending, StepStatusSkipped)
	if err != nil {
		return err
	}

	s.FinishedAt = &now

	return nil
}

func (s *Step) finish(now time.Time) {
	s.FinishedAt = &now
	if s.StartedAt != nil {
		s.ActualDuration = now.Sub(*s.StartedAt)
	}
}

// Plan is an ordered collection of steps representing one user goal.
type Plan struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	UserIntent      string            `json:"user_intent"`
	Intent          *StructuredIntent `json:"intent,omitempty"`
	Steps           []*Step           `json:"steps"`
	Status          PlanStatus        `json:"status"`
	TotalProgress   float64           `json:"total_progress"`
	Fallback        bool              `json:"fallback"`
	Warnings        []string          `json:"warnings,omitempty"`
	CancelRequested bool              `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// NewPlan creates a draft plan. Steps are appended by the builder.
func NewPlan(title, description, userIntent string, now time.Time) *Plan {
	return &Plan{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		UserIntent:  userIntent,
		Steps:       make([]*Step, 0),
		Status:      PlanStatusDraft,
		CreatedAt:   now,
	}
}

// Transition applies a plan status change along a legal edge. Rejected
// transitions leave the plan untouched.
func (p *Plan) Transition(next PlanStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return &TransitionError{PlanID: p.ID, From: string(p.Status), To: string(next)}
	}

	p.Status = next

	switch {
	case next == PlanStatusApproved && p.ApprovedAt == nil:
		p.ApprovedAt = &now
	case next.IsTerminal() && p.CompletedAt == nil:
		p.CompletedAt = &now
	}

	if next == PlanStatusCompleted {
		p.TotalProgress = 1.0
	} else {
		p.RecalculateProgress()
	}

	return nil
}

// RecalculateProgress refreshes TotalProgress using equal step weights:
// completed and failed steps count fully, in-progress steps by their own
// progress, pending and skipped steps not at all.
func (p *Plan) RecalculateProgress() float64 {
	if p.Status == PlanStatusCompleted {
		p.TotalProgress = 1.0

		return p.TotalProgress
	}

	if len(p.Steps) == 0 {
		p.TotalProgress = 0

		return 0
	}

	var done float64

	for _, step := range p.Steps {
		switch step.Status {
		case StepStatusCompleted, StepStatusFailed:
			done++
		case StepStatusInProgress:
			done += step.Progress
		case StepStatusPending, StepStatusSkipped:
		}
	}

	p.TotalProgress = clamp(done / float64(len(p.Steps)))

	return p.TotalProgress
}

// StepIndex returns the position of the step with the given id, or -1.
func (p *Plan) StepIndex(stepID string) int {
	for i, step := range p.Steps {
		if step.ID == stepID {
			return i
		}
	}

	return -1
}

// Summary counts steps by status.
func (p *Plan) Summary() Summary {
	summary := Summary{
		PlanID: p.ID,
		Status: p.Status,
		Total:  len(p.Steps),
	}

	for _, step := range p.Steps {
		switch step.Status {
		case StepStatusCompleted:
			summary.Completed++
		case StepStatusFailed:
			summary.Failed++
		case StepStatusSkipped:
			summary.Skipped++
		case StepStatusPending, StepStatusInProgress:
			summary.Pending++
		}
	}

	return summary
}

// Clone returns a deep copy of the plan structure. Step parameters are
// copied one level deep; results are shared since handlers own them.
func (p *Plan) Clone() *Plan {
	clone := *p

	if p.Intent != nil {
		intent := *p.Intent
		clone.Intent = &intent
	}

	clone.Warnings = append([]string(nil), p.Warnings...)
	clone.Steps = make([]*Step, len(p.Steps))

	for i, step := range p.Steps {
		stepCopy := *step
		stepCopy.Parameters = maps.Clone(step.Parameters)
		clone.Steps[i] = &stepCopy
	}

	return &clone
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
