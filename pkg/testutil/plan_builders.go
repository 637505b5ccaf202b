// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/planflow/pkg/models"
)

// CreateTestPlan creates a draft plan with one step that can be overridden.
func CreateTestPlan(overrides ...func(*models.Plan)) *models.Plan {
	plan := models.NewPlan("Test Plan", "", "test request", time.Now())
	plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{
		Title:    "Test Step",
		ActionID: "test_action",
	}, time.Second))

	for _, override := range overrides {
		override(plan)
	}

	return plan
}

// WithSteps replaces the steps with one step per action id, in order.
func WithSteps(actionIDs ...string) func(*models.Plan) {
	return func(p *models.Plan) {
		p.Steps = make([]*models.Step, 0, len(actionIDs))

		for _, id := range actionIDs {
			p.Steps = append(p.Steps, models.NewStep(models.StepSpec{
				Title:    "run " + id,
				ActionID: id,
			}, time.Second))
		}
	}
}

// WithStepParameters sets the parameters of every step.
func WithStepParameters(parameters map[string]any) func(*models.Plan) {
	return func(p *models.Plan) {
		for _, step := range p.Steps {
			step.Parameters = parameters
		}
	}
}

// WithTitle sets the plan title.
func WithTitle(title string) func(*models.Plan) {
	return func(p *models.Plan) {
		p.Title = title
	}
}

// WithCreatedAt sets the creation time.
func WithCreatedAt(created time.Time) func(*models.Plan) {
	return func(p *models.Plan) {
		p.CreatedAt = created
	}
}

// WithCompleted marks the plan and its steps as completed at the given time,
// bypassing the state machine.
func WithCompleted(at time.Time) func(*models.Plan) {
	return func(p *models.Plan) {
		for _, step := range p.Steps {
			step.Status = models.StepStatusCompleted
			step.Progress = 1
		}

		p.Status = models.PlanStatusCompleted
		p.TotalProgress = 1
		p.CompletedAt = &at
	}
}
