package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence"
	"github.com/dukex/planflow/pkg/protocol"
)

// PlanCreator turns free text into a draft plan. *planner.Planner implements it.
type PlanCreator interface {
	CreatePlan(ctx context.Context, text string, hints map[string]any) (*models.Plan, error)
}

// Engine drives plan lifecycle transitions. *executor.Executor implements it.
type Engine interface {
	Approve(ctx context.Context, planID string) (*models.Plan, error)
	Cancel(ctx context.Context, planID string) (*models.Plan, error)
	CancelDraft(ctx context.Context, planID string) (*models.Plan, error)
	Start(ctx context.Context, planID string, onProgress protocol.ProgressFunc) (*models.Plan, error)
}

// Plans is the application service behind the HTTP API and the CLI.
type Plans struct {
	logger  *slog.Logger
	creator PlanCreator
	store   persistence.Store
	engine  Engine
}

// NewPlans creates a new plans service.
func NewPlans(logger *slog.Logger, creator PlanCreator, store persistence.Store, engine Engine) *Plans {
	return &Plans{
		logger:  logger.With("module", "plans_service"),
		creator: creator,
		store:   store,
		engine:  engine,
	}
}

// Create interprets text into a draft plan and stores it.
func (s *Plans) Create(ctx context.Context, text string, hints map[string]any) (*models.Plan, error) {
	plan, err := s.creator.CreatePlan(ctx, text, hints)
	if err != nil {
		return nil, &ServiceError{Op: "Create", Code: "plan_creation_failed", Err: err}
	}

	err = s.store.Put(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}

	s.logger.InfoContext(ctx, "Draft plan stored",
		"plan_id", plan.ID,
		"steps", len(plan.Steps),
		"fallback", plan.Fallback)

	return plan, nil
}

// Get returns a snapshot of the plan, active or archived.
func (s *Plans) Get(ctx context.Context, planID string) (*models.Plan, error) {
	return s.store.Get(ctx, planID)
}

// Step returns one step of a plan.
func (s *Plans) Step(ctx context.Context, planID, stepID string) (*models.Step, error) {
	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	index := plan.StepIndex(stepID)
	if index < 0 {
		return nil, &ServiceError{
			Op:      "Step",
			Code:    "step_not_found",
			Message: fmt.Sprintf("plan %s has no step %s", planID, stepID),
			Err:     ErrStepNotFound,
		}
	}

	return plan.Steps[index], nil
}

// ListPlansRequest contains options for listing plans.
type ListPlansRequest struct {
	Status   string
	Archived *bool
	Limit    int
}

// List returns plans ordered by creation time.
func (s *Plans) List(ctx context.Context, req ListPlansRequest) ([]*models.Plan, error) {
	status := models.PlanStatus(req.Status)
	if status != "" && !status.IsValid() {
		return nil, NewValidationError("List", "invalid_status", "unknown plan status "+req.Status, ErrInvalidStatus)
	}

	if req.Limit < 0 {
		return nil, NewValidationError("List", "invalid_limit", "limit must not be negative", ErrInvalidRequest)
	}

	return s.store.List(ctx, persistence.ListFilter{
		Status:   status,
		Archived: req.Archived,
		Limit:    req.Limit,
	})
}

// Approve moves a draft plan to approved.
func (s *Plans) Approve(ctx context.Context, planID string) (*models.Plan, error) {
	return s.engine.Approve(ctx, planID)
}

// Execute starts an approved plan in the background and returns the
// executing snapshot. Progress is observed through the broadcaster.
func (s *Plans) Execute(ctx context.Context, planID string) (*models.Plan, error) {
	return s.engine.Start(ctx, planID, nil)
}

// Cancel cancels a plan, or requests cancellation of an executing one.
func (s *Plans) Cancel(ctx context.Context, planID string) (*models.Plan, error) {
	return s.engine.Cancel(ctx, planID)
}

// Summary counts the plan's steps by outcome.
func (s *Plans) Summary(ctx context.Context, planID string) (models.Summary, error) {
	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		return models.Summary{}, err
	}

	return plan.Summary(), nil
}

// ExpireDrafts cancels every draft plan created before cutoff and returns
// how many were cancelled. A plan approved or started after the listing is
// rejected by CancelDraft and skipped.
func (s *Plans) ExpireDrafts(ctx context.Context, cutoff time.Time) (int, error) {
	active := false

	drafts, err := s.store.List(ctx, persistence.ListFilter{
		Status:   models.PlanStatusDraft,
		Archived: &active,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list drafts: %w", err)
	}

	expired := 0

	for _, plan := range drafts {
		if !plan.CreatedAt.Before(cutoff) {
			continue
		}

		_, err := s.engine.CancelDraft(ctx, plan.ID)
		if err != nil {
			if IsConflictError(err) || errors.Is(err, ErrPlanNotFound) {
				continue
			}

			return expired, fmt.Errorf("failed to expire plan %s: %w", plan.ID, err)
		}

		s.logger.InfoContext(ctx, "Draft plan expired", "plan_id", plan.ID, "created_at", plan.CreatedAt)

		expired++
	}

	return expired, nil
}

// HealthCheck reports whether the store answers.
func (s *Plans) HealthCheck(ctx context.Context) (string, bool) {
	checker, ok := s.store.(interface{ HealthCheck(ctx context.Context) error })
	if !ok {
		return "Plan store is healthy", true
	}

	err := checker.HealthCheck(ctx)
	if err != nil {
		return "Plan store is unhealthy: " + err.Error(), false
	}

	return "Plan store is healthy", true
}
