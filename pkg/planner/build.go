package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/go-playground/validator/v10"
)

const (
	// MinSteps and MaxSteps bound generator output.
	MinSteps = 1
	MaxSteps = 10

	// FallbackActionID is the action of the deterministic fallback plan.
	FallbackActionID = "review_content"
)

// Resolver resolves action ids. *registry.Registry implements it.
type Resolver interface {
	Resolve(actionID string) (registry.Action, error)
}

// BuildPlan validates generator output and turns it into a draft plan.
func BuildPlan(
	resolver Resolver,
	validate *validator.Validate,
	text string,
	intent *models.StructuredIntent,
	specs []models.StepSpec,
	now time.Time,
) (*models.Plan, error) {
	if len(specs) < MinSteps {
		return nil, ErrEmptyPlan
	}

	if len(specs) > MaxSteps {
		return nil, &ValidationError{
			Index:  MaxSteps,
			Reason: fmt.Sprintf("%d steps exceed the limit of %d", len(specs), MaxSteps),
		}
	}

	plan := models.NewPlan(planTitle(intent, text), "", text, now)
	plan.Intent = intent

	for i, spec := range specs {
		err := validate.Struct(spec)
		if err != nil {
			return nil, &ValidationError{Index: i, ActionID: spec.ActionID, Reason: "invalid step", Cause: err}
		}

		action, err := resolver.Resolve(spec.ActionID)
		if err != nil {
			return nil, &ValidationError{Index: i, ActionID: spec.ActionID, Cause: err}
		}

		plan.Steps = append(plan.Steps, models.NewStep(spec, action.EstimatedDuration))
	}

	plan.Description = planDescription(plan)

	return plan, nil
}

// FallbackPlan builds the single-step plan used whenever interpretation or
// generation cannot produce a valid plan.
func FallbackPlan(
	resolver Resolver,
	text string,
	intent *models.StructuredIntent,
	reason error,
	now time.Time,
) (*models.Plan, error) {
	action, err := resolver.Resolve(FallbackActionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackUnavailable, err)
	}

	plan := models.NewPlan("Review available content", "", text, now)
	plan.Intent = intent
	plan.Fallback = true
	plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{
		Title:    "Review available content",
		Detail:   "Look through the available content that matches the request.",
		ActionID: FallbackActionID,
		Parameters: map[string]any{
			"query": text,
		},
	}, action.EstimatedDuration))
	plan.Description = planDescription(plan)

	if reason != nil {
		plan.Warnings = append(plan.Warnings, "plan generation fell back to a review step: "+reason.Error())
	}

	return plan, nil
}

func planTitle(intent *models.StructuredIntent, text string) string {
	if intent == nil {
		return truncate(text, 80)
	}

	switch {
	case intent.Create != nil && intent.Create.Topic != "":
		return "Create: " + intent.Create.Topic
	case intent.Search != nil && len(intent.Search.Keywords) > 0:
		return "Search: " + strings.Join(intent.Search.Keywords, ", ")
	default:
		return capitalize(string(intent.PrimaryAction)) + ": " + truncate(text, 60)
	}
}

func planDescription(plan *models.Plan) string {
	titles := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		titles = append(titles, step.Title)
	}

	return fmt.Sprintf("%d step(s): %s", len(plan.Steps), strings.Join(titles, " → "))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "…"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
