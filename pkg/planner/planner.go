// Package planner is the boundary between the engine and the external intent
// interpreter and plan generator. Their failures never leave this package:
// any unusable output is replaced by the deterministic fallback plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/protocol"
	"github.com/go-playground/validator/v10"
)

// Planner produces draft plans from free text.
type Planner struct {
	logger      *slog.Logger
	interpreter protocol.Interpreter
	generator   protocol.Generator
	resolver    Resolver
	validate    *validator.Validate
	now         func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the time source used for plan timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

// WithValidator shares a validator instance.
func WithValidator(validate *validator.Validate) Option {
	return func(p *Planner) {
		p.validate = validate
	}
}

func New(
	logger *slog.Logger,
	interpreter protocol.Interpreter,
	generator protocol.Generator,
	resolver Resolver,
	opts ...Option,
) *Planner {
	p := &Planner{
		logger:      logger.With("module", "planner"),
		interpreter: interpreter,
		generator:   generator,
		resolver:    resolver,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CreatePlan interprets text, generates steps and builds a draft plan. The
// only errors returned are an empty request or a missing fallback action;
// collaborator failures produce a fallback plan with a warning instead.
func (p *Planner) CreatePlan(ctx context.Context, text string, hints map[string]any) (*models.Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyRequest
	}

	logger := p.logger.With("request", truncate(text, 120))

	intent, err := p.interpret(ctx, text, hints)
	if err != nil {
		logger.WarnContext(ctx, "Intent interpretation failed, using fallback plan", "error", err)

		return p.fallback(text, &models.StructuredIntent{PrimaryAction: models.IntentActionReview, RawText: text}, err)
	}

	logger = logger.With("primary_action", intent.PrimaryAction)

	specs, err := p.generate(ctx, intent)
	if err != nil {
		logger.WarnContext(ctx, "Plan generation failed, using fallback plan", "error", err)

		return p.fallback(text, intent, err)
	}

	plan, err := p.Build(text, intent, specs)
	if err != nil {
		logger.WarnContext(ctx, "Generated plan is invalid, using fallback plan", "error", err, "steps", len(specs))

		return p.fallback(text, intent, err)
	}

	logger.InfoContext(ctx, "Plan created", "plan_id", plan.ID, "steps", len(plan.Steps))

	return plan, nil
}

// Build validates step specs against the registry and returns a draft plan.
func (p *Planner) Build(text string, intent *models.StructuredIntent, specs []models.StepSpec) (*models.Plan, error) {
	return BuildPlan(p.resolver, p.validate, text, intent, specs, p.now())
}

func (p *Planner) interpret(ctx context.Context, text string, hints map[string]any) (*models.StructuredIntent, error) {
	if p.interpreter == nil {
		return nil, errors.New("no intent interpreter configured")
	}

	intent, err := p.interpreter.Interpret(ctx, text, hints)
	if err != nil {
		return nil, fmt.Errorf("interpret: %w", err)
	}

	if intent == nil {
		return nil, fmt.Errorf("interpret: %w: no intent returned", ErrMalformedIntent)
	}

	err = p.validate.Struct(intent)
	if err != nil {
		return nil, fmt.Errorf("interpret: %w: %w", ErrMalformedIntent, err)
	}

	if !intent.PrimaryAction.IsKnown() {
		return nil, fmt.Errorf("interpret: %w: unknown primary action '%s'", ErrMalformedIntent, intent.PrimaryAction)
	}

	if intent.RawText == "" {
		intent.RawText = text
	}

	return intent, nil
}

func (p *Planner) generate(ctx context.Context, intent *models.StructuredIntent) ([]models.StepSpec, error) {
	if p.generator == nil {
		return nil, errors.New("no plan generator configured")
	}

	specs, err := p.generator.Generate(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return specs, nil
}

func (p *Planner) fallback(text string, intent *models.StructuredIntent, reason error) (*models.Plan, error) {
	return FallbackPlan(p.resolver, text, intent, reason, p.now())
}
