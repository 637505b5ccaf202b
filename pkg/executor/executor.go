// Package executor runs approved plans step by step, applying each action's
// failure policy and reporting progress as it goes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/planflow/pkg/log"
	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/otelhelper"
	"github.com/dukex/planflow/pkg/persistence"
	"github.com/dukex/planflow/pkg/protocol"
	"github.com/dukex/planflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Actions resolves action ids and their failure class.
type Actions interface {
	Resolve(actionID string) (registry.Action, error)
	Policy(actionID string) registry.FailureClass
}

// Publisher fans progress events out to subscribers. Publish must not block.
type Publisher interface {
	Publish(event models.ProgressEvent)
}

// Executor drives plans through their lifecycle. A plan is executed by at
// most one goroutine; different plans run concurrently.
type Executor struct {
	logger    *slog.Logger
	store     persistence.Store
	actions   Actions
	publisher Publisher
	tracer    trace.Tracer
	now       func() time.Time

	mu      sync.Mutex
	running map[string]chan struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracer enables tracing of plan and step execution.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithPublisher sets where progress events are broadcast.
func WithPublisher(publisher Publisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func New(logger *slog.Logger, store persistence.Store, actions Actions, opts ...Option) *Executor {
	e := &Executor{
		logger:  logger.With("module", "executor"),
		store:   store,
		actions: actions,
		tracer:  otelhelper.NoopTracer(),
		now:     time.Now,
		running: make(map[string]chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Approve moves a draft plan to approved.
func (e *Executor) Approve(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := e.update(ctx, planID, models.PlanStatusApproved, func(p *models.Plan) error {
		return p.Transition(models.PlanStatusApproved, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Plan approved", "plan_id", planID)

	return plan, nil
}

// Cancel stops a plan. Draft and approved plans are cancelled at once and
// archived. For an executing plan the request is recorded and honoured at
// the next step boundary; the returned snapshot is still executing.
func (e *Executor) Cancel(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := e.update(ctx, planID, models.PlanStatusCancelled, func(p *models.Plan) error {
		if p.Status == models.PlanStatusExecuting {
			p.CancelRequested = true

			return nil
		}

		return p.Transition(models.PlanStatusCancelled, e.now())
	})
	if err != nil {
		return nil, err
	}

	if plan.Status == models.PlanStatusExecuting {
		e.logger.InfoContext(ctx, "Cancellation requested", "plan_id", planID)

		return plan, nil
	}

	e.finish(ctx, plan, nil)

	return plan, nil
}

// CancelDraft cancels a plan only while it is still a draft. The status check
// and the transition happen in one store update, so a plan approved
// concurrently is left alone and a TransitionError is returned.
func (e *Executor) CancelDraft(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := e.update(ctx, planID, models.PlanStatusCancelled, func(p *models.Plan) error {
		if p.Status != models.PlanStatusDraft {
			return &models.TransitionError{
				PlanID: p.ID,
				From:   string(p.Status),
				To:     string(models.PlanStatusCancelled),
			}
		}

		return p.Transition(models.PlanStatusCancelled, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.finish(ctx, plan, nil)

	return plan, nil
}

// Execute runs an approved plan to a terminal status on the calling
// goroutine and returns the final snapshot. Step failures do not produce an
// error; they are recorded on the plan.
func (e *Executor) Execute(ctx context.Context, planID string, onProgress protocol.ProgressFunc) (*models.Plan, error) {
	plan, done, err := e.begin(ctx, planID)
	if err != nil {
		return nil, err
	}

	defer close(done)

	return e.run(ctx, plan, onProgress)
}

// Start moves an approved plan to executing and runs it in the background.
// Execution is detached from ctx cancellation; use Cancel to stop it.
func (e *Executor) Start(ctx context.Context, planID string, onProgress protocol.ProgressFunc) (*models.Plan, error) {
	plan, done, err := e.begin(ctx, planID)
	if err != nil {
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		_, err := e.run(runCtx, plan, onProgress)
		if err != nil {
			e.logger.ErrorContext(runCtx, "Plan execution aborted", "plan_id", planID, "error", err)
		}
	}()

	return plan, nil
}

// Wait blocks until the plan's execution has returned or ctx is done. It
// returns immediately for plans that are not running.
func (e *Executor) Wait(ctx context.Context, planID string) error {
	e.mu.Lock()
	done, ok := e.running[planID]
	e.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits for every running plan.
func (e *Executor) Drain(ctx context.Context) error {
	e.mu.Lock()
	pending := make([]chan struct{}, 0, len(e.running))
	for _, done := range e.running {
		pending = append(pending, done)
	}
	e.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Running returns the number of plans currently executing.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.running)
}

func (e *Executor) begin(ctx context.Context, planID string) (*models.Plan, chan struct{}, error) {
	plan, err := e.update(ctx, planID, models.PlanStatusExecuting, func(p *models.Plan) error {
		return p.Transition(models.PlanStatusExecuting, e.now())
	})
	if err != nil {
		return nil, nil, err
	}

	done := make(chan struct{})

	e.mu.Lock()
	e.running[planID] = done
	e.mu.Unlock()

	go func() {
		<-done

		e.mu.Lock()
		delete(e.running, planID)
		e.mu.Unlock()
	}()

	return plan, done, nil
}

func (e *Executor) run(ctx context.Context, plan *models.Plan, onProgress protocol.ProgressFunc) (*models.Plan, error) {
	planID := plan.ID
	logger := e.logger.With("plan_id", planID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.plan",
		attribute.String(otelhelper.PlanIDKey, planID),
		attribute.Int(otelhelper.PlanStepsKey, len(plan.Steps)),
	)
	defer span.End()

	logger.InfoContext(ctx, "Plan execution started", "steps", len(plan.Steps))

	emit := func(events ...models.ProgressEvent) {
		for _, event := range events {
			if onProgress != nil {
				onProgress(event)
			}

			if e.publisher != nil {
				e.publisher.Publish(event)
			}
		}
	}

	for index := range plan.Steps {
		snapshot, stopped, err := e.startStep(ctx, planID, index)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		if stopped {
			logger.InfoContext(ctx, "Plan cancelled", "at_step", index)
			span.SetAttributes(attribute.String(otelhelper.PlanStatusKey, string(snapshot.Status)))
			e.finish(ctx, snapshot, emit)

			return snapshot, nil
		}

		emit(models.NewStepEvent(snapshot, index, snapshot.Steps[index].Title, e.now()))

		snapshot, events, err := e.runStep(ctx, logger, snapshot, index, emit)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		emit(events...)

		if snapshot.Status.IsTerminal() {
			span.SetAttributes(attribute.String(otelhelper.PlanStatusKey, string(snapshot.Status)))
			otelhelper.SetError(span, errors.New(snapshot.Steps[index].Error))
			e.finish(ctx, snapshot, emit)

			return snapshot, nil
		}
	}

	// The end of the loop is a step boundary too: a cancel requested during
	// the last step wins over completion.
	snapshot, err := e.update(ctx, planID, models.PlanStatusCompleted, func(p *models.Plan) error {
		if p.CancelRequested || ctx.Err() != nil {
			return p.Transition(models.PlanStatusCancelled, e.now())
		}

		return p.Transition(models.PlanStatusCompleted, e.now())
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if snapshot.Status == models.PlanStatusCancelled {
		logger.InfoContext(ctx, "Plan cancelled", "at_step", len(snapshot.Steps))
	}

	otelhelper.SetOK(span, attribute.String(otelhelper.PlanStatusKey, string(snapshot.Status)))
	e.finish(ctx, snapshot, emit)

	return snapshot, nil
}

// startStep checks for cancellation at the step boundary and otherwise
// moves the step to in progress. A stopped plan is returned already cancelled.
func (e *Executor) startStep(ctx context.Context, planID string, index int) (*models.Plan, bool, error) {
	var stopped bool

	snapshot, err := e.store.Update(ctx, planID, func(p *models.Plan) error {
		now := e.now()

		if p.CancelRequested || ctx.Err() != nil {
			stopped = true

			return p.Transition(models.PlanStatusCancelled, now)
		}

		err := p.Steps[index].Start(p.ID, now)
		if err != nil {
			return err
		}

		p.RecalculateProgress()

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("start step %d: %w", index, err)
	}

	return snapshot, stopped, nil
}

// runStep invokes the step's handler and records the outcome. On a critical
// failure the remaining steps are skipped and the plan fails in the same
// update, so no other writer observes a half-aborted plan.
func (e *Executor) runStep(
	ctx context.Context,
	logger *slog.Logger,
	plan *models.Plan,
	index int,
	emit func(...models.ProgressEvent),
) (*models.Plan, []models.ProgressEvent, error) {
	step := plan.Steps[index]
	logger = logger.With("step_id", step.ID, "step_index", index, "action_id", step.ActionID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.Int(otelhelper.StepIndexKey, index),
		attribute.String(otelhelper.ActionIDKey, step.ActionID),
	)
	defer span.End()

	logger.DebugContext(ctx, "Step started")

	reporter := &stepReporter{executor: e, logger: logger, planID: plan.ID, index: index, emit: emit}
	handlerCtx := protocol.WithProgressReporter(log.NewContext(ctx, logger), reporter.report(ctx))

	result, stepErr := e.invoke(handlerCtx, plan.ID, index, step)
	reporter.close()

	critical := stepErr != nil && e.actions.Policy(step.ActionID) == registry.Critical

	var events []models.ProgressEvent

	snapshot, err := e.store.Update(ctx, plan.ID, func(p *models.Plan) error {
		events = events[:0]
		now := e.now()
		current := p.Steps[index]

		if stepErr == nil {
			err := current.Complete(p.ID, result, now)
			if err != nil {
				return err
			}

			p.RecalculateProgress()
			events = append(events, models.NewStepEvent(p, index, current.Title, now))

			return nil
		}

		err := current.Fail(p.ID, stepErr, now)
		if err != nil {
			return err
		}

		p.RecalculateProgress()
		events = append(events, models.NewStepEvent(p, index, current.Error, now))

		if !critical {
			return nil
		}

		for next := index + 1; next < len(p.Steps); next++ {
			err := p.Steps[next].Skip(p.ID, now)
			if err != nil {
				return err
			}

			p.RecalculateProgress()
			events = append(events, models.NewStepEvent(p, next, "skipped after critical failure", now))
		}

		return p.Transition(models.PlanStatusFailed, now)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, fmt.Errorf("record step %d: %w", index, err)
	}

	span.SetAttributes(attribute.String(otelhelper.StepStatusKey, string(snapshot.Steps[index].Status)))

	switch {
	case stepErr == nil:
		otelhelper.SetOK(span)
		logger.InfoContext(ctx, "Step completed", "duration", snapshot.Steps[index].ActualDuration)
	case critical:
		otelhelper.SetError(span, stepErr, attribute.String(otelhelper.ActionClassKey, string(registry.Critical)))
		logger.ErrorContext(ctx, "Critical step failed, aborting plan", "error", stepErr)
	default:
		otelhelper.SetError(span, stepErr, attribute.String(otelhelper.ActionClassKey, string(registry.Recoverable)))
		logger.WarnContext(ctx, "Step failed, continuing", "error", stepErr)
	}

	return snapshot, events, nil
}

// stepReporter turns handler progress reports into step progress and step
// events. Reports after close are dropped, so no progress event follows the
// step's outcome.
type stepReporter struct {
	executor *Executor
	logger   *slog.Logger
	planID   string
	index    int
	emit     func(...models.ProgressEvent)

	mu     sync.Mutex
	closed bool
}

func (r *stepReporter) report(ctx context.Context) protocol.ProgressReporter {
	return func(fraction float64) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.closed {
			return
		}

		var event *models.ProgressEvent

		_, err := r.executor.store.Update(ctx, r.planID, func(p *models.Plan) error {
			event = nil
			current := p.Steps[r.index]
			before := current.Progress

			current.SetProgress(fraction)

			if current.Progress == before {
				return nil
			}

			p.RecalculateProgress()
			next := models.NewStepEvent(p, r.index, current.Title, r.executor.now())
			event = &next

			return nil
		})
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to record step progress", "error", err)

			return
		}

		if event != nil {
			r.emit(*event)
		}
	}
}

func (r *stepReporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (e *Executor) invoke(ctx context.Context, planID string, index int, step *models.Step) (any, error) {
	wrap := func(err error) error {
		return &StepError{PlanID: planID, StepID: step.ID, StepIndex: index, ActionID: step.ActionID, Err: err}
	}

	action, err := e.actions.Resolve(step.ActionID)
	if err != nil {
		return nil, wrap(err)
	}

	result, err := invoke(ctx, action, step.Parameters)
	if err != nil {
		return nil, wrap(err)
	}

	return result, nil
}

// finish archives a terminal plan and emits its final event. The archive
// happens first so a subscriber reacting to the event finds the plan there.
func (e *Executor) finish(ctx context.Context, plan *models.Plan, emit func(...models.ProgressEvent)) {
	ctx = context.WithoutCancel(ctx)

	err := e.store.Archive(ctx, plan.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to archive plan", "plan_id", plan.ID, "error", err)
	}

	event := models.NewPlanEvent(plan, "plan "+string(plan.Status), e.now())

	if emit != nil {
		emit(event)
	} else if e.publisher != nil {
		e.publisher.Publish(event)
	}

	summary := plan.Summary()
	e.logger.InfoContext(ctx, "Plan finished",
		"plan_id", plan.ID,
		"status", plan.Status,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"pending", summary.Pending)
}

// update wraps Store.Update, turning a write to an archived plan into the
// transition error the caller asked for.
func (e *Executor) update(
	ctx context.Context,
	planID string,
	target models.PlanStatus,
	fn func(p *models.Plan) error,
) (*models.Plan, error) {
	plan, err := e.store.Update(ctx, planID, fn)
	if err == nil {
		return plan, nil
	}

	if persistence.IsPlanArchived(err) {
		current, getErr := e.store.Get(ctx, planID)
		if getErr == nil {
			return nil, &models.TransitionError{PlanID: planID, From: string(current.Status), To: string(target)}
		}
	}

	return nil, err
}
