package executor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/executor"
	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence/memory"
	"github.com/dukex/planflow/pkg/protocol"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/dukex/planflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store    *memory.Store
	registry *registry.Registry
	bus      *eventbus.Broadcaster
	executor *executor.Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore(logger)
	reg := registry.NewRegistry(logger)
	bus := eventbus.NewBroadcaster(logger, eventbus.WithBufferSize(256))

	t.Cleanup(bus.Close)

	return &fixture{
		store:    store,
		registry: reg,
		bus:      bus,
		executor: executor.New(logger, store, reg, executor.WithPublisher(bus)),
	}
}

func succeed(result any) func(context.Context, map[string]any) (any, error) {
	return func(context.Context, map[string]any) (any, error) {
		return result, nil
	}
}

func fail(msg string) func(context.Context, map[string]any) (any, error) {
	return func(context.Context, map[string]any) (any, error) {
		return nil, errors.New(msg)
	}
}

// putPlan stores a plan with one step per action id, in order.
func (f *fixture) putPlan(t *testing.T, actionIDs ...string) *models.Plan {
	t.Helper()

	plan := testutil.CreateTestPlan(testutil.WithSteps(actionIDs...))

	require.NoError(t, f.store.Put(t.Context(), plan))

	return plan
}

func (f *fixture) approved(t *testing.T, actionIDs ...string) *models.Plan {
	t.Helper()

	plan := f.putPlan(t, actionIDs...)

	_, err := f.executor.Approve(t.Context(), plan.ID)
	require.NoError(t, err)

	return plan
}

type recorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *recorder) record(event models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) all() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.ProgressEvent(nil), r.events...)
}

func assertMonotonic(t *testing.T, events []models.ProgressEvent) {
	t.Helper()

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].PlanProgress, events[i-1].PlanProgress, "event %d", i)
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("find_title_slides", succeed("titles"))
	f.registry.MustRegister("find_data_slides", succeed("data"))
	f.registry.MustRegister("export_presentation", succeed("deck.pptx"))

	plan := f.approved(t, "find_title_slides", "find_data_slides", "export_presentation")

	rec := &recorder{}
	final, err := f.executor.Execute(t.Context(), plan.ID, rec.record)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCompleted, final.Status)
	assert.InDelta(t, 1.0, final.TotalProgress, 0.0001)
	require.NotNil(t, final.CompletedAt)

	for _, step := range final.Steps {
		assert.Equal(t, models.StepStatusCompleted, step.Status)
		assert.InDelta(t, 1.0, step.Progress, 0.0001)
		require.NotNil(t, step.FinishedAt)
	}

	assert.Equal(t, "deck.pptx", final.Steps[2].Result)

	events := rec.all()
	require.Len(t, events, 7)
	assertMonotonic(t, events)

	assert.Equal(t, string(models.StepStatusInProgress), events[0].Status)
	assert.InDelta(t, 0.0, events[0].PlanProgress, 0.0001)
	assert.Equal(t, "run find_title_slides", events[0].Message)
	assert.InDelta(t, 1.0/3.0, events[2].PlanProgress, 0.0001)

	last := events[len(events)-1]
	assert.True(t, last.IsTerminal())
	assert.InDelta(t, 1.0, last.PlanProgress, 0.0001)
	require.NotNil(t, last.Summary)
	assert.Equal(t, 3, last.Summary.Completed)

	assert.True(t, f.store.IsArchived(plan.ID))
}

func TestExecute_HandlerReportsProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("search_content", func(ctx context.Context, _ map[string]any) (any, error) {
		protocol.ReportProgress(ctx, 0.25)
		protocol.ReportProgress(ctx, 0.5)
		protocol.ReportProgress(ctx, 0.4)
		protocol.ReportProgress(ctx, 0.5)

		return "found", nil
	})
	f.registry.MustRegister("export_presentation", succeed(nil))

	plan := f.approved(t, "search_content", "export_presentation")

	rec := &recorder{}
	final, err := f.executor.Execute(t.Context(), plan.ID, rec.record)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, final.Status)

	events := rec.all()
	// Repeated or lower reports add no event: start, 0.25, 0.5, completion, two events for
	// the second step and the terminal event.
	require.Len(t, events, 7)
	assertMonotonic(t, events)

	for i, want := range []float64{0, 0.25, 0.5} {
		assert.Equal(t, string(models.StepStatusInProgress), events[i].Status)
		require.NotNil(t, events[i].StepProgress)
		assert.InDelta(t, want, *events[i].StepProgress, 0.0001)
	}

	assert.InDelta(t, 0.25, events[2].PlanProgress, 0.0001)
	assert.Equal(t, string(models.StepStatusCompleted), events[3].Status)
}

func TestExecute_LateProgressReportIsDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var saved context.Context

	f.registry.MustRegister("search_content", func(ctx context.Context, _ map[string]any) (any, error) {
		saved = ctx

		return nil, nil
	})

	plan := f.approved(t, "search_content")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, saved)

	sub := f.bus.Subscribe(plan.ID)
	defer sub.Close()

	protocol.ReportProgress(saved, 0.9)

	got, err := f.store.Get(t.Context(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Steps[0].Progress, got.Steps[0].Progress)

	select {
	case event := <-sub.C:
		t.Fatalf("unexpected event after completion: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExecute_RecoverableFailureContinues(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("search_content", succeed(nil))
	f.registry.MustRegister("find_data_slides", fail("index unavailable"))
	f.registry.MustRegister("export_presentation", succeed(nil))

	plan := f.approved(t, "search_content", "find_data_slides", "export_presentation")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCompleted, final.Status)
	assert.Equal(t, models.StepStatusCompleted, final.Steps[0].Status)
	assert.Equal(t, models.StepStatusFailed, final.Steps[1].Status)
	assert.Contains(t, final.Steps[1].Error, "index unavailable")
	assert.Equal(t, models.StepStatusCompleted, final.Steps[2].Status)

	summary := final.Summary()
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
}

func TestExecute_CriticalFailureSkipsRemainingSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var laterCalls atomic.Int32

	later := func(context.Context, map[string]any) (any, error) {
		laterCalls.Add(1)

		return nil, nil
	}

	f.registry.MustRegister("search_content", succeed(nil))
	f.registry.MustRegister("create_slide", fail("render failed"), registry.WithCritical())
	f.registry.MustRegister("reorder_slides", later)
	f.registry.MustRegister("export_presentation", later)

	plan := f.approved(t, "search_content", "create_slide", "reorder_slides", "export_presentation")

	rec := &recorder{}
	final, err := f.executor.Execute(t.Context(), plan.ID, rec.record)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusFailed, final.Status)
	assert.Equal(t, models.StepStatusFailed, final.Steps[1].Status)
	assert.Equal(t, models.StepStatusSkipped, final.Steps[2].Status)
	assert.Equal(t, models.StepStatusSkipped, final.Steps[3].Status)
	assert.Nil(t, final.Steps[2].StartedAt)
	assert.Zero(t, laterCalls.Load())
	require.NotNil(t, final.CompletedAt)

	events := rec.all()
	// 2 + 2 step transitions, 2 skips, 1 terminal.
	require.Len(t, events, 7)
	assertMonotonic(t, events)

	for _, event := range events {
		if event.StepIndex > 1 {
			assert.NotEqual(t, string(models.StepStatusInProgress), event.Status)
		}
	}

	last := events[len(events)-1]
	assert.Equal(t, string(models.PlanStatusFailed), last.Status)
	assert.Equal(t, 2, last.Summary.Skipped)
}

func TestExecute_FailurePolicyTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		class      registry.FailureClass
		wantStatus models.PlanStatus
		wantLast   models.StepStatus
	}{
		{"recoverable", registry.Recoverable, models.PlanStatusCompleted, models.StepStatusCompleted},
		{"critical", registry.Critical, models.PlanStatusFailed, models.StepStatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.registry.MustRegister("flaky", fail("boom"), registry.WithClass(tt.class))
			f.registry.MustRegister("after", succeed(nil))

			plan := f.approved(t, "flaky", "after")

			final, err := f.executor.Execute(t.Context(), plan.ID, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, final.Status)
			assert.Equal(t, models.StepStatusFailed, final.Steps[0].Status)
			assert.Equal(t, tt.wantLast, final.Steps[1].Status)
		})
	}
}

func TestExecute_CancelDuringStepTakesEffectAtBoundary(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	started := make(chan struct{})
	release := make(chan struct{})

	var laterCalls atomic.Int32

	f.registry.MustRegister("first", succeed(nil))
	f.registry.MustRegister("slow", func(context.Context, map[string]any) (any, error) {
		close(started)
		<-release

		return "done", nil
	})
	f.registry.MustRegister("later", func(context.Context, map[string]any) (any, error) {
		laterCalls.Add(1)

		return nil, nil
	})

	plan := f.approved(t, "first", "slow", "later", "later")

	_, err := f.executor.Start(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	<-started

	snapshot, err := f.executor.Cancel(t.Context(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusExecuting, snapshot.Status)
	assert.True(t, snapshot.CancelRequested)

	close(release)

	require.NoError(t, f.executor.Wait(t.Context(), plan.ID))

	final, err := f.store.Get(t.Context(), plan.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCancelled, final.Status)
	assert.Equal(t, models.StepStatusCompleted, final.Steps[1].Status)
	assert.Equal(t, models.StepStatusPending, final.Steps[2].Status)
	assert.Equal(t, models.StepStatusPending, final.Steps[3].Status)
	assert.Zero(t, laterCalls.Load())
	assert.True(t, f.store.IsArchived(plan.ID))
}

func TestExecute_CancelDuringLastStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lastErr    error
		wantPlan   models.PlanStatus
		wantLast   models.StepStatus
		registerAs []registry.Option
	}{
		{
			name:     "success becomes cancelled",
			wantPlan: models.PlanStatusCancelled,
			wantLast: models.StepStatusCompleted,
		},
		{
			name:     "recoverable failure becomes cancelled",
			lastErr:  errors.New("flaky"),
			wantPlan: models.PlanStatusCancelled,
			wantLast: models.StepStatusFailed,
		},
		{
			name:       "critical failure still fails the plan",
			lastErr:    errors.New("broken"),
			wantPlan:   models.PlanStatusFailed,
			wantLast:   models.StepStatusFailed,
			registerAs: []registry.Option{registry.WithCritical()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)

			started := make(chan struct{})
			release := make(chan struct{})

			f.registry.MustRegister("first", succeed(nil))
			f.registry.MustRegister("slow", func(context.Context, map[string]any) (any, error) {
				close(started)
				<-release

				return nil, tt.lastErr
			}, tt.registerAs...)

			plan := f.approved(t, "first", "slow")

			_, err := f.executor.Start(t.Context(), plan.ID, nil)
			require.NoError(t, err)

			<-started

			snapshot, err := f.executor.Cancel(t.Context(), plan.ID)
			require.NoError(t, err)
			assert.True(t, snapshot.CancelRequested)

			close(release)

			require.NoError(t, f.executor.Wait(t.Context(), plan.ID))

			final, err := f.store.Get(t.Context(), plan.ID)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPlan, final.Status)
			assert.Equal(t, models.StepStatusCompleted, final.Steps[0].Status)
			assert.Equal(t, tt.wantLast, final.Steps[1].Status)
			assert.NotNil(t, final.CompletedAt)
			assert.True(t, f.store.IsArchived(plan.ID))
		})
	}
}

func TestExecute_ContextCancelledBeforeFirstStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("noop", succeed(nil))

	plan := f.approved(t, "noop")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	final, err := f.executor.Execute(ctx, plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCancelled, final.Status)
	assert.Equal(t, models.StepStatusPending, final.Steps[0].Status)
}

func TestExecute_TimeoutFailsStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	release := make(chan struct{})
	defer close(release)

	f.registry.MustRegister("stuck", func(context.Context, map[string]any) (any, error) {
		<-release

		return nil, nil
	}, registry.WithTimeout(20*time.Millisecond), registry.WithCritical())
	f.registry.MustRegister("after", succeed(nil))

	plan := f.approved(t, "stuck", "after")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusFailed, final.Status)
	assert.Equal(t, models.StepStatusFailed, final.Steps[0].Status)
	assert.Contains(t, final.Steps[0].Error, executor.ErrTimeout.Error())
	assert.Equal(t, models.StepStatusSkipped, final.Steps[1].Status)
}

func TestExecute_TimeoutNotReachedSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("quick", succeed(42), registry.WithTimeout(time.Second))

	plan := f.approved(t, "quick")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCompleted, final.Status)
	assert.Equal(t, 42, final.Steps[0].Result)
}

func TestExecute_HandlerPanicIsStepFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("explode", func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	})

	plan := f.approved(t, "explode")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusCompleted, final.Status)
	assert.Equal(t, models.StepStatusFailed, final.Steps[0].Status)
	assert.Contains(t, final.Steps[0].Error, "kaboom")
}

func TestExecute_UnregisteredActionFailsStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	plan := f.approved(t, "removed_action")

	final, err := f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, final.Steps[0].Status)
	assert.Contains(t, final.Steps[0].Error, registry.ErrUnknownAction.Error())
}

func TestExecute_ParametersReachHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var got map[string]any

	f.registry.MustRegister("capture", func(_ context.Context, params map[string]any) (any, error) {
		got = params

		return nil, nil
	})

	plan := models.NewPlan("params", "", "", time.Now())
	plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{
		Title:      "capture",
		ActionID:   "capture",
		Parameters: map[string]any{"topic": "quarterly review"},
	}, 0))
	require.NoError(t, f.store.Put(t.Context(), plan))

	_, err := f.executor.Approve(t.Context(), plan.ID)
	require.NoError(t, err)

	_, err = f.executor.Execute(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, "quarterly review", got["topic"])
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("noop", succeed(nil))

	draft := f.putPlan(t, "noop")

	_, err := f.executor.Execute(t.Context(), draft.ID, nil)
	require.Error(t, err)
	assert.True(t, models.IsInvalidTransition(err))

	_, err = f.executor.Approve(t.Context(), draft.ID)
	require.NoError(t, err)

	_, err = f.executor.Approve(t.Context(), draft.ID)
	assert.True(t, models.IsInvalidTransition(err))

	_, err = f.executor.Execute(t.Context(), draft.ID, nil)
	require.NoError(t, err)

	_, err = f.executor.Execute(t.Context(), draft.ID, nil)
	assert.True(t, models.IsInvalidTransition(err))

	_, err = f.executor.Cancel(t.Context(), draft.ID)
	assert.True(t, models.IsInvalidTransition(err))

	got, err := f.store.Get(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, got.Status)
}

func TestCancel_DraftAndApproved(t *testing.T) {
	t.Parallel()

	for _, approve := range []bool{false, true} {
		f := newFixture(t)
		f.registry.MustRegister("noop", succeed(nil))

		plan := f.putPlan(t, "noop")
		sub := f.bus.Subscribe(plan.ID)

		if approve {
			_, err := f.executor.Approve(t.Context(), plan.ID)
			require.NoError(t, err)
		}

		cancelled, err := f.executor.Cancel(t.Context(), plan.ID)
		require.NoError(t, err)

		assert.Equal(t, models.PlanStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CompletedAt)
		assert.True(t, f.store.IsArchived(plan.ID))

		select {
		case event := <-sub.C:
			assert.True(t, event.IsTerminal())
			assert.Equal(t, string(models.PlanStatusCancelled), event.Status)
		case <-time.After(time.Second):
			t.Fatal("no terminal event")
		}

		_, err = f.executor.Execute(t.Context(), plan.ID, nil)
		assert.True(t, models.IsInvalidTransition(err))
	}
}

func TestCancelDraft_OnlyCancelsDrafts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("noop", succeed(nil))

	draft := f.putPlan(t, "noop")

	cancelled, err := f.executor.CancelDraft(t.Context(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCancelled, cancelled.Status)
	assert.True(t, f.store.IsArchived(draft.ID))

	approved := f.approved(t, "noop")

	_, err = f.executor.CancelDraft(t.Context(), approved.ID)
	require.Error(t, err)
	assert.True(t, models.IsInvalidTransition(err))

	var transitionErr *models.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, string(models.PlanStatusApproved), transitionErr.From)

	got, err := f.store.Get(t.Context(), approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusApproved, got.Status)
	assert.False(t, f.store.IsArchived(approved.ID))

	_, err = f.executor.CancelDraft(t.Context(), draft.ID)
	assert.True(t, models.IsInvalidTransition(err), "archived drafts are terminal")
}

func TestApprove_UnknownPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.executor.Approve(t.Context(), "missing")
	require.Error(t, err)
	assert.False(t, models.IsInvalidTransition(err))
}

func TestStart_SubscriberSeesOrderedEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("a", succeed(nil))
	f.registry.MustRegister("b", fail("nope"))
	f.registry.MustRegister("c", succeed(nil))

	plan := f.approved(t, "a", "b", "c")
	sub := f.bus.Subscribe(plan.ID)

	_, err := f.executor.Start(t.Context(), plan.ID, nil)
	require.NoError(t, err)

	var events []models.ProgressEvent

	timeout := time.After(5 * time.Second)

	for done := false; !done; {
		select {
		case event := <-sub.C:
			events = append(events, event)
			done = event.IsTerminal()
		case <-timeout:
			t.Fatal("plan did not finish")
		}
	}

	require.NoError(t, f.executor.Wait(t.Context(), plan.ID))

	require.Len(t, events, 7)
	assertMonotonic(t, events)

	for i := 0; i < 6; i++ {
		assert.Equal(t, i/2, events[i].StepIndex)
	}

	assert.Equal(t, string(models.StepStatusFailed), events[3].Status)
	assert.Equal(t, string(models.PlanStatusCompleted), events[6].Status)
}

func TestStart_ConcurrentPlans(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.MustRegister("sleep", func(ctx context.Context, _ map[string]any) (any, error) {
		select {
		case <-time.After(5 * time.Millisecond):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ids := make([]string, 0, 8)

	for range 8 {
		plan := f.approved(t, "sleep", "sleep", "sleep")
		ids = append(ids, plan.ID)

		_, err := f.executor.Start(t.Context(), plan.ID, nil)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, f.executor.Drain(ctx))

	for _, id := range ids {
		plan, err := f.store.Get(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, models.PlanStatusCompleted, plan.Status)
	}

	require.Eventually(t, func() bool {
		return f.executor.Running() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWait_NotRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.executor.Wait(t.Context(), "nothing"))
}

func TestStepError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &executor.StepError{
		PlanID:    "p",
		StepID:    "s",
		StepIndex: 2,
		ActionID:  "create_slide",
		Err:       executor.ErrTimeout,
	}

	assert.ErrorIs(t, err, executor.ErrStepExecution)
	assert.True(t, executor.IsTimeout(err))
	assert.Contains(t, err.Error(), "create_slide")
}
