package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPlanStatuses = []models.PlanStatus{
	models.PlanStatusDraft,
	models.PlanStatusApproved,
	models.PlanStatusExecuting,
	models.PlanStatusCompleted,
	models.PlanStatusFailed,
	models.PlanStatusCancelled,
}

func TestPlanStatus_TransitionTable(t *testing.T) {
	t.Parallel()

	legal := map[[2]models.PlanStatus]bool{
		{models.PlanStatusDraft, models.PlanStatusApproved}:      true,
		{models.PlanStatusDraft, models.PlanStatusCancelled}:     true,
		{models.PlanStatusApproved, models.PlanStatusExecuting}:  true,
		{models.PlanStatusApproved, models.PlanStatusCancelled}:  true,
		{models.PlanStatusExecuting, models.PlanStatusCompleted}: true,
		{models.PlanStatusExecuting, models.PlanStatusFailed}:    true,
		{models.PlanStatusExecuting, models.PlanStatusCancelled}: true,
	}

	for _, from := range allPlanStatuses {
		for _, to := range allPlanStatuses {
			want := legal[[2]models.PlanStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPlanStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range allPlanStatuses {
		terminal := status == models.PlanStatusCompleted ||
			status == models.PlanStatusFailed ||
			status == models.PlanStatusCancelled
		assert.Equal(t, terminal, status.IsTerminal(), string(status))
		assert.True(t, status.IsValid())
	}

	assert.False(t, models.PlanStatus("paused").IsValid())
}

func TestPlan_TransitionRejectedLeavesPlanUntouched(t *testing.T) {
	t.Parallel()

	now := time.Now()
	plan := models.NewPlan("t", "d", "intent", now)

	err := plan.Transition(models.PlanStatusExecuting, now)
	require.Error(t, err)

	var transitionErr *models.TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "draft", transitionErr.From)
	assert.Equal(t, "executing", transitionErr.To)
	assert.True(t, models.IsInvalidTransition(err))

	assert.Equal(t, models.PlanStatusDraft, plan.Status)
	assert.Nil(t, plan.ApprovedAt)
}

func TestPlan_TransitionTimestamps(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	plan := models.NewPlan("t", "d", "intent", created)
	plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{Title: "a", ActionID: "a"}, 0))

	approvedAt := created.Add(time.Minute)
	require.NoError(t, plan.Transition(models.PlanStatusApproved, approvedAt))
	require.NotNil(t, plan.ApprovedAt)
	assert.Equal(t, approvedAt, *plan.ApprovedAt)
	assert.Nil(t, plan.CompletedAt)

	require.NoError(t, plan.Transition(models.PlanStatusExecuting, approvedAt))

	doneAt := approvedAt.Add(time.Minute)
	require.NoError(t, plan.Transition(models.PlanStatusFailed, doneAt))
	require.NotNil(t, plan.CompletedAt)
	assert.Equal(t, doneAt, *plan.CompletedAt)
}

func TestPlan_RecalculateProgress(t *testing.T) {
	t.Parallel()

	now := time.Now()
	plan := models.NewPlan("t", "", "", now)

	for range 4 {
		plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{Title: "s", ActionID: "a"}, 0))
	}

	assert.InDelta(t, 0.0, plan.RecalculateProgress(), 0.0001)

	require.NoError(t, plan.Steps[0].Start(plan.ID, now))
	require.NoError(t, plan.Steps[0].Complete(plan.ID, nil, now))
	require.NoError(t, plan.Steps[1].Start(plan.ID, now))
	plan.Steps[1].SetProgress(0.5)

	assert.InDelta(t, 1.5/4, plan.RecalculateProgress(), 0.0001)

	require.NoError(t, plan.Steps[1].Fail(plan.ID, errors.New("x"), now))
	require.NoError(t, plan.Steps[2].Skip(plan.ID, now))

	assert.InDelta(t, 2.0/4, plan.RecalculateProgress(), 0.0001)
}

func TestPlan_CompletedForcesFullProgress(t *testing.T) {
	t.Parallel()

	now := time.Now()
	plan := models.NewPlan("t", "", "", now)
	plan.Steps = append(plan.Steps,
		models.NewStep(models.StepSpec{Title: "a", ActionID: "a"}, 0),
		models.NewStep(models.StepSpec{Title: "b", ActionID: "b"}, 0),
	)

	require.NoError(t, plan.Transition(models.PlanStatusApproved, now))
	require.NoError(t, plan.Transition(models.PlanStatusExecuting, now))
	require.NoError(t, plan.Steps[0].Start(plan.ID, now))
	require.NoError(t, plan.Steps[0].Complete(plan.ID, nil, now))
	require.NoError(t, plan.Steps[1].Skip(plan.ID, now))
	require.NoError(t, plan.Transition(models.PlanStatusCompleted, now))

	assert.InDelta(t, 1.0, plan.TotalProgress, 0.0001)
	assert.InDelta(t, 1.0, plan.RecalculateProgress(), 0.0001)
}

func TestStep_Lifecycle(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	step := models.NewStep(models.StepSpec{
		Title:      "Create slide",
		ActionID:   "create_slide",
		Parameters: map[string]any{"topic": "q3"},
	}, 5*time.Second)

	assert.Equal(t, models.StepStatusPending, step.Status)
	assert.NotEmpty(t, step.ID)

	step.SetProgress(0.7)
	assert.Zero(t, step.Progress, "progress ignored while pending")

	require.NoError(t, step.Start("plan", start))
	step.SetProgress(0.6)
	step.SetProgress(0.3)
	assert.InDelta(t, 0.6, step.Progress, 0.0001, "progress never decreases")

	step.SetProgress(7)
	assert.InDelta(t, 1.0, step.Progress, 0.0001)

	require.NoError(t, step.Complete("plan", "ok", start.Add(2*time.Second)))
	assert.Equal(t, 2*time.Second, step.ActualDuration)
	assert.Equal(t, "ok", step.Result)

	err := step.Start("plan", start)
	require.Error(t, err)
	assert.True(t, models.IsInvalidTransition(err))
	assert.Equal(t, models.StepStatusCompleted, step.Status)
	assert.True(t, step.Status.IsTerminal())
}

func TestStep_FailKeepsProgress(t *testing.T) {
	t.Parallel()

	now := time.Now()
	step := models.NewStep(models.StepSpec{Title: "s", ActionID: "a"}, 0)

	require.NoError(t, step.Start("p", now))
	step.SetProgress(0.4)
	require.NoError(t, step.Fail("p", errors.New("network down"), now))

	assert.InDelta(t, 0.4, step.Progress, 0.0001)
	assert.Equal(t, "network down", step.Error)
	assert.Error(t, step.Skip("p", now))
}

func TestPlan_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	plan := models.NewPlan("t", "", "", time.Now())
	plan.Intent = &models.StructuredIntent{PrimaryAction: models.IntentActionCreate}
	plan.Warnings = []string{"w"}
	plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{
		Title:      "s",
		ActionID:   "a",
		Parameters: map[string]any{"k": "v"},
	}, 0))

	clone := plan.Clone()
	clone.Steps[0].Status = models.StepStatusCompleted
	clone.Steps[0].Parameters["k"] = "changed"
	clone.Warnings[0] = "changed"
	clone.Intent.PrimaryAction = models.IntentActionExport

	assert.Equal(t, models.StepStatusPending, plan.Steps[0].Status)
	assert.Equal(t, "v", plan.Steps[0].Parameters["k"])
	assert.Equal(t, "w", plan.Warnings[0])
	assert.Equal(t, models.IntentActionCreate, plan.Intent.PrimaryAction)
}

func TestPlan_SummaryAndEvents(t *testing.T) {
	t.Parallel()

	now := time.Now()
	plan := models.NewPlan("t", "", "", now)

	for range 3 {
		plan.Steps = append(plan.Steps, models.NewStep(models.StepSpec{Title: "s", ActionID: "a"}, 0))
	}

	require.NoError(t, plan.Steps[0].Start(plan.ID, now))
	plan.RecalculateProgress()

	event := models.NewStepEvent(plan, 0, "starting", now)
	assert.Equal(t, models.ProgressEventStep, event.Type)
	assert.Equal(t, plan.Steps[0].ID, event.StepID)
	require.NotNil(t, event.StepProgress)
	assert.False(t, event.IsTerminal())
	assert.Equal(t, 0, plan.StepIndex(plan.Steps[0].ID))
	assert.Equal(t, 2, plan.StepIndex(plan.Steps[2].ID))
	assert.Equal(t, -1, plan.StepIndex("missing"))

	require.NoError(t, plan.Steps[0].Complete(plan.ID, nil, now))
	require.NoError(t, plan.Steps[1].Skip(plan.ID, now))

	plan.Status = models.PlanStatusCancelled
	summary := plan.Summary()
	assert.Equal(t, models.Summary{
		PlanID:    plan.ID,
		Status:    models.PlanStatusCancelled,
		Total:     3,
		Completed: 1,
		Skipped:   1,
		Pending:   1,
	}, summary)

	final := models.NewPlanEvent(plan, "plan cancelled", now)
	assert.True(t, final.IsTerminal())
	assert.Empty(t, final.StepID)
	assert.Equal(t, -1, final.StepIndex)
	assert.Nil(t, final.StepProgress)
	require.NotNil(t, final.Summary)
	assert.Equal(t, summary, *final.Summary)
}
