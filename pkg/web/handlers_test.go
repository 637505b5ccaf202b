package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukex/planflow/pkg/config"
	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/executor"
	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence/memory"
	"github.com/dukex/planflow/pkg/planner"
	"github.com/dukex/planflow/pkg/planner/rules"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/dukex/planflow/pkg/services"
	"github.com/dukex/planflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app         *fiber.App
	executor    *executor.Executor
	broadcaster *eventbus.Broadcaster
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validate := validator.New(validator.WithRequiredStructEnabled())

	catalog, err := config.Load("", validate)
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	require.NoError(t, catalog.Register(reg))

	broadcaster := eventbus.NewBroadcaster(logger)
	store := memory.NewStore(logger)
	exec := executor.New(logger, store, reg, executor.WithPublisher(broadcaster))
	creator := planner.New(logger, rules.NewInterpreter(), rules.NewGenerator(), reg, planner.WithValidator(validate))
	plans := services.NewPlans(logger, creator, store, exec)

	handlers := web.NewAPIHandlers(plans, broadcaster, validate, reg)

	app := fiber.New()
	handlers.Register(app)

	t.Cleanup(broadcaster.Close)

	return &testApp{app: app, executor: exec, broadcaster: broadcaster}
}

func (a *testApp) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (a *testApp) createPlan(t *testing.T, text string, autoApprove bool) models.Plan {
	t.Helper()

	status, body := a.do(t, http.MethodPost, "/plans", web.CreatePlanRequest{Text: text, AutoApprove: autoApprove})
	require.Equal(t, http.StatusCreated, status, string(body))

	var plan models.Plan
	require.NoError(t, json.Unmarshal(body, &plan))

	return plan
}

func TestAPIHandlers_CreatePlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedPlan   models.PlanStatus
	}{
		{
			name:           "draft",
			body:           web.CreatePlanRequest{Text: "Create a presentation about Q3 results"},
			expectedStatus: http.StatusCreated,
			expectedPlan:   models.PlanStatusDraft,
		},
		{
			name:           "auto approve",
			body:           web.CreatePlanRequest{Text: "Find slides about churn", AutoApprove: true},
			expectedStatus: http.StatusCreated,
			expectedPlan:   models.PlanStatusApproved,
		},
		{
			name:           "missing text",
			body:           map[string]any{"hints": map[string]any{"audience": "board"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "whitespace text",
			body:           web.CreatePlanRequest{Text: "   "},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := app.do(t, http.MethodPost, "/plans", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedStatus != http.StatusCreated {
				assert.Contains(t, string(body), "validation_error")

				return
			}

			var plan models.Plan
			require.NoError(t, json.Unmarshal(body, &plan))
			assert.Equal(t, tt.expectedPlan, plan.Status)
			assert.NotEmpty(t, plan.Steps)
		})
	}
}

func TestAPIHandlers_CreatePlanInvalidJSON(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Lifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	plan := app.createPlan(t, "Export the sales deck as pdf", false)

	status, body := app.do(t, http.MethodPost, "/plans/"+plan.ID+"/execute", nil)
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, _ = app.do(t, http.MethodPost, "/plans/"+plan.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = app.do(t, http.MethodPost, "/plans/"+plan.ID+"/execute", nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	require.NoError(t, app.executor.Wait(t.Context(), plan.ID))

	status, body = app.do(t, http.MethodGet, "/plans/"+plan.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, status)

	var summary models.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, models.PlanStatusCompleted, summary.Status)
	assert.Equal(t, len(plan.Steps), summary.Total)

	status, body = app.do(t, http.MethodGet, "/plans/"+plan.ID+"/events", nil)
	require.Equal(t, http.StatusOK, status)

	var events web.PlanEventsResponse
	require.NoError(t, json.Unmarshal(body, &events))
	assert.True(t, events.Done)
	require.Len(t, events.Events, 1)
	assert.True(t, events.Events[0].IsTerminal())

	status, _ = app.do(t, http.MethodPost, "/plans/"+plan.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPIHandlers_CancelDraft(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	plan := app.createPlan(t, "Create a deck about hiring", false)

	status, body := app.do(t, http.MethodPost, "/plans/"+plan.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, status)

	var cancelled models.Plan
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, models.PlanStatusCancelled, cancelled.Status)
}

func TestAPIHandlers_GetPlanAndStep(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	plan := app.createPlan(t, "Create a deck about onboarding", false)

	status, _ := app.do(t, http.MethodGet, "/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := app.do(t, http.MethodGet, "/plans/"+plan.ID+"/steps/"+plan.Steps[0].ID, nil)
	require.Equal(t, http.StatusOK, status)

	var step models.Step
	require.NoError(t, json.Unmarshal(body, &step))
	assert.Equal(t, plan.Steps[0].ActionID, step.ActionID)

	status, body = app.do(t, http.MethodGet, "/plans/"+plan.ID+"/steps/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "step_not_found")

	status, body = app.do(t, http.MethodGet, "/plans/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "plan_not_found")
}

func TestAPIHandlers_GetPlans(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	app.createPlan(t, "Create a deck about pricing", false)
	app.createPlan(t, "Create a deck about roadmap", true)

	tests := []struct {
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"", http.StatusOK, 2},
		{"?status=draft", http.StatusOK, 1},
		{"?status=approved&limit=5", http.StatusOK, 1},
		{"?archived=true", http.StatusOK, 0},
		{"?status=paused", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?limit=1000", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		status, body := app.do(t, http.MethodGet, "/plans"+tt.query, nil)
		require.Equal(t, tt.expectedStatus, status, tt.query)

		if status != http.StatusOK {
			continue
		}

		var response struct {
			Plans      []models.Plan `json:"plans"`
			TotalCount int           `json:"total_count"`
		}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Len(t, response.Plans, tt.expectedCount, tt.query)
		assert.Equal(t, tt.expectedCount, response.TotalCount)
	}
}

func TestAPIHandlers_GetPlanEventsWaitsForTerminalEvent(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	plan := app.createPlan(t, "Create a deck about support", true)

	published := make(chan struct{})

	go func() {
		defer close(published)

		for app.broadcaster.Subscribers(plan.ID) == 0 {
			time.Sleep(5 * time.Millisecond)
		}

		app.broadcaster.Publish(models.ProgressEvent{Type: models.ProgressEventStep, PlanID: plan.ID, Status: "in_progress"})
		app.broadcaster.Publish(models.ProgressEvent{Type: models.ProgressEventPlan, PlanID: plan.ID, Status: "completed", StepIndex: -1})
	}()

	status, body := app.do(t, http.MethodGet, "/plans/"+plan.ID+"/events?wait=800ms", nil)
	require.Equal(t, http.StatusOK, status)
	<-published

	var events web.PlanEventsResponse
	require.NoError(t, json.Unmarshal(body, &events))
	assert.True(t, events.Done)
	require.Len(t, events.Events, 2)
	assert.Equal(t, models.ProgressEventStep, events.Events[0].Type)
	assert.Equal(t, 0, app.broadcaster.Subscribers(plan.ID), "subscription released")
}

func TestAPIHandlers_GetPlanEventsTimesOut(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	plan := app.createPlan(t, "Create a deck about security", false)

	status, body := app.do(t, http.MethodGet, "/plans/"+plan.ID+"/events?wait=50ms", nil)
	require.Equal(t, http.StatusOK, status)

	var events web.PlanEventsResponse
	require.NoError(t, json.Unmarshal(body, &events))
	assert.False(t, events.Done)
	assert.Empty(t, events.Events)

	status, _ = app.do(t, http.MethodGet, "/plans/"+plan.ID+"/events?wait=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodGet, "/plans/missing/events?wait=50ms", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_ActionsAndHealth(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := app.do(t, http.MethodGet, "/actions", nil)
	require.Equal(t, http.StatusOK, status)

	var actions struct {
		Actions []registry.Descriptor `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(body, &actions))
	assert.Len(t, actions.Actions, 7)

	status, body = app.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}
