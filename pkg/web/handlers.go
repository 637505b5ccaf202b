// Package web provides HTTP handlers and REST API endpoints for plan management.
package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/dukex/planflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultEventsWait = 30 * time.Second
	maxEventsWait     = 2 * time.Minute
)

type APIHandlers struct {
	plans       *services.Plans
	broadcaster *eventbus.Broadcaster
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	plans *services.Plans,
	broadcaster *eventbus.Broadcaster,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		plans:       plans,
		broadcaster: broadcaster,
		validator:   validator,
		registry:    registry,
	}
}

// Register mounts every plan and action endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	p := router.Group("/plans")
	p.Get("/", h.GetPlans)
	p.Post("/", h.CreatePlan)
	p.Get("/:id", h.GetPlan)
	p.Get("/:id/steps/:stepId", h.GetPlanStep)
	p.Post("/:id/approve", h.ApprovePlan)
	p.Post("/:id/execute", h.ExecutePlan)
	p.Post("/:id/cancel", h.CancelPlan)
	p.Get("/:id/summary", h.GetPlanSummary)
	p.Get("/:id/events", h.GetPlanEvents)

	router.Get("/actions", h.GetActions)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	storeCheck, storeOk := h.plans.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Planflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && storeOk {
		status = "healthy"
		message = "Planflow API is healthy"
		httpStatus = http.StatusOK
	}

	published, dropped := h.broadcaster.Stats()

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry": registryCheck,
			"store":    storeCheck,
		},
		"events": fiber.Map{
			"published": published,
			"dropped":   dropped,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"actions": h.registry.Actions(),
	})
}

func (h *APIHandlers) CreatePlan(c fiber.Ctx) error {
	var req CreatePlanRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	plan, err := h.plans.Create(c.Context(), req.Text, req.Hints)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.AutoApprove {
		plan, err = h.plans.Approve(c.Context(), plan.ID)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}

func (h *APIHandlers) GetPlans(c fiber.Ctx) error {
	query, err := parseListPlansQuery(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(query); err != nil {
		return badRequest(c, err.Error())
	}

	plans, err := h.plans.List(c.Context(), services.ListPlansRequest{
		Status:   query.Status,
		Archived: query.Archived,
		Limit:    query.Limit,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"plans":       plans,
		"total_count": len(plans),
	})
}

// parseListPlansQuery parses the query parameters of a plan listing.
func parseListPlansQuery(c fiber.Ctx) (*ListPlansQuery, error) {
	query := &ListPlansQuery{Status: c.Query("status")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		query.Limit = limit
	}

	if archivedStr := c.Query("archived"); archivedStr != "" {
		archived, err := strconv.ParseBool(archivedStr)
		if err != nil {
			return nil, err
		}

		query.Archived = &archived
	}

	return query, nil
}

func (h *APIHandlers) GetPlan(c fiber.Ctx) error {
	plan, err := h.plans.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plan)
}

func (h *APIHandlers) GetPlanStep(c fiber.Ctx) error {
	step, err := h.plans.Step(c.Context(), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) ApprovePlan(c fiber.Ctx) error {
	plan, err := h.plans.Approve(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plan)
}

func (h *APIHandlers) ExecutePlan(c fiber.Ctx) error {
	plan, err := h.plans.Execute(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(plan)
}

func (h *APIHandlers) CancelPlan(c fiber.Ctx) error {
	plan, err := h.plans.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if plan.Status == models.PlanStatusExecuting {
		return c.Status(fiber.StatusAccepted).JSON(plan)
	}

	return c.JSON(plan)
}

func (h *APIHandlers) GetPlanSummary(c fiber.Ctx) error {
	summary, err := h.plans.Summary(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

// GetPlanEvents long-polls the plan's progress: it returns the events
// published until the terminal one, or whatever arrived before ?wait elapsed.
func (h *APIHandlers) GetPlanEvents(c fiber.Ctx) error {
	id := c.Params("id")

	wait := defaultEventsWait

	if raw := c.Query("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, fmt.Sprintf("Invalid wait duration: %q", raw))
		}

		wait = min(parsed, maxEventsWait)
	}

	// subscribe before reading the plan so nothing published in between is lost
	sub := h.broadcaster.Subscribe(id)
	defer sub.Close()

	plan, err := h.plans.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := PlanEventsResponse{PlanID: id, Events: make([]models.ProgressEvent, 0)}

	if plan.Status.IsTerminal() {
		response.Events = append(response.Events, models.NewPlanEvent(plan, "plan "+string(plan.Status), time.Now()))
		response.Done = true

		return c.JSON(response)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for !response.Done {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return c.JSON(response)
			}

			response.Events = append(response.Events, event)
			response.Done = event.IsTerminal()
		case <-timer.C:
			return c.JSON(response)
		case <-c.Context().Done():
			return c.Context().Err()
		}
	}

	return c.JSON(response)
}
