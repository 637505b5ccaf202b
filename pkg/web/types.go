// Package web provides HTTP request and response types for the plan API.
package web

import "github.com/dukex/planflow/pkg/models"

// CreatePlanRequest represents the request body for creating a plan from text.
type CreatePlanRequest struct {
	Text        string         `json:"text"         validate:"required,max=4000"`
	Hints       map[string]any `json:"hints"`
	AutoApprove bool           `json:"auto_approve"`
}

// ListPlansQuery represents the query string of a plan listing.
type ListPlansQuery struct {
	Status   string `validate:"omitempty,oneof=draft approved executing completed failed cancelled"`
	Archived *bool
	Limit    int    `validate:"min=0,max=100"`
}

// PlanEventsResponse is the result of waiting on a plan's progress events.
type PlanEventsResponse struct {
	PlanID string                 `json:"plan_id"`
	Events []models.ProgressEvent `json:"events"`
	Done   bool                   `json:"done"`
}
