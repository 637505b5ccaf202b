// Package persistence provides the plan store abstraction and archive sinks.
package persistence

import (
	"context"

	"github.com/dukex/planflow/pkg/models"
)

// ListFilter narrows a plan listing. Zero values match everything.
type ListFilter struct {
	Status   models.PlanStatus
	Archived *bool
	Limit    int
}

// Store keeps plans while they are active and after they are archived.
//
// A plan may be mutated by at most one Update at a time; concurrent Gets
// are always safe and return snapshots.
type Store interface {
	Put(ctx context.Context, plan *models.Plan) error
	Get(ctx context.Context, planID string) (*models.Plan, error)
	Update(ctx context.Context, planID string, fn func(plan *models.Plan) error) (*models.Plan, error)
	Archive(ctx context.Context, planID string) error
	List(ctx context.Context, filter ListFilter) ([]*models.Plan, error)
}

// ArchiveSink receives every plan moved to the archive, for durable history.
type ArchiveSink interface {
	SaveArchived(ctx context.Context, plan *models.Plan) error
	ArchivedByID(ctx context.Context, planID string) (*models.Plan, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
