// Package memory provides the in-memory plan store used by the executor.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence"
)

type entry struct {
	mu   sync.RWMutex
	plan *models.Plan
	// archived is set under mu before the entry changes tables, so a
	// writer that resolved the entry earlier sees it as read-only.
	archived bool
}

// Store keeps active and archived plans in two tables. Each plan has its
// own lock; the table lock only guards map access.
type Store struct {
	logger  *slog.Logger
	sink    persistence.ArchiveSink
	mu      sync.RWMutex
	active  map[string]*entry
	archive map[string]*entry
}

// Option configures a Store.
type Option func(*Store)

// WithArchiveSink forwards every archived plan to a durable sink.
func WithArchiveSink(sink persistence.ArchiveSink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		logger:  logger.With("module", "plan_store"),
		active:  make(map[string]*entry),
		archive: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Put adds a new plan to the active table. The store takes ownership of plan.
func (s *Store) Put(_ context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[plan.ID]; exists {
		return persistence.NewPlanError("Put", plan.ID, persistence.ErrPlanAlreadyExists)
	}

	if _, exists := s.archive[plan.ID]; exists {
		return persistence.NewPlanError("Put", plan.ID, persistence.ErrPlanAlreadyExists)
	}

	s.active[plan.ID] = &entry{plan: plan}

	return nil
}

func (s *Store) lookup(planID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.active[planID]; ok {
		return e, true
	}

	e, ok := s.archive[planID]

	return e, ok
}

// Get returns a snapshot of the plan, active or archived. When the plan is
// unknown in memory and a sink is configured, the sink is consulted.
func (s *Store) Get(ctx context.Context, planID string) (*models.Plan, error) {
	e, ok := s.lookup(planID)
	if !ok {
		if s.sink != nil {
			plan, err := s.sink.ArchivedByID(ctx, planID)
			if err == nil {
				return plan, nil
			}

			if !persistence.IsPlanNotFound(err) {
				return nil, persistence.NewPlanError("Get", planID, err)
			}
		}

		return nil, persistence.NewPlanError("Get", planID, persistence.ErrPlanNotFound)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.plan.Clone(), nil
}

// Update runs fn against a working copy of an active plan while holding the
// plan's lock. The copy replaces the stored plan only when fn succeeds, so a
// rejected mutation leaves the plan unchanged.
func (s *Store) Update(_ context.Context, planID string, fn func(plan *models.Plan) error) (*models.Plan, error) {
	e, ok := s.lookup(planID)
	if !ok {
		return nil, persistence.NewPlanError("Update", planID, persistence.ErrPlanNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.archived {
		return nil, persistence.NewPlanError("Update", planID, persistence.ErrPlanArchived)
	}

	working := e.plan.Clone()

	err := fn(working)
	if err != nil {
		return nil, err
	}

	e.plan = working

	return working.Clone(), nil
}

// Archive moves a terminal plan from the active table to the archive.
func (s *Store) Archive(ctx context.Context, planID string) error {
	s.mu.RLock()
	e, ok := s.active[planID]
	s.mu.RUnlock()

	if !ok {
		return persistence.NewPlanError("Archive", planID, persistence.ErrPlanNotFound)
	}

	e.mu.Lock()

	if e.archived {
		e.mu.Unlock()

		return persistence.NewPlanError("Archive", planID, persistence.ErrPlanNotFound)
	}

	if !e.plan.Status.IsTerminal() {
		e.mu.Unlock()

		return persistence.NewPlanError("Archive", planID, persistence.ErrNotTerminal)
	}

	e.archived = true
	snapshot := e.plan.Clone()

	s.mu.Lock()
	delete(s.active, planID)
	s.archive[planID] = e
	s.mu.Unlock()

	e.mu.Unlock()

	s.logger.InfoContext(ctx, "Plan archived", "plan_id", planID, "status", snapshot.Status)

	if s.sink != nil {
		err := s.sink.SaveArchived(ctx, snapshot)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to write plan to archive sink", "plan_id", planID, "error", err)
		}
	}

	return nil
}

// IsArchived reports whether planID lives in the archive table.
func (s *Store) IsArchived(planID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.archive[planID]

	return ok
}

// List returns snapshots of matching plans ordered by creation time.
func (s *Store) List(_ context.Context, filter persistence.ListFilter) ([]*models.Plan, error) {
	s.mu.RLock()

	entries := make([]*entry, 0, len(s.active)+len(s.archive))

	if filter.Archived == nil || !*filter.Archived {
		for _, e := range s.active {
			entries = append(entries, e)
		}
	}

	if filter.Archived == nil || *filter.Archived {
		for _, e := range s.archive {
			entries = append(entries, e)
		}
	}

	s.mu.RUnlock()

	plans := make([]*models.Plan, 0, len(entries))

	for _, e := range entries {
		e.mu.RLock()
		if filter.Status == "" || e.plan.Status == filter.Status {
			plans = append(plans, e.plan.Clone())
		}
		e.mu.RUnlock()
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID < plans[j].ID
		}

		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})

	if filter.Limit > 0 && len(plans) > filter.Limit {
		plans = plans[:filter.Limit]
	}

	return plans, nil
}

// HealthCheck always succeeds for the in-memory store; a configured sink is checked.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.sink != nil {
		return s.sink.HealthCheck(ctx)
	}

	return nil
}
