// Package postgresql provides a PostgreSQL archive sink for finished plans.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements persistence.ArchiveSink for PostgreSQL.
type Persistence struct {
	db       *sql.DB
	logger   *slog.Logger
	planRepo *PlanRepository
}

// NewPersistence connects to databaseURL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")
	migrator, err := sqlbase.NewMigrator(logger, database, migrations())
	if err != nil {
		_ = database.Close()

		return nil, err
	}

	err = migrator.Up(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:       database,
		logger:   logger,
		planRepo: NewPlanRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SaveArchived upserts an archived plan with its steps.
func (p *Persistence) SaveArchived(ctx context.Context, plan *models.Plan) error {
	return p.planRepo.Save(ctx, plan)
}

// ArchivedByID loads an archived plan.
func (p *Persistence) ArchivedByID(ctx context.Context, planID string) (*models.Plan, error) {
	return p.planRepo.GetByID(ctx, planID)
}

// ArchivedByStatus lists archived plans with the given status, newest first.
func (p *Persistence) ArchivedByStatus(ctx context.Context, status models.PlanStatus, limit int) ([]*models.Plan, error) {
	return p.planRepo.ListByStatus(ctx, status, limit)
}
