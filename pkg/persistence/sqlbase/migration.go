// Package sqlbase holds schema migration support shared by SQL archive sinks.
package sqlbase

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var ErrDuplicateMigration = errors.New("duplicate migration version")

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies migrations in version order and records them in
// schema_migrations.
type Migrator struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator sorts migrations by version and rejects duplicates.
func NewMigrator(logger *slog.Logger, db *sql.DB, migrations []Migration) (*Migrator, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMigration, sorted[i].Version)
		}
	}

	return &Migrator{db: db, logger: logger, migrations: sorted}, nil
}

// Latest is the highest known version, zero when there are none.
func (m *Migrator) Latest() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// Up brings the schema to Latest. Each migration runs in its own transaction.
func (m *Migrator) Up(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int

	err = m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to query current schema version: %w", err)
	}

	m.logger.InfoContext(ctx, "Schema version", "current", current, "latest", m.Latest())

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		err = m.apply(ctx, migration)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	m.logger.InfoContext(ctx, "Applying migration", "version", migration.Version, "name", migration.Name)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, migration.SQL)
	if err != nil {
		return fmt.Errorf("failed to execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", migration.Version, migration.Name)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	return nil
}
