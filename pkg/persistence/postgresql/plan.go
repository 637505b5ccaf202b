package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence"
	"github.com/google/uuid"
)

// PlanRepository handles archived plan database operations.
type PlanRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *sql.DB, logger *slog.Logger) *PlanRepository {
	return &PlanRepository{db: db, logger: logger}
}

// Save writes the plan row and replaces its steps in one transaction.
func (r *PlanRepository) Save(ctx context.Context, plan *models.Plan) error {
	intent, err := marshalNullable(plan.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	warnings, err := marshalNullable(plan.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO archived_plans (
			id, title, description, user_intent, intent, status, total_progress,
			fallback, warnings, created_at, approved_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title
		  , description = EXCLUDED.description
		  , status = EXCLUDED.status
		  , total_progress = EXCLUDED.total_progress
		  , warnings = EXCLUDED.warnings
		  , completed_at = EXCLUDED.completed_at
		  , archived_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		plan.ID,
		plan.Title,
		plan.Description,
		plan.UserIntent,
		intent,
		string(plan.Status),
		plan.TotalProgress,
		plan.Fallback,
		warnings,
		plan.CreatedAt,
		plan.ApprovedAt,
		plan.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM archived_plan_steps WHERE plan_id = $1", plan.ID)
	if err != nil {
		return fmt.Errorf("failed to clear plan steps: %w", err)
	}

	for position, step := range plan.Steps {
		err = r.saveStep(ctx, tx, plan.ID, position, step)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *PlanRepository) saveStep(ctx context.Context, tx *sql.Tx, planID string, position int, step *models.Step) error {
	parameters, err := marshalNullable(step.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters of step %s: %w", step.ID, err)
	}

	result, err := marshalNullable(step.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result of step %s: %w", step.ID, err)
	}

	query := `
		INSERT INTO archived_plan_steps (
			plan_id, position, id, title, detail, action_id, parameters, status, progress,
			estimated_duration_ms, actual_duration_ms, error, result, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = tx.ExecContext(ctx, query,
		planID,
		position,
		step.ID,
		step.Title,
		step.Detail,
		step.ActionID,
		parameters,
		string(step.Status),
		step.Progress,
		step.EstimatedDuration.Milliseconds(),
		step.ActualDuration.Milliseconds(),
		sql.NullString{String: step.Error, Valid: step.Error != ""},
		result,
		step.StartedAt,
		step.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save step %d: %w", position, err)
	}

	return nil
}

// GetByID loads an archived plan with its steps.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	_, err := uuid.Parse(id)
	if err != nil {
		return nil, persistence.NewPlanError("ArchivedByID", id, persistence.ErrPlanNotFound)
	}

	query := `
		SELECT
			id
		  , title
		  , description
		  , user_intent
		  , intent
		  , status
		  , total_progress
		  , fallback
		  , warnings
		  , created_at
		  , approved_at
		  , completed_at
		FROM archived_plans
		WHERE id = $1
	`

	plan, err := r.scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPlanError("ArchivedByID", id, persistence.ErrPlanNotFound)
		}

		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	err = r.loadSteps(ctx, plan)
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// ListByStatus returns archived plans with status, newest first. A limit of
// zero or less returns all of them.
func (r *PlanRepository) ListByStatus(ctx context.Context, status models.PlanStatus, limit int) ([]*models.Plan, error) {
	query := `
		SELECT
			id
		  , title
		  , description
		  , user_intent
		  , intent
		  , status
		  , total_progress
		  , fallback
		  , warnings
		  , created_at
		  , approved_at
		  , completed_at
		FROM archived_plans
		WHERE status = $1
		ORDER BY created_at DESC
	`

	args := []any{string(status)}

	if limit > 0 {
		query += " LIMIT $2"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	plans := make([]*models.Plan, 0)

	for rows.Next() {
		plan, err := r.scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}

		plans = append(plans, plan)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	for _, plan := range plans {
		err = r.loadSteps(ctx, plan)
		if err != nil {
			return nil, err
		}
	}

	return plans, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PlanRepository) scanPlan(row scanner) (*models.Plan, error) {
	var (
		plan     models.Plan
		status   string
		intent   []byte
		warnings []byte
	)

	err := row.Scan(
		&plan.ID,
		&plan.Title,
		&plan.Description,
		&plan.UserIntent,
		&intent,
		&status,
		&plan.TotalProgress,
		&plan.Fallback,
		&warnings,
		&plan.CreatedAt,
		&plan.ApprovedAt,
		&plan.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.Status = models.PlanStatus(status)

	if len(intent) > 0 {
		err = json.Unmarshal(intent, &plan.Intent)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
		}
	}

	if len(warnings) > 0 {
		err = json.Unmarshal(warnings, &plan.Warnings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	plan.Steps = make([]*models.Step, 0)

	return &plan, nil
}

func (r *PlanRepository) loadSteps(ctx context.Context, plan *models.Plan) error {
	query := `
		SELECT
			id
		  , title
		  , detail
		  , action_id
		  , parameters
		  , status
		  , progress
		  , estimated_duration_ms
		  , actual_duration_ms
		  , error
		  , result
		  , started_at
		  , finished_at
		FROM archived_plan_steps
		WHERE plan_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to query steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			step       models.Step
			status     string
			parameters []byte
			result     []byte
			estimated  int64
			actual     int64
			stepErr    sql.NullString
		)

		err := rows.Scan(
			&step.ID,
			&step.Title,
			&step.Detail,
			&step.ActionID,
			&parameters,
			&status,
			&step.Progress,
			&estimated,
			&actual,
			&stepErr,
			&result,
			&step.StartedAt,
			&step.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.Status = models.StepStatus(status)
		step.EstimatedDuration = time.Duration(estimated) * time.Millisecond
		step.ActualDuration = time.Duration(actual) * time.Millisecond
		step.Error = stepErr.String

		if len(parameters) > 0 {
			err = json.Unmarshal(parameters, &step.Parameters)
			if err != nil {
				return fmt.Errorf("failed to unmarshal parameters of step %s: %w", step.ID, err)
			}
		}

		if len(result) > 0 {
			err = json.Unmarshal(result, &step.Result)
			if err != nil {
				return fmt.Errorf("failed to unmarshal result of step %s: %w", step.ID, err)
			}
		}

		plan.Steps = append(plan.Steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	return nil
}

// marshalNullable encodes v as JSON, mapping nil values to SQL NULL.
func marshalNullable(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return nil, nil
	}

	return data, nil
}
