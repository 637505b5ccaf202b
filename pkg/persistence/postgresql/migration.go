package postgresql

import "github.com/dukex/planflow/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "create_archived_plans", SQL: `
			CREATE TABLE archived_plans (
				id UUID PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				user_intent TEXT NOT NULL,
				intent JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('completed', 'failed', 'cancelled')),
				total_progress DOUBLE PRECISION NOT NULL,
				fallback BOOLEAN NOT NULL DEFAULT false,
				warnings JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				approved_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_archived_plans_status ON archived_plans(status);
			CREATE INDEX idx_archived_plans_created_at ON archived_plans(created_at);
		`},
		{Version: 2, Name: "create_archived_plan_steps", SQL: `
			CREATE TABLE archived_plan_steps (
				plan_id UUID NOT NULL REFERENCES archived_plans(id) ON DELETE CASCADE,
				position INT NOT NULL,
				id UUID NOT NULL,
				title VARCHAR(255) NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				action_id VARCHAR(255) NOT NULL,
				parameters JSONB,
				status VARCHAR(50) NOT NULL,
				progress DOUBLE PRECISION NOT NULL DEFAULT 0,
				estimated_duration_ms BIGINT NOT NULL DEFAULT 0,
				actual_duration_ms BIGINT NOT NULL DEFAULT 0,
				error TEXT,
				result JSONB,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (plan_id, position)
			);

			CREATE INDEX idx_archived_plan_steps_action_id ON archived_plan_steps(action_id);
		`},
	}
}
