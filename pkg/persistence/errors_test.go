package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/planflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		notFound := persistence.NewPlanError("Get", "plan-123", persistence.ErrPlanNotFound)
		archived := persistence.NewPlanError("Update", "plan-456", persistence.ErrPlanArchived)

		assert.True(t, persistence.IsPlanNotFound(notFound))
		assert.False(t, persistence.IsPlanNotFound(archived))
		assert.True(t, persistence.IsPlanArchived(archived))

		assert.True(t, errors.Is(notFound, persistence.ErrPlanNotFound))
		assert.True(t, errors.Is(archived, persistence.ErrPlanArchived))
	})

	t.Run("plan error contains context", func(t *testing.T) {
		err := persistence.NewPlanError("Archive", "plan-123", persistence.ErrPlanNotFound)

		assert.Contains(t, err.Error(), "Archive")
		assert.Contains(t, err.Error(), "plan-123")
		assert.Contains(t, err.Error(), "plan not found")
	})
}
