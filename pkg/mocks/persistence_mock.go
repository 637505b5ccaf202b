package mocks

import (
	"context"

	"github.com/dukex/planflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockArchiveSink is a mock implementation of persistence.ArchiveSink.
type MockArchiveSink struct {
	mock.Mock
}

func (m *MockArchiveSink) SaveArchived(ctx context.Context, plan *models.Plan) error {
	args := m.Called(ctx, plan)

	return args.Error(0)
}

func (m *MockArchiveSink) ArchivedByID(ctx context.Context, planID string) (*models.Plan, error) {
	args := m.Called(ctx, planID)

	plan, _ := args.Get(0).(*models.Plan)

	return plan, args.Error(1)
}

func (m *MockArchiveSink) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockArchiveSink) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
