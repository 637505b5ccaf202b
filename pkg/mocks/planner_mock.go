// Package mocks provides testify mocks for the engine's external collaborators.
package mocks

import (
	"context"

	"github.com/dukex/planflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockInterpreter is a mock implementation of protocol.Interpreter.
type MockInterpreter struct {
	mock.Mock
}

func (m *MockInterpreter) Interpret(ctx context.Context, text string, hints map[string]any) (*models.StructuredIntent, error) {
	args := m.Called(ctx, text, hints)

	intent, _ := args.Get(0).(*models.StructuredIntent)

	return intent, args.Error(1)
}

// MockGenerator is a mock implementation of protocol.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, intent *models.StructuredIntent) ([]models.StepSpec, error) {
	args := m.Called(ctx, intent)

	specs, _ := args.Get(0).([]models.StepSpec)

	return specs, args.Error(1)
}
