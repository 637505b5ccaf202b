// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/planflow/pkg/config"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/go-playground/validator/v10"
)

// NewRegistry loads the action catalog at actionsFile, or the built-in one,
// and registers every action.
func NewRegistry(logger *slog.Logger, actionsFile string, validate *validator.Validate) (*registry.Registry, error) {
	catalog, err := config.Load(actionsFile, validate)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(logger)

	err = catalog.Register(reg)
	if err != nil {
		return nil, err
	}

	return reg, nil
}
