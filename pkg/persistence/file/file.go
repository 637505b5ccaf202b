// Package file provides a file-system archive sink: one JSON document per
// archived plan.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence"
)

const plansDir = "plans"

// Persistence stores archived plans under root/plans.
type Persistence struct {
	root string
}

// NewPersistence creates the archive directory if needed. root may carry a
// file:// prefix.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(filepath.Join(cleanRoot, plansDir), 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Persistence{root: cleanRoot}, nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the archive directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	_, err := os.Stat(filepath.Join(fp.root, plansDir))
	if err != nil {
		return fmt.Errorf("archive directory: %w", err)
	}

	return nil
}

// SaveArchived writes the plan atomically; readers never see a partial file.
func (fp *Persistence) SaveArchived(_ context.Context, plan *models.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan %s: %w", plan.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Join(fp.root, plansDir), plan.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write plan %s: %w", plan.ID, err)
	}

	err = os.Rename(tmp.Name(), fp.path(plan.ID))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to store plan %s: %w", plan.ID, err)
	}

	return nil
}

// ArchivedByID reads an archived plan back.
func (fp *Persistence) ArchivedByID(_ context.Context, planID string) (*models.Plan, error) {
	if !validID(planID) {
		return nil, persistence.NewPlanError("ArchivedByID", planID, persistence.ErrPlanNotFound)
	}

	data, err := os.ReadFile(fp.path(planID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewPlanError("ArchivedByID", planID, persistence.ErrPlanNotFound)
		}

		return nil, fmt.Errorf("failed to read plan %s: %w", planID, err)
	}

	var plan models.Plan

	err = json.Unmarshal(data, &plan)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", planID, err)
	}

	return &plan, nil
}

// ArchivedIDs lists the ids of every archived plan.
func (fp *Persistence) ArchivedIDs(_ context.Context) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(fp.root, plansDir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list archived plans: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

func (fp *Persistence) path(planID string) string {
	return filepath.Join(fp.root, plansDir, planID+".json")
}

// validID rejects ids that would escape the archive directory.
func validID(planID string) bool {
	return planID != "" && !strings.ContainsAny(planID, `/\`) && planID != "." && planID != ".."
}
