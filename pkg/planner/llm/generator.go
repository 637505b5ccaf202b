package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/planner"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"
)

const generatorSystemPrompt = `You plan work on a presentation content library.
Given a structured intent, reply with a single JSON object {"steps": [...]} holding between %d and %d steps.
Each step is {"title": "...", "detail": "...", "action_id": "...", "parameters": {...}}.
Steps run in the listed order. Only use these action ids:
%s`

func planSchema() gojsonschema.JSONLoader {
	return gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"steps"},
		"properties": map[string]any{
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"title", "action_id"},
					"properties": map[string]any{
						"title":      map[string]any{"type": "string", "minLength": 1},
						"detail":     map[string]any{"type": "string"},
						"action_id":  map[string]any{"type": "string", "minLength": 1},
						"parameters": map[string]any{"type": "object"},
					},
				},
			},
		},
	})
}

// Catalog lists the actions a generator may use. *registry.Registry implements it.
type Catalog interface {
	Actions() []registry.Descriptor
}

// Generator asks a language model for the steps of a plan.
type Generator struct {
	client  *client
	catalog Catalog
	schema  gojsonschema.JSONLoader
}

func NewGenerator(model llms.Model, catalog Catalog, logger *slog.Logger, opts ...Option) *Generator {
	return &Generator{
		client:  newClient(model, logger.With("module", "llm_generator"), opts...),
		catalog: catalog,
		schema:  planSchema(),
	}
}

// Generate returns the proposed steps. Step count and action ids are not
// checked here; the planner validates them against the registry.
func (g *Generator) Generate(ctx context.Context, intent *models.StructuredIntent) ([]models.StepSpec, error) {
	lines := make([]string, 0)
	for _, action := range g.catalog.Actions() {
		line := "- " + action.ID
		if action.Description != "" {
			line += ": " + action.Description
		}

		lines = append(lines, line)
	}

	system := fmt.Sprintf(generatorSystemPrompt, planner.MinSteps, planner.MaxSteps, strings.Join(lines, "\n"))

	encoded, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}

	doc, err := g.client.complete(ctx, system, "Intent: "+string(encoded), g.schema)
	if err != nil {
		if isTransport(err) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", planner.ErrMalformedPlan, err)
	}

	var out struct {
		Steps []models.StepSpec `json:"steps"`
	}

	err = json.Unmarshal([]byte(doc), &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", planner.ErrMalformedPlan, err)
	}

	return out.Steps, nil
}
