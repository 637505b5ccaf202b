package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/planner"
	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"
)

const interpreterSystemPrompt = `You convert requests about a presentation content library into JSON.
Reply with a single JSON object and nothing else. Fields:
- primary_action: one of %s
- search: {"keywords": [...], "content_types": [...], "topics": [...]} for search, reorder and export requests
- create: {"topic": "...", "audience": "...", "length": <number of slides>} for create requests
- targets: identifiers of existing content the request refers to, if any`

func intentSchema() gojsonschema.JSONLoader {
	actions := make([]any, 0, len(models.KnownIntentActions))
	for _, action := range models.KnownIntentActions {
		actions = append(actions, string(action))
	}

	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"primary_action"},
		"properties": map[string]any{
			"primary_action": map[string]any{"type": "string", "enum": actions},
			"search": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"keywords":      stringList,
					"content_types": stringList,
					"topics":        stringList,
				},
			},
			"create": map[string]any{
				"type":     "object",
				"required": []any{"topic"},
				"properties": map[string]any{
					"topic":    map[string]any{"type": "string", "minLength": 1},
					"audience": map[string]any{"type": "string"},
					"length":   map[string]any{"type": "integer", "minimum": 0},
				},
			},
			"targets": stringList,
		},
	})
}

// Interpreter asks a language model to classify a request.
type Interpreter struct {
	client *client
	schema gojsonschema.JSONLoader
}

func NewInterpreter(model llms.Model, logger *slog.Logger, opts ...Option) *Interpreter {
	return &Interpreter{
		client: newClient(model, logger.With("module", "llm_interpreter"), opts...),
		schema: intentSchema(),
	}
}

// Interpret returns ErrMalformedIntent whenever the model reply is not a
// schema-valid intent; transport failures are returned as they are.
func (i *Interpreter) Interpret(ctx context.Context, text string, hints map[string]any) (*models.StructuredIntent, error) {
	actions := make([]string, 0, len(models.KnownIntentActions))
	for _, action := range models.KnownIntentActions {
		actions = append(actions, string(action))
	}

	system := fmt.Sprintf(interpreterSystemPrompt, strings.Join(actions, ", "))

	prompt := "Request: " + text
	if len(hints) > 0 {
		encoded, err := json.Marshal(hints)
		if err == nil {
			prompt += "\nContext: " + string(encoded)
		}
	}

	doc, err := i.client.complete(ctx, system, prompt, i.schema)
	if err != nil {
		if isTransport(err) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", planner.ErrMalformedIntent, err)
	}

	var intent models.StructuredIntent

	err = json.Unmarshal([]byte(doc), &intent)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", planner.ErrMalformedIntent, err)
	}

	intent.RawText = text
	intent.Hints = hints

	return &intent, nil
}
