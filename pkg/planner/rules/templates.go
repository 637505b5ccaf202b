package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/planflow/pkg/models"
)

const defaultDeckLength = 5

// Generator expands an intent into a fixed step template per action kind.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the steps for intent. Unknown action kinds yield no
// steps, which the planner replaces with its fallback plan.
func (g *Generator) Generate(_ context.Context, intent *models.StructuredIntent) ([]models.StepSpec, error) {
	switch intent.PrimaryAction {
	case models.IntentActionCreate:
		return createTemplate(intent), nil
	case models.IntentActionSearch:
		return []models.StepSpec{searchStep(intent)}, nil
	case models.IntentActionReorder:
		return []models.StepSpec{
			searchStep(intent),
			{
				Title:      "Reorder slides",
				Detail:     "Arrange the matching slides into a logical sequence.",
				ActionID:   ActionReorderSlides,
				Parameters: map[string]any{"strategy": "narrative"},
			},
		}, nil
	case models.IntentActionExport:
		return []models.StepSpec{
			searchStep(intent),
			exportStep("pptx"),
		}, nil
	case models.IntentActionReview:
		return nil, nil
	default:
		return nil, nil
	}
}

func createTemplate(intent *models.StructuredIntent) []models.StepSpec {
	params := intent.Create
	if params == nil {
		params = &models.CreateParams{Topic: intent.RawText}
	}

	slides := params.Length
	if slides <= 0 {
		slides = defaultDeckLength
	}

	topic := map[string]any{"topic": params.Topic}
	if params.Audience != "" {
		topic["audience"] = params.Audience
	}

	return []models.StepSpec{
		{
			Title:      "Find title slides",
			Detail:     fmt.Sprintf("Look for existing title slides about %q.", params.Topic),
			ActionID:   ActionFindTitleSlides,
			Parameters: topic,
		},
		{
			Title:      "Find data slides",
			Detail:     fmt.Sprintf("Look for charts and tables supporting %q.", params.Topic),
			ActionID:   ActionFindDataSlides,
			Parameters: map[string]any{"topic": params.Topic, "types": []string{"chart", "table"}},
		},
		{
			Title:      "Assemble presentation",
			Detail:     fmt.Sprintf("Create a %d-slide deck from the selected slides.", slides),
			ActionID:   ActionCreateSlide,
			Parameters: map[string]any{"topic": params.Topic, "length": slides},
		},
		exportStep("pptx"),
	}
}

func searchStep(intent *models.StructuredIntent) models.StepSpec {
	params := map[string]any{"query": intent.RawText}
	title := "Search content"

	if intent.Search != nil {
		if len(intent.Search.Keywords) > 0 {
			params["keywords"] = intent.Search.Keywords
			title = "Search for " + strings.Join(intent.Search.Keywords, ", ")
		}

		if len(intent.Search.ContentTypes) > 0 {
			params["types"] = intent.Search.ContentTypes
		}
	}

	if len(intent.Targets) > 0 {
		params["targets"] = intent.Targets
	}

	return models.StepSpec{
		Title:      title,
		Detail:     "Search the content library for matching slides.",
		ActionID:   ActionSearchContent,
		Parameters: params,
	}
}

func exportStep(format string) models.StepSpec {
	return models.StepSpec{
		Title:      "Export presentation",
		Detail:     "Write the result to a " + strings.ToUpper(format) + " file.",
		ActionID:   ActionExportPresentation,
		Parameters: map[string]any{"format": format},
	}
}
