// Package rules provides a deterministic, keyword-driven interpreter and a
// template-based plan generator. They need no external service and are the
// default when no language model is configured.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/planner"
)

// Action ids used by the templates.
const (
	ActionSearchContent      = "search_content"
	ActionFindTitleSlides    = "find_title_slides"
	ActionFindDataSlides     = "find_data_slides"
	ActionCreateSlide        = "create_slide"
	ActionReorderSlides      = "reorder_slides"
	ActionExportPresentation = "export_presentation"
)

var (
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}]+`)
	lengthPattern = regexp.MustCompile(`(\d+)\s*(?:slides?|pages?)`)
	aboutPattern  = regexp.MustCompile(`(?i)\b(?:about|on|for|regarding)\s+(.+?)(?:\s+for\s+(?:the\s+)?(\w[\w\s]*?))?$`)

	verbs = map[models.IntentAction][]string{
		models.IntentActionExport:  {"export", "download", "save", "pdf", "pptx"},
		models.IntentActionReorder: {"reorder", "rearrange", "sort", "order", "move"},
		models.IntentActionCreate:  {"create", "make", "build", "generate", "prepare", "draft", "presentation", "deck"},
		models.IntentActionSearch:  {"find", "search", "show", "look", "list", "get"},
	}

	// evaluation order when several verbs match
	precedence = []models.IntentAction{
		models.IntentActionExport,
		models.IntentActionReorder,
		models.IntentActionCreate,
		models.IntentActionSearch,
	}

	contentTypes = []string{"chart", "table", "image", "title", "text", "diagram", "video"}

	stopWords = map[string]struct{}{
		"a": {}, "an": {}, "the": {}, "me": {}, "my": {}, "all": {}, "some": {}, "of": {}, "with": {},
		"to": {}, "for": {}, "and": {}, "or": {}, "in": {}, "on": {}, "about": {}, "please": {},
		"slide": {}, "slides": {}, "that": {}, "which": {}, "is": {}, "are": {},
	}
)

// Interpreter classifies requests by keyword.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Interpret never consults external services. Text without a single word
// is reported as a malformed intent.
func (i *Interpreter) Interpret(_ context.Context, text string, hints map[string]any) (*models.StructuredIntent, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no words in request", planner.ErrMalformedIntent)
	}

	intent := &models.StructuredIntent{
		PrimaryAction: classify(words),
		RawText:       text,
		Hints:         hints,
	}

	switch intent.PrimaryAction {
	case models.IntentActionCreate:
		intent.Create = &models.CreateParams{
			Topic:    topic(text, words),
			Audience: audience(text),
			Length:   length(text),
		}
	case models.IntentActionSearch, models.IntentActionReorder, models.IntentActionExport, models.IntentActionReview:
		intent.Search = &models.SearchParams{
			Keywords:     keywords(words),
			ContentTypes: types(words),
		}
	}

	if targets, ok := hints["targets"].([]string); ok {
		intent.Targets = targets
	}

	return intent, nil
}

func classify(words []string) models.IntentAction {
	for _, action := range precedence {
		for _, word := range words {
			if slices.Contains(verbs[action], word) {
				return action
			}
		}
	}

	return models.IntentActionSearch
}

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func isVerb(word string) bool {
	for _, list := range verbs {
		if slices.Contains(list, word) {
			return true
		}
	}

	return false
}

func keywords(words []string) []string {
	result := make([]string, 0, len(words))

	for _, word := range words {
		if _, stop := stopWords[word]; stop || isVerb(word) {
			continue
		}

		if _, err := strconv.Atoi(word); err == nil {
			continue
		}

		if !slices.Contains(result, word) {
			result = append(result, word)
		}
	}

	return result
}

func types(words []string) []string {
	var result []string

	for _, word := range words {
		singular := strings.TrimSuffix(word, "s")
		if slices.Contains(contentTypes, singular) && !slices.Contains(result, singular) {
			result = append(result, singular)
		}
	}

	return result
}

func topic(text string, words []string) string {
	if m := aboutPattern.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return strings.TrimSpace(m[1])
	}

	return strings.Join(keywords(words), " ")
}

func audience(text string) string {
	if m := aboutPattern.FindStringSubmatch(strings.TrimSpace(text)); m != nil && len(m) > 2 {
		return strings.TrimSpace(m[2])
	}

	return ""
}

func length(text string) int {
	m := lengthPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}

	return n
}
