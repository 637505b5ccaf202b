package models

// IntentAction is the primary action kind requested by the user.
type IntentAction string

const (
	IntentActionSearch  IntentAction = "search"
	IntentActionCreate  IntentAction = "create"
	IntentActionReorder IntentAction = "reorder"
	IntentActionExport  IntentAction = "export"
	IntentActionReview  IntentAction = "review"
)

// KnownIntentActions lists the action kinds interpreters may return.
var KnownIntentActions = []IntentAction{
	IntentActionSearch,
	IntentActionCreate,
	IntentActionReorder,
	IntentActionExport,
	IntentActionReview,
}

// IsKnown returns true if a is one of KnownIntentActions.
func (a IntentAction) IsKnown() bool {
	for _, known := range KnownIntentActions {
		if a == known {
			return true
		}
	}

	return false
}

// SearchParams carries the filters of a search intent.
type SearchParams struct {
	Keywords     []string `json:"keywords,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
	Topics       []string `json:"topics,omitempty"`
}

// CreateParams carries the description of content to be created.
type CreateParams struct {
	Topic    string `json:"topic"              validate:"required"`
	Audience string `json:"audience,omitempty"`
	Length   int    `json:"length,omitempty"   validate:"gte=0,lte=100"`
}

// StructuredIntent is the output of an intent interpreter.
type StructuredIntent struct {
	PrimaryAction IntentAction   `json:"primary_action"     validate:"required"`
	Search        *SearchParams  `json:"search,omitempty"`
	Create        *CreateParams  `json:"create,omitempty"`
	Targets       []string       `json:"targets,omitempty"`
	RawText       string         `json:"raw_text"`
	Hints         map[string]any `json:"hints,omitempty"`
}

// StepSpec is a single step proposed by a plan generator.
type StepSpec struct {
	Title      string         `json:"title"      validate:"required,max=200"`
	Detail     string         `json:"detail"`
	ActionID   string         `json:"action_id"  validate:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
}
