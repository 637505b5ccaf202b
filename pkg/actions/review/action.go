// Package review provides review_content, the action behind fallback plans:
// it hands the user's request back for manual review and always succeeds.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/planflow/pkg/log"
)

// ActionID is the registry id of the review action.
const ActionID = "review_content"

// Handle returns a review note for the query parameter.
func Handle(ctx context.Context, parameters map[string]any) (any, error) {
	query, _ := parameters["query"].(string)
	query = strings.TrimSpace(query)

	note := "Review the available content."
	if query != "" {
		note = fmt.Sprintf("Review the available content for: %s", query)
	}

	log.FromContext(ctx).InfoContext(ctx, "Content review requested", "query", query)

	return map[string]any{
		"query":  query,
		"review": note,
	}, nil
}
