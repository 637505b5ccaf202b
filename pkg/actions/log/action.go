// Package log provides the log action kind, which records its parameters
// and succeeds. Useful as a placeholder while a real action is wired.
package log

import (
	"context"
	"log/slog"
	"sort"

	planlog "github.com/dukex/planflow/pkg/log"
)

// New returns a handler that logs every parameter at the given level.
func New(level slog.Level) func(ctx context.Context, parameters map[string]any) (any, error) {
	return func(ctx context.Context, parameters map[string]any) (any, error) {
		logger := planlog.FromContext(ctx).With("action_kind", "log")

		keys := make([]string, 0, len(parameters))
		for key := range parameters {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		args := make([]any, 0, len(keys)*2)
		for _, key := range keys {
			args = append(args, key, parameters[key])
		}

		logger.Log(ctx, level, "Log action", args...)

		return map[string]any{"logged": keys}, nil
	}
}
