package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/planflow/pkg/persistence"
	"github.com/dukex/planflow/pkg/persistence/file"
	"github.com/dukex/planflow/pkg/persistence/postgresql"
	"github.com/dukex/planflow/pkg/persistence/redis"
)

// NewArchiveSink opens the durable archive selected by the URL scheme. An
// empty URL or "none" keeps archived plans in memory only and returns nil.
func NewArchiveSink(ctx context.Context, logger *slog.Logger, archiveURL string) (persistence.ArchiveSink, error) {
	if archiveURL == "" || archiveURL == "none" {
		return nil, nil
	}

	switch parseArchiveProvider(archiveURL) {
	case "file":
		return file.NewPersistence(archiveURL)
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, archiveURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, archiveURL)
	default:
		return nil, fmt.Errorf("unsupported archive url: %s", archiveURL)
	}
}

func parseArchiveProvider(archiveURL string) string {
	provider, _, found := strings.Cut(archiveURL, "://")
	if !found {
		return "file"
	}

	return provider
}
