// Package redis provides a Redis archive sink. Each archived plan is a JSON
// string; a sorted set indexes the plans by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/planflow/pkg/models"
	"github.com/dukex/planflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "planflow"
	pingTimeout   = 5 * time.Second
)

// Persistence implements persistence.ArchiveSink on Redis.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

// Option configures the Redis sink.
type Option func(*Persistence)

// WithTTL expires archived plans after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(p *Persistence) {
		p.ttl = ttl
	}
}

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(p *Persistence) {
		p.prefix = prefix
	}
}

// NewPersistence connects using a redis:// or rediss:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, url string, opts ...Option) (*Persistence, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	p := &Persistence{
		client: redis.NewClient(options),
		logger: logger.With("module", "redis"),
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(p)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err = p.client.Ping(pingCtx).Err()
	if err != nil {
		_ = p.client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	p.logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return p, nil
}

func (p *Persistence) planKey(planID string) string {
	return p.prefix + ":plan:" + planID
}

func (p *Persistence) indexKey() string {
	return p.prefix + ":archived"
}

// SaveArchived stores the plan and indexes it in one transaction.
func (p *Persistence) SaveArchived(ctx context.Context, plan *models.Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan %s: %w", plan.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.planKey(plan.ID), data, p.ttl)
		pipe.ZAdd(ctx, p.indexKey(), redis.Z{
			Score:  float64(plan.CreatedAt.UnixMilli()),
			Member: plan.ID,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}

	return nil
}

// ArchivedByID loads an archived plan.
func (p *Persistence) ArchivedByID(ctx context.Context, planID string) (*models.Plan, error) {
	data, err := p.client.Get(ctx, p.planKey(planID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewPlanError("ArchivedByID", planID, persistence.ErrPlanNotFound)
		}

		return nil, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}

	var plan models.Plan

	err = json.Unmarshal(data, &plan)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", planID, err)
	}

	return &plan, nil
}

// RecentIDs returns up to limit archived plan ids, newest first. Ids whose
// plan has expired are pruned from the index as they are found.
func (p *Persistence) RecentIDs(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := p.client.ZRevRange(ctx, p.indexKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read archive index: %w", err)
	}

	live := make([]string, 0, len(ids))

	for _, id := range ids {
		exists, err := p.client.Exists(ctx, p.planKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check plan %s: %w", id, err)
		}

		if exists == 0 {
			p.client.ZRem(ctx, p.indexKey(), id)

			continue
		}

		live = append(live, id)
	}

	return live, nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close releases the client.
func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}
