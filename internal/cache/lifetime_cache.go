package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocklife/internal/config"
	"github.com/andresuchdata/stocklife/internal/domain"
)

const (
	lifetimeKeyPrefix     = "stock_lifetime:summary"
	lifetimeScanBatchSize = 100
)

// LifetimeCache stores finished estimation summaries per date and material filter.
type LifetimeCache interface {
	GetSummary(ctx context.Context, filter domain.LifetimeFilter) (*domain.LifetimeSummary, bool, error)
	SetSummary(ctx context.Context, filter domain.LifetimeFilter, summary *domain.LifetimeSummary) error
	InvalidateAll(ctx context.Context) error
}

type redisLifetimeCache struct {
	client *redis.Client
	ttl    time.Duration
	scope  string
}

type noopLifetimeCache struct{}

// NewLifetimeCache returns a Redis cache when enabled, a no-op one otherwise.
// scope separates entries computed under different estimator settings.
func NewLifetimeCache(cfg config.CacheConfig, scope string) (LifetimeCache, error) {
	if !cfg.Enabled {
		return &noopLifetimeCache{}, nil
	}

	client, ttl, err := connectRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisLifetimeCache{
		client: client,
		ttl:    ttl,
		scope:  scope,
	}, nil
}

func NewNoopLifetimeCache() LifetimeCache {
	return &noopLifetimeCache{}
}

func (c *redisLifetimeCache) GetSummary(ctx context.Context, filter domain.LifetimeFilter) (*domain.LifetimeSummary, bool, error) {
	payload, err := c.client.Get(ctx, buildLifetimeKey(c.scope, filter)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary domain.LifetimeSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode stock lifetime cache: %w", err)
	}
	return &summary, true, nil
}

func (c *redisLifetimeCache) SetSummary(ctx context.Context, filter domain.LifetimeFilter, summary *domain.LifetimeSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode stock lifetime cache: %w", err)
	}
	if err := c.client.Set(ctx, buildLifetimeKey(c.scope, filter), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisLifetimeCache) InvalidateAll(ctx context.Context) error {
	removed, err := unlinkPrefix(ctx, c.client, lifetimeKeyPrefix+":", lifetimeScanBatchSize)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", removed).Msg("stock lifetime cache invalidated")
	return nil
}

func (n *noopLifetimeCache) GetSummary(context.Context, domain.LifetimeFilter) (*domain.LifetimeSummary, bool, error) {
	return nil, false, nil
}

func (n *noopLifetimeCache) SetSummary(context.Context, domain.LifetimeFilter, *domain.LifetimeSummary) error {
	return nil
}

func (n *noopLifetimeCache) InvalidateAll(context.Context) error {
	return nil
}

func buildLifetimeKey(scope string, filter domain.LifetimeFilter) string {
	if scope == "" {
		scope = "default"
	}
	return fmt.Sprintf("%s:%s:%s:%s", lifetimeKeyPrefix, scope,
		domain.Day(filter.Date).Format(domain.DateLayout), materialsHash(filter.Materials))
}

// materialsHash ignores order and duplicates; "all" stands for no filter.
func materialsHash(ids []domain.MaterialID) string {
	if len(ids) == 0 {
		return "all"
	}
	uniq := make(map[domain.MaterialID]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	sorted := make([]domain.MaterialID, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
