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

	"github.com/skulane/priceflow/internal/config"
	"github.com/skulane/priceflow/internal/domain"
)

const (
	summaryKeyPrefix     = "optimization:summary"
	summaryScanBatchSize = 100
)

// SummaryCache shields the optimization_summary table from repeated dashboard
// reads. Entries are invalidated in bulk after each batch run.
type SummaryCache interface {
	Get(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, bool, error)
	Set(ctx context.Context, filter domain.ResultFilter, results []domain.OptimizationResult) error
	InvalidateAll(ctx context.Context) error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

func NewSummaryCache(cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSummaryCache{client: client, ttl: ttl}, nil
}

func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) Get(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, bool, error) {
	key := buildSummaryKey(filter)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var results []domain.OptimizationResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, false, fmt.Errorf("decode summary cache: %w", err)
	}

	return results, true, nil
}

func (c *redisSummaryCache) Set(ctx context.Context, filter domain.ResultFilter, results []domain.OptimizationResult) error {
	key := buildSummaryKey(filter)
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, summaryKeyPrefix, summaryScanBatchSize)
}

func (n *noopSummaryCache) Get(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, bool, error) {
	return nil, false, nil
}

func (n *noopSummaryCache) Set(ctx context.Context, filter domain.ResultFilter, results []domain.OptimizationResult) error {
	return nil
}

func (n *noopSummaryCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildSummaryKey(filter domain.ResultFilter) string {
	return fmt.Sprintf("%s:%s", summaryKeyPrefix, filterHash(filter))
}

func filterHash(filter domain.ResultFilter) string {
	parts := []string{}

	if len(filter.SKUs) > 0 {
		parts = append(parts, "skus="+joinSorted(filter.SKUs))
	}
	if len(filter.Warehouses) > 0 {
		parts = append(parts, "warehouses="+joinSorted(filter.Warehouses))
	}
	if filter.DateFrom != "" {
		parts = append(parts, "from="+strings.TrimSpace(filter.DateFrom))
	}
	if filter.DateTo != "" {
		parts = append(parts, "to="+strings.TrimSpace(filter.DateTo))
	}
	if filter.Limit > 0 {
		parts = append(parts, "limit="+strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		parts = append(parts, "offset="+strconv.Itoa(filter.Offset))
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func joinSorted(values []string) string {
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			normalized = append(normalized, v)
		}
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}
