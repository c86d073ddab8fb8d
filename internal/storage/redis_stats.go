package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

const (
	statsKeyPrefix = "cache:stats:"
	// Kept outside the stats prefix so no tenant id can collide with it.
	statsTenantsKey = "cache:tenants"
)

// RedisStatsStorage implements StatsStorage on a Redis hash per tenant,
// plus a set of known tenants for reconciliation.
type RedisStatsStorage struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStatsStorage creates a new RedisStatsStorage instance.
func NewRedisStatsStorage(client *redis.Client, logger *zap.Logger) *RedisStatsStorage {
	return &RedisStatsStorage{
		client: client,
		logger: logger,
	}
}

// Setup verifies connectivity.
func (s *RedisStatsStorage) Setup(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Get returns the stored aggregate, zero-valued when absent.
func (s *RedisStatsStorage) Get(ctx context.Context, tenantID string) (models.TenantStats, error) {
	fields, err := s.client.HGetAll(ctx, statsKey(tenantID)).Result()
	if err != nil {
		return models.TenantStats{}, fmt.Errorf("redis stats get failed: %w", err)
	}
	stats := models.TenantStats{TenantID: tenantID}
	if len(fields) == 0 {
		return stats, nil
	}
	stats.Count = parseInt(fields["count"])
	stats.Size = parseInt(fields["size"])
	if raw, ok := fields["lastUpdatedAt"]; ok {
		stats.LastUpdatedAt = time.UnixMilli(parseInt(raw))
	}
	return stats, nil
}

// Increment applies count and size deltas atomically.
func (s *RedisStatsStorage) Increment(ctx context.Context, tenantID string, countDelta, sizeDelta int64) error {
	k := statsKey(tenantID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, k, "count", countDelta)
	pipe.HIncrBy(ctx, k, "size", sizeDelta)
	pipe.HSet(ctx, k, "lastUpdatedAt", time.Now().UnixMilli())
	pipe.SAdd(ctx, statsTenantsKey, tenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats increment failed: %w", err)
	}
	return nil
}

// Overwrite replaces the stored aggregate.
func (s *RedisStatsStorage) Overwrite(ctx context.Context, tenantID string, count, size int64) error {
	k := statsKey(tenantID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k,
		"count", count,
		"size", size,
		"lastUpdatedAt", time.Now().UnixMilli(),
	)
	pipe.SAdd(ctx, statsTenantsKey, tenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats overwrite failed: %w", err)
	}
	return nil
}

// ListTenants returns every tenant with a stored aggregate.
func (s *RedisStatsStorage) ListTenants(ctx context.Context) ([]string, error) {
	tenants, err := s.client.SMembers(ctx, statsTenantsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis stats list failed: %w", err)
	}
	return tenants, nil
}

func statsKey(tenantID string) string {
	return statsKeyPrefix + tenantID
}

// parseInt reads a Redis hash field, treating absent or malformed
// values as zero.
func parseInt(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var _ StatsStorage = (*RedisStatsStorage)(nil)
