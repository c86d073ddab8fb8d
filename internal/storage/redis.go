package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

const dataKeyPrefix = "cache:data:"

// RedisStorage implements Storage on a Redis hash per entry. The hash
// carries data, size, generation, createdAt, updatedAt and expiresAt;
// passive expiry rides on the key's own TTL.
type RedisStorage struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStorage creates a new RedisStorage instance.
func NewRedisStorage(client *redis.Client, logger *zap.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
	}
}

// Setup verifies connectivity.
func (s *RedisStorage) Setup(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Get returns the live entry or nil when absent or expired.
func (s *RedisStorage) Get(ctx context.Context, tenantID, key string) (*models.Entry, error) {
	fields, err := s.client.HGetAll(ctx, dataKey(tenantID, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	entry, err := s.deserialize(tenantID, key, fields)
	if err != nil {
		return nil, err
	}
	if entry.IsExpired() {
		return nil, nil
	}
	return entry, nil
}

// Usage aggregates count and size over the tenant's live entries.
func (s *RedisStorage) Usage(ctx context.Context, tenantID, excludingKey string) (models.Usage, error) {
	var usage models.Usage
	pattern := dataKeyPrefix + tenantID + ":*"
	excluded := ""
	if excludingKey != "" {
		excluded = dataKey(tenantID, excludingKey)
	}
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if k == excluded {
			continue
		}
		size, err := s.client.HGet(ctx, k, "size").Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Key expired between SCAN and HGET.
				s.logger.Debug("entry expired during usage scan", zap.String("key", k))
				continue
			}
			return models.Usage{}, fmt.Errorf("redis usage scan failed: %w", err)
		}
		usage.Count++
		usage.Size += size
	}
	if err := iter.Err(); err != nil {
		return models.Usage{}, fmt.Errorf("redis usage scan failed: %w", err)
	}
	return usage, nil
}

// Upsert writes the entry, bumping its generation atomically and
// keeping createdAt from the first insert.
func (s *RedisStorage) Upsert(ctx context.Context, tenantID, key string, data []byte, expiresAt *time.Time) error {
	k := dataKey(tenantID, key)
	now := time.Now()
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, k, "createdAt", now.UnixMilli())
	pipe.HSet(ctx, k,
		"data", data,
		"size", int64(len(data)),
		"updatedAt", now.UnixMilli(),
	)
	pipe.HIncrBy(ctx, k, "generation", 1)
	if expiresAt != nil {
		pipe.HSet(ctx, k, "expiresAt", expiresAt.UnixMilli())
		pipe.PExpireAt(ctx, k, *expiresAt)
	} else {
		pipe.HDel(ctx, k, "expiresAt")
		pipe.Persist(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert failed: %w", err)
	}
	return nil
}

// Delete removes the entry.
func (s *RedisStorage) Delete(ctx context.Context, tenantID, key string) error {
	if err := s.client.Del(ctx, dataKey(tenantID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *RedisStorage) deserialize(tenantID, key string, fields map[string]string) (*models.Entry, error) {
	entry := &models.Entry{
		TenantID: tenantID,
		Key:      key,
		Data:     []byte(fields["data"]),
	}
	var err error
	if entry.Size, err = strconv.ParseInt(fields["size"], 10, 64); err != nil {
		return nil, fmt.Errorf("malformed entry at %s: size: %w", dataKey(tenantID, key), err)
	}
	if entry.Generation, err = strconv.ParseInt(fields["generation"], 10, 64); err != nil {
		return nil, fmt.Errorf("malformed entry at %s: generation: %w", dataKey(tenantID, key), err)
	}
	createdAt, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed entry at %s: createdAt: %w", dataKey(tenantID, key), err)
	}
	entry.CreatedAt = time.UnixMilli(createdAt)
	updatedAt, err := strconv.ParseInt(fields["updatedAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed entry at %s: updatedAt: %w", dataKey(tenantID, key), err)
	}
	entry.UpdatedAt = time.UnixMilli(updatedAt)
	if raw, ok := fields["expiresAt"]; ok {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed entry at %s: expiresAt: %w", dataKey(tenantID, key), err)
		}
		t := time.UnixMilli(expiresAt)
		entry.Expiration = &t
	}
	return entry, nil
}

func dataKey(tenantID, key string) string {
	return dataKeyPrefix + tenantID + ":" + key
}

var _ Storage = (*RedisStorage)(nil)
