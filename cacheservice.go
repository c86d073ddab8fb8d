// Package cacheservice implements a multi-tenant, quota-enforced
// key/value cache: tenants store JSON values under string keys with
// optional expiration, constrained by per-tenant limits on entry count,
// total size and per-entry size, behind a fixed-window rate limiter.
package cacheservice

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/config"
	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/domain"
	"github.com/NodeScriptLang/cache-service/internal/models"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
	"github.com/NodeScriptLang/cache-service/internal/reconciler"
	"github.com/NodeScriptLang/cache-service/internal/storage"
	"github.com/NodeScriptLang/cache-service/internal/tenant"
)

// Token identifies the authenticated caller: its tenant scope and
// granted permissions.
type Token = auth.Token

// Entry is the protocol shape of a cached entry.
type Entry = models.CacheData

// Permissions understood by the service.
const (
	PermissionCacheRead  = auth.PermissionCacheRead
	PermissionCacheWrite = auth.PermissionCacheWrite
)

// Option adjusts the service configuration.
type Option func(*config.Config) error

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config.Config) error {
		cfg.Logger = logger
		return nil
	}
}

// WithDefaultLimits sets the process-wide quota defaults.
func WithDefaultLimits(maxKeys, maxSize, maxEntrySize int64) Option {
	return func(cfg *config.Config) error {
		cfg.MaxKeys = maxKeys
		cfg.MaxSize = maxSize
		cfg.MaxEntrySize = maxEntrySize
		return nil
	}
}

// WithRateLimit sets the per-tenant request rate and window.
func WithRateLimit(perSecond int64, window time.Duration) Option {
	return func(cfg *config.Config) error {
		if window < time.Second {
			return fmt.Errorf("rate limit window must be at least one second")
		}
		cfg.RateLimitPerSecond = perSecond
		cfg.RateLimitWindow = window
		return nil
	}
}

// WithRateLimitPolicy selects "soft" (delay) or "hard" (reject).
func WithRateLimitPolicy(policy string) Option {
	return func(cfg *config.Config) error {
		if policy != "soft" && policy != "hard" {
			return fmt.Errorf("unsupported rate limit policy: %s", policy)
		}
		cfg.RateLimitPolicy = policy
		return nil
	}
}

// WithAccountingMode selects "approximate" or "exact" usage accounting.
func WithAccountingMode(mode string) Option {
	return func(cfg *config.Config) error {
		if mode != "approximate" && mode != "exact" {
			return fmt.Errorf("unsupported accounting mode: %s", mode)
		}
		cfg.AccountingMode = mode
		return nil
	}
}

// WithoutRetentionCap stores caller-supplied expirations verbatim;
// entries without one never expire.
func WithoutRetentionCap() Option {
	return func(cfg *config.Config) error {
		cfg.RetentionCapEnabled = false
		return nil
	}
}

// Service is the assembled cache service core.
type Service struct {
	domain      *domain.CacheDomain
	reconciler  *reconciler.Reconciler
	limitsCache *tenant.CachedClient
	redisClient *redis.Client
	logger      *zap.Logger
}

// New assembles a Redis-backed service. The caller owns starting and
// stopping it via Start and Close.
func New(ctx context.Context, redisOptions *redis.Options, opts ...Option) (*Service, error) {
	cfg := config.NewConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %w", err)
		}
		cfg.Logger = logger
	}
	client := redis.NewClient(redisOptions)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	store := storage.NewRedisStorage(client, cfg.Logger)
	stats := storage.NewRedisStatsStorage(client, cfg.Logger)
	counter := ratelimit.NewRedisCounter(client)
	svc, err := assemble(cfg, store, stats, counter)
	if err != nil {
		client.Close()
		return nil, err
	}
	svc.redisClient = client
	return svc, nil
}

// NewMemory assembles a service on in-memory backends. Intended for
// tests and local development.
func NewMemory(opts ...Option) (*Service, error) {
	cfg := config.NewConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return assemble(cfg, storage.NewMemoryStorage(), storage.NewMemoryStatsStorage(), ratelimit.NewMemoryCounter())
}

func assemble(cfg *config.Config, store storage.Storage, stats storage.StatsStorage, counter ratelimit.Counter) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limiter := ratelimit.NewLimiter(
		counter,
		cfg.RateLimitPerSecond,
		cfg.RateLimitWindow,
		ratelimit.Policy(cfg.RateLimitPolicy),
		cfg.RateLimitSlowdown,
		cfg.Logger,
	)
	var limitsClient tenant.Client = tenant.StaticClient{}
	var limitsCache *tenant.CachedClient
	if cfg.APIBaseURL != "" {
		httpClient := tenant.NewHTTPClient(cfg.APIBaseURL, cfg.APIAuthToken, cfg.Logger)
		cached, err := tenant.NewCachedClient(httpClient, cfg.LimitsCacheMaxCount, cfg.LimitsCacheTTL)
		if err != nil {
			return nil, err
		}
		limitsClient = cached
		limitsCache = cached
	}
	cacheDomain := domain.New(store, stats, limiter, limitsClient, domain.Options{
		AccountingMode:      domain.AccountingMode(cfg.AccountingMode),
		DeleteAdjustsUsage:  cfg.DeleteAdjustsUsage,
		RetentionCapEnabled: cfg.RetentionCapEnabled,
		MaxRetention:        cfg.MaxRetention,
		DefaultLimits: models.Limits{
			MaxKeys:      cfg.MaxKeys,
			MaxSize:      cfg.MaxSize,
			MaxEntrySize: cfg.MaxEntrySize,
		},
	}, cfg.Logger)
	svc := &Service{
		domain:      cacheDomain,
		limitsCache: limitsCache,
		logger:      cfg.Logger,
	}
	if cfg.ReconcilerEnabled {
		svc.reconciler = reconciler.New(store, stats, cfg.ReconcileInterval, cfg.Logger)
	}
	return svc, nil
}

// Start launches the background reconciliation loop, when enabled.
func (s *Service) Start() {
	if s.reconciler != nil {
		s.reconciler.Start()
	}
}

// Lookup returns the tenant's entry for key, or nil when absent or
// expired.
func (s *Service) Lookup(ctx context.Context, token Token, key string) (*Entry, error) {
	entry, err := s.domain.Lookup(ctx, token, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return entry.CacheData(), nil
}

// Set stores data under the tenant's key. A nil expiresAt requests the
// default retention.
func (s *Service) Set(ctx context.Context, token Token, key string, data any, expiresAt *time.Time) error {
	return s.domain.Set(ctx, token, key, data, expiresAt)
}

// Delete removes the tenant's entry for key. Deleting an absent key is
// not an error.
func (s *Service) Delete(ctx context.Context, token Token, key string) error {
	return s.domain.Delete(ctx, token, key)
}

// Close stops the reconciliation loop, joining any pass in flight, and
// releases resources.
func (s *Service) Close() error {
	if s.reconciler != nil {
		s.reconciler.Stop()
	}
	if s.limitsCache != nil {
		s.limitsCache.Close()
	}
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}
