// Package config holds the service configuration with the production
// defaults, loadable from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config configures the cache service.
type Config struct {
	// Quota defaults, overridable per tenant.
	MaxKeys      int64
	MaxSize      int64
	MaxEntrySize int64

	// Rate limiting.
	RateLimitPerSecond int64
	RateLimitWindow    time.Duration
	RateLimitSlowdown  time.Duration
	RateLimitPolicy    string // "soft" or "hard"

	// Retention.
	RetentionCapEnabled bool
	MaxRetention        time.Duration

	// Accounting.
	AccountingMode     string // "approximate" or "exact"
	DeleteAdjustsUsage bool

	// Reconciliation.
	ReconcilerEnabled bool
	ReconcileInterval time.Duration

	// Tenant metadata service. Empty APIBaseURL disables overrides.
	APIBaseURL          string
	APIAuthToken        string
	LimitsCacheMaxCount int64
	LimitsCacheTTL      time.Duration

	// Auth.
	AuthSecret string

	// Redis, shared by storage, stats and rate counters.
	RedisURL string

	// HTTP server.
	Port int

	Logger *zap.Logger
}

// NewConfig creates a Config with the production defaults.
func NewConfig() *Config {
	return &Config{
		MaxKeys:             100_000,
		MaxSize:             50_000_000,
		MaxEntrySize:        500_000,
		RateLimitPerSecond:  100,
		RateLimitWindow:     5 * time.Second,
		RateLimitSlowdown:   200 * time.Millisecond,
		RateLimitPolicy:     "soft",
		RetentionCapEnabled: true,
		MaxRetention:        180 * 24 * time.Hour,
		AccountingMode:      "approximate",
		DeleteAdjustsUsage:  false,
		ReconcilerEnabled:   true,
		ReconcileInterval:   time.Minute,
		LimitsCacheMaxCount: 100_000,
		LimitsCacheTTL:      time.Minute,
		RedisURL:            "redis://localhost:6379",
		Port:                8080,
	}
}

// FromEnv creates a Config from the defaults overlaid with environment
// variables.
func FromEnv() (*Config, error) {
	cfg := NewConfig()
	var err error
	cfg.MaxKeys = envInt64("CACHE_MAX_KEYS", cfg.MaxKeys, &err)
	cfg.MaxSize = envInt64("CACHE_MAX_SIZE", cfg.MaxSize, &err)
	cfg.MaxEntrySize = envInt64("CACHE_MAX_ENTRY_SIZE", cfg.MaxEntrySize, &err)
	cfg.RateLimitPerSecond = envInt64("CACHE_RATE_LIMIT", cfg.RateLimitPerSecond, &err)
	cfg.RateLimitWindow = envSeconds("CACHE_RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimitWindow, &err)
	cfg.RateLimitSlowdown = envMillis("CACHE_RATE_LIMIT_SLOWDOWN_MS", cfg.RateLimitSlowdown, &err)
	cfg.RateLimitPolicy = envString("CACHE_RATE_LIMIT_POLICY", cfg.RateLimitPolicy)
	cfg.RetentionCapEnabled = envBool("CACHE_RETENTION_CAP_ENABLED", cfg.RetentionCapEnabled, &err)
	cfg.MaxRetention = envMillis("CACHE_MAX_RETENTION_MS", cfg.MaxRetention, &err)
	cfg.AccountingMode = envString("CACHE_ACCOUNTING_MODE", cfg.AccountingMode)
	cfg.DeleteAdjustsUsage = envBool("CACHE_DELETE_ADJUSTS_USAGE", cfg.DeleteAdjustsUsage, &err)
	cfg.ReconcilerEnabled = envBool("STATS_UPDATER_ENABLED", cfg.ReconcilerEnabled, &err)
	cfg.ReconcileInterval = envMillis("STATS_UPDATER_INTERVAL_MS", cfg.ReconcileInterval, &err)
	cfg.APIBaseURL = envString("NODESCRIPT_API_URL", cfg.APIBaseURL)
	cfg.APIAuthToken = envString("NODESCRIPT_API_TOKEN", cfg.APIAuthToken)
	cfg.LimitsCacheMaxCount = envInt64("WORKSPACE_CACHE_MAX_COUNT", cfg.LimitsCacheMaxCount, &err)
	cfg.LimitsCacheTTL = envMillis("WORKSPACE_CACHE_TTL", cfg.LimitsCacheTTL, &err)
	cfg.AuthSecret = envString("AUTH_SECRET", cfg.AuthSecret)
	cfg.RedisURL = envString("REDIS_URL", cfg.RedisURL)
	cfg.Port = int(envInt64("PORT", int64(cfg.Port), &err))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.RateLimitPolicy != "soft" && c.RateLimitPolicy != "hard" {
		return fmt.Errorf("invalid rate limit policy %q", c.RateLimitPolicy)
	}
	if c.AccountingMode != "approximate" && c.AccountingMode != "exact" {
		return fmt.Errorf("invalid accounting mode %q", c.AccountingMode)
	}
	if c.RateLimitWindow < time.Second {
		return fmt.Errorf("rate limit window must be at least one second")
	}
	if c.RetentionCapEnabled && c.MaxRetention <= 0 {
		return fmt.Errorf("max retention must be positive when the retention cap is enabled")
	}
	return nil
}

func envString(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

func envInt64(name string, fallback int64, err *error) int64 {
	v, ok := os.LookupEnv(name)
	if !ok || *err != nil {
		return fallback
	}
	n, parseErr := strconv.ParseInt(v, 10, 64)
	if parseErr != nil {
		*err = fmt.Errorf("invalid %s: %w", name, parseErr)
		return fallback
	}
	return n
}

func envBool(name string, fallback bool, err *error) bool {
	v, ok := os.LookupEnv(name)
	if !ok || *err != nil {
		return fallback
	}
	b, parseErr := strconv.ParseBool(v)
	if parseErr != nil {
		*err = fmt.Errorf("invalid %s: %w", name, parseErr)
		return fallback
	}
	return b
}

func envSeconds(name string, fallback time.Duration, err *error) time.Duration {
	n := envInt64(name, int64(fallback/time.Second), err)
	return time.Duration(n) * time.Second
}

func envMillis(name string, fallback time.Duration, err *error) time.Duration {
	n := envInt64(name, int64(fallback/time.Millisecond), err)
	return time.Duration(n) * time.Millisecond
}
