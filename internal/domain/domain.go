// Package domain orchestrates the cache operations: rate limiting,
// permission checks, quota enforcement, expiry computation and
// delegation to the storage and accounting backends.
package domain

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/models"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
	"github.com/NodeScriptLang/cache-service/internal/storage"
	"github.com/NodeScriptLang/cache-service/internal/tenant"
	"github.com/NodeScriptLang/cache-service/pkg/serialization"
)

// AccountingMode selects how per-tenant usage is obtained for quota
// checks.
type AccountingMode string

const (
	// AccountingApproximate reads the running aggregate from the stats
	// store. Cheap per write; drift is corrected by reconciliation.
	AccountingApproximate AccountingMode = "approximate"
	// AccountingExact recomputes usage from the entry store on every
	// write, excluding the target key.
	AccountingExact AccountingMode = "exact"
)

// Options configure the domain's variant behavior.
type Options struct {
	AccountingMode AccountingMode

	// DeleteAdjustsUsage makes Delete decrement the running aggregate
	// synchronously. Off by default: the next reconciliation pass
	// corrects the counters instead.
	DeleteAdjustsUsage bool

	// RetentionCapEnabled bounds every entry's lifetime by
	// MaxRetention. When off, a caller-supplied expiration is stored
	// verbatim and entries without one never expire.
	RetentionCapEnabled bool
	MaxRetention        time.Duration

	// DefaultLimits apply wherever a tenant has no override.
	DefaultLimits models.Limits
}

// CacheDomain implements the cache operations.
type CacheDomain struct {
	storage storage.Storage
	stats   storage.StatsStorage
	limiter *ratelimit.Limiter
	limits  tenant.Client
	opts    Options
	metrics *models.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates a new CacheDomain instance.
func New(
	store storage.Storage,
	stats storage.StatsStorage,
	limiter *ratelimit.Limiter,
	limits tenant.Client,
	opts Options,
	logger *zap.Logger,
) *CacheDomain {
	return &CacheDomain{
		storage: store,
		stats:   stats,
		limiter: limiter,
		limits:  limits,
		opts:    opts,
		metrics: models.NewMetrics(),
		tracer:  otel.Tracer("cachedomain"),
		logger:  logger,
	}
}

// Metrics exposes the domain's event counters.
func (d *CacheDomain) Metrics() *models.Metrics {
	return d.metrics
}

// Lookup returns the tenant's live entry for key, or nil when the key
// is absent or expired.
func (d *CacheDomain) Lookup(ctx context.Context, token auth.Token, key string) (*models.Entry, error) {
	ctx, span := d.tracer.Start(ctx, "Cache.lookup")
	defer span.End()
	if err := token.RequireTenant(); err != nil {
		return nil, err
	}
	if err := d.checkRateLimit(ctx, token.TenantID); err != nil {
		return nil, err
	}
	if err := token.RequirePermissions(auth.PermissionCacheRead); err != nil {
		d.metrics.Denials.Inc()
		return nil, err
	}
	entry, err := d.storage.Get(ctx, token.TenantID, key)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.IsExpired() {
		d.metrics.Misses.Inc()
		return nil, nil
	}
	d.metrics.Hits.Inc()
	return entry, nil
}

// Set stores data under the tenant's key, enforcing the tenant's entry
// size, key count and total size quotas.
func (d *CacheDomain) Set(ctx context.Context, token auth.Token, key string, data any, expiresAt *time.Time) error {
	ctx, span := d.tracer.Start(ctx, "Cache.set")
	defer span.End()
	if err := token.RequireTenant(); err != nil {
		return err
	}
	if err := d.checkRateLimit(ctx, token.TenantID); err != nil {
		return err
	}
	if err := token.RequirePermissions(auth.PermissionCacheWrite); err != nil {
		d.metrics.Denials.Inc()
		return err
	}
	overrides, err := d.limits.GetLimits(ctx, token.TenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant limits: %w", err)
	}
	limits := overrides.OrDefaults(d.opts.DefaultLimits)

	payload, err := serialization.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to serialize data: %w", err)
	}
	newSize := int64(len(payload))
	// The entry size check comes first: it does not depend on
	// existing state.
	if newSize > limits.MaxEntrySize {
		d.metrics.Denials.Inc()
		return fmt.Errorf("%w: entry cannot exceed %d bytes", auth.ErrAccessDenied, limits.MaxEntrySize)
	}

	isNew, current, sizeDelta, err := d.resolveUsage(ctx, token.TenantID, key, newSize)
	if err != nil {
		return err
	}
	if isNew && current.Count+1 > limits.MaxKeys {
		d.metrics.Denials.Inc()
		d.logger.Debug("key quota exceeded",
			zap.String("tenantId", token.TenantID),
			zap.Int64("count", current.Count),
			zap.Int64("maxKeys", limits.MaxKeys),
		)
		return fmt.Errorf("%w: maximum number of keys in cache reached", auth.ErrAccessDenied)
	}
	if current.Size+sizeDelta > limits.MaxSize {
		d.metrics.Denials.Inc()
		d.logger.Debug("size quota exceeded",
			zap.String("tenantId", token.TenantID),
			zap.Int64("size", current.Size),
			zap.Int64("sizeDelta", sizeDelta),
			zap.Int64("maxSize", limits.MaxSize),
		)
		return fmt.Errorf("%w: maximum size of data in cache reached", auth.ErrAccessDenied)
	}

	// The accounting update and the data write hit two different
	// stores and are not atomic. The counters are allowed to drift;
	// reconciliation brings them back in line.
	if d.opts.AccountingMode == AccountingApproximate {
		countDelta := int64(0)
		if isNew {
			countDelta = 1
		}
		if err := d.stats.Increment(ctx, token.TenantID, countDelta, sizeDelta); err != nil {
			return fmt.Errorf("failed to update usage: %w", err)
		}
	}
	effectiveExpiry := d.evalExpiration(expiresAt)
	if err := d.storage.Upsert(ctx, token.TenantID, key, payload, effectiveExpiry); err != nil {
		return err
	}
	d.metrics.Sets.Inc()
	return nil
}

// Delete removes the tenant's entry for key. Deleting an absent key is
// not an error.
func (d *CacheDomain) Delete(ctx context.Context, token auth.Token, key string) error {
	ctx, span := d.tracer.Start(ctx, "Cache.delete")
	defer span.End()
	if err := token.RequireTenant(); err != nil {
		return err
	}
	if err := d.checkRateLimit(ctx, token.TenantID); err != nil {
		return err
	}
	if err := token.RequirePermissions(auth.PermissionCacheWrite); err != nil {
		d.metrics.Denials.Inc()
		return err
	}
	if d.opts.DeleteAdjustsUsage && d.opts.AccountingMode == AccountingApproximate {
		entry, err := d.storage.Get(ctx, token.TenantID, key)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := d.stats.Increment(ctx, token.TenantID, -1, -entry.Size); err != nil {
				return fmt.Errorf("failed to update usage: %w", err)
			}
		}
	}
	if err := d.storage.Delete(ctx, token.TenantID, key); err != nil {
		return err
	}
	d.metrics.Deletes.Inc()
	return nil
}

// resolveUsage determines whether the key is new and the aggregate
// usage the quota checks run against. The returned sizeDelta is the
// change to the tenant's total size if the write succeeds, relative to
// the returned usage.
func (d *CacheDomain) resolveUsage(ctx context.Context, tenantID, key string, newSize int64) (bool, models.Usage, int64, error) {
	existing, err := d.storage.Get(ctx, tenantID, key)
	if err != nil {
		return false, models.Usage{}, 0, err
	}
	isNew := existing == nil
	switch d.opts.AccountingMode {
	case AccountingExact:
		// The live aggregate excludes the target key, so the delta is
		// the full new size.
		usage, err := d.storage.Usage(ctx, tenantID, key)
		if err != nil {
			return false, models.Usage{}, 0, err
		}
		return isNew, usage, newSize, nil
	default:
		var oldSize int64
		if !isNew {
			oldSize = existing.Size
		}
		stats, err := d.stats.Get(ctx, tenantID)
		if err != nil {
			return false, models.Usage{}, 0, err
		}
		return isNew, models.Usage{Count: stats.Count, Size: stats.Size}, newSize - oldSize, nil
	}
}

func (d *CacheDomain) checkRateLimit(ctx context.Context, tenantID string) error {
	err := d.limiter.Check(ctx, tenantID)
	if err != nil {
		d.metrics.RateLimited.Inc()
	}
	return err
}

// evalExpiration computes the effective expiration. With the retention
// cap enabled every entry lives at most MaxRetention, whether or not
// the caller asked for an expiration.
func (d *CacheDomain) evalExpiration(requested *time.Time) *time.Time {
	if !d.opts.RetentionCapEnabled {
		return requested
	}
	max := time.Now().Add(d.opts.MaxRetention)
	if requested == nil || requested.After(max) {
		return &max
	}
	return requested
}
