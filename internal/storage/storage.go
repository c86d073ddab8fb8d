// Package storage defines the durable stores behind the cache domain:
// the entry store keyed by (tenant, key) and the per-tenant usage
// aggregates. Redis implementations back the service; memory
// implementations back the tests.
package storage

import (
	"context"
	"time"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

// Storage is the durable entry store.
//
// Contract:
// - (tenantID, key) is unique; Upsert mutates in place and increments
//   the entry's generation, starting at 1 on first insert.
// - Entries past their expiration are treated as absent by Get and
//   excluded from Usage, whether or not they are physically purged yet.
// - Delete is idempotent.
type Storage interface {
	// Setup verifies connectivity and prepares indexes where the
	// backend needs them.
	Setup(ctx context.Context) error

	// Get returns the live entry or nil when absent or expired.
	Get(ctx context.Context, tenantID, key string) (*models.Entry, error)

	// Usage aggregates count and size over the tenant's live entries.
	// When excludingKey is non-empty that key is left out of the
	// aggregate.
	Usage(ctx context.Context, tenantID, excludingKey string) (models.Usage, error)

	// Upsert writes the serialized data under (tenantID, key).
	// A nil expiration means the entry never expires.
	Upsert(ctx context.Context, tenantID, key string, data []byte, expiresAt *time.Time) error

	// Delete removes the entry. No error when absent.
	Delete(ctx context.Context, tenantID, key string) error
}

// StatsStorage holds the per-tenant usage aggregates used for quota
// checks in approximate accounting mode.
type StatsStorage interface {
	Setup(ctx context.Context) error

	// Get returns the stored aggregate, zero-valued when absent.
	Get(ctx context.Context, tenantID string) (models.TenantStats, error)

	// Increment applies deltas to the stored aggregate.
	Increment(ctx context.Context, tenantID string, countDelta, sizeDelta int64) error

	// Overwrite replaces the stored aggregate with a freshly computed
	// value.
	Overwrite(ctx context.Context, tenantID string, count, size int64) error

	// ListTenants returns every tenant with a stored aggregate.
	ListTenants(ctx context.Context) ([]string, error)
}
