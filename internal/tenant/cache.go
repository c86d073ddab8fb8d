package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

// CachedClient wraps a Client with a capacity- and age-bounded cache.
// Concurrent misses for the same tenant collapse into a single fetch.
type CachedClient struct {
	inner Client
	cache *ristretto.Cache[string, models.Limits]
	ttl   time.Duration
	sf    singleflight.Group
}

// NewCachedClient creates a new CachedClient holding at most maxEntries
// limit records, each for at most ttl.
func NewCachedClient(inner Client, maxEntries int64, ttl time.Duration) (*CachedClient, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, models.Limits]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create limits cache: %w", err)
	}
	return &CachedClient{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}, nil
}

// GetLimits returns the cached limits or fetches them from the inner
// client.
func (c *CachedClient) GetLimits(ctx context.Context, tenantID string) (models.Limits, error) {
	if limits, ok := c.cache.Get(tenantID); ok {
		return limits, nil
	}
	result, err, _ := c.sf.Do(tenantID, func() (any, error) {
		limits, err := c.inner.GetLimits(ctx, tenantID)
		if err != nil {
			return models.Limits{}, err
		}
		c.cache.SetWithTTL(tenantID, limits, 1, c.ttl)
		// Ristretto applies sets asynchronously; wait so the next
		// request for this tenant hits the cache.
		c.cache.Wait()
		return limits, nil
	})
	if err != nil {
		return models.Limits{}, err
	}
	return result.(models.Limits), nil
}

// Close releases the cache's resources.
func (c *CachedClient) Close() {
	c.cache.Close()
}

var _ Client = (*CachedClient)(nil)
