// Package ratelimit implements fixed-window request limiting per
// tenant, backed by an external atomic counter store. Window boundaries
// are not smoothed: a burst across a boundary can admit up to twice the
// nominal rate, which is acceptable for abuse prevention.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrRateLimitExceeded is returned under the hard policy once a
// tenant's window counter exceeds its limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Policy selects what happens when a window's limit is exceeded.
type Policy string

const (
	// PolicyHard rejects the request with ErrRateLimitExceeded.
	PolicyHard Policy = "hard"
	// PolicySoft delays the request by a fixed slowdown and lets it
	// proceed.
	PolicySoft Policy = "soft"
)

// Counter is the external atomic counter store behind the limiter.
type Counter interface {
	// IncrementAndGet atomically increments the counter at key,
	// applying ttl so stale windows self-expire, and returns the new
	// count.
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter enforces a fixed-window rate limit per tenant.
type Limiter struct {
	counter           Counter
	requestsPerSecond int64
	window            time.Duration
	policy            Policy
	slowdown          time.Duration
	logger            *zap.Logger
}

// NewLimiter creates a new Limiter instance.
func NewLimiter(counter Counter, requestsPerSecond int64, window time.Duration, policy Policy, slowdown time.Duration, logger *zap.Logger) *Limiter {
	if window < time.Second {
		window = time.Second
	}
	return &Limiter{
		counter:           counter,
		requestsPerSecond: requestsPerSecond,
		window:            window,
		policy:            policy,
		slowdown:          slowdown,
		logger:            logger,
	}
}

// Check counts the request against the tenant's current window. Under
// the hard policy it returns ErrRateLimitExceeded once the limit is
// exceeded; under the soft policy it sleeps for the configured slowdown
// and returns nil.
func (l *Limiter) Check(ctx context.Context, tenantID string) error {
	windowSeconds := int64(l.window / time.Second)
	windowIndex := time.Now().Unix() / windowSeconds
	limit := l.requestsPerSecond * windowSeconds
	key := fmt.Sprintf("cache:ratelimit:%s:%d", tenantID, windowIndex)
	count, err := l.counter.IncrementAndGet(ctx, key, 2*l.window)
	if err != nil {
		return fmt.Errorf("rate counter increment failed: %w", err)
	}
	if count <= limit {
		return nil
	}
	l.logger.Debug("rate limit exceeded",
		zap.String("tenantId", tenantID),
		zap.Int64("count", count),
		zap.Int64("limit", limit),
	)
	if l.policy == PolicyHard {
		return ErrRateLimitExceeded
	}
	timer := time.NewTimer(l.slowdown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
