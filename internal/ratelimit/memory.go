package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is an in-memory Counter implementation. Stale windows
// are purged lazily on access.
type MemoryCounter struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounter creates a new MemoryCounter instance.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counters: make(map[string]*windowCounter),
	}
}

// IncrementAndGet atomically increments the counter and returns the new
// count.
func (c *MemoryCounter) IncrementAndGet(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	counter, ok := c.counters[key]
	if !ok || now.After(counter.expiresAt) {
		counter = &windowCounter{}
		c.counters[key] = counter
	}
	counter.count++
	counter.expiresAt = now.Add(ttl)
	return counter.count, nil
}

var _ Counter = (*MemoryCounter)(nil)
