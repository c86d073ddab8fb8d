package storage

import (
	"context"
	"sync"
	"time"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

// MemoryStorage is an in-memory Storage implementation. Expired entries
// are purged lazily on read, mirroring the passive expiry of the
// durable backends.
type MemoryStorage struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*models.Entry
}

// NewMemoryStorage creates a new MemoryStorage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tenants: make(map[string]map[string]*models.Entry),
	}
}

// Setup is a no-op for the in-memory backend.
func (s *MemoryStorage) Setup(_ context.Context) error {
	return nil
}

// Get returns the live entry or nil when absent or expired.
func (s *MemoryStorage) Get(_ context.Context, tenantID, key string) (*models.Entry, error) {
	s.mu.RLock()
	entry, ok := s.tenants[tenantID][key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if entry.IsExpired() {
		s.mu.Lock()
		delete(s.tenants[tenantID], key)
		s.mu.Unlock()
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// Usage aggregates count and size over the tenant's live entries.
func (s *MemoryStorage) Usage(_ context.Context, tenantID, excludingKey string) (models.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var usage models.Usage
	for key, entry := range s.tenants[tenantID] {
		if key == excludingKey || entry.IsExpired() {
			continue
		}
		usage.Count++
		usage.Size += entry.Size
	}
	return usage, nil
}

// Upsert writes the entry, bumping its generation and keeping createdAt
// from the first insert.
func (s *MemoryStorage) Upsert(_ context.Context, tenantID, key string, data []byte, expiresAt *time.Time) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.tenants[tenantID]
	if !ok {
		entries = make(map[string]*models.Entry)
		s.tenants[tenantID] = entries
	}
	entry, ok := entries[key]
	if !ok || entry.IsExpired() {
		entry = &models.Entry{
			TenantID:  tenantID,
			Key:       key,
			CreatedAt: now,
		}
		entries[key] = entry
	}
	entry.Data = append([]byte(nil), data...)
	entry.Size = int64(len(data))
	entry.Generation++
	entry.UpdatedAt = now
	entry.Expiration = expiresAt
	return nil
}

// Delete removes the entry. No error when absent.
func (s *MemoryStorage) Delete(_ context.Context, tenantID, key string) error {
	s.mu.Lock()
	delete(s.tenants[tenantID], key)
	s.mu.Unlock()
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
