package storage

import (
	"context"
	"sync"
	"time"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

// MemoryStatsStorage is an in-memory StatsStorage implementation.
type MemoryStatsStorage struct {
	mu    sync.RWMutex
	stats map[string]*models.TenantStats
}

// NewMemoryStatsStorage creates a new MemoryStatsStorage instance.
func NewMemoryStatsStorage() *MemoryStatsStorage {
	return &MemoryStatsStorage{
		stats: make(map[string]*models.TenantStats),
	}
}

// Setup is a no-op for the in-memory backend.
func (s *MemoryStatsStorage) Setup(_ context.Context) error {
	return nil
}

// Get returns the stored aggregate, zero-valued when absent.
func (s *MemoryStatsStorage) Get(_ context.Context, tenantID string) (models.TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stats, ok := s.stats[tenantID]; ok {
		return *stats, nil
	}
	return models.TenantStats{TenantID: tenantID}, nil
}

// Increment applies count and size deltas.
func (s *MemoryStatsStorage) Increment(_ context.Context, tenantID string, countDelta, sizeDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.ensure(tenantID)
	stats.Count += countDelta
	stats.Size += sizeDelta
	stats.LastUpdatedAt = time.Now()
	return nil
}

// Overwrite replaces the stored aggregate.
func (s *MemoryStatsStorage) Overwrite(_ context.Context, tenantID string, count, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.ensure(tenantID)
	stats.Count = count
	stats.Size = size
	stats.LastUpdatedAt = time.Now()
	return nil
}

// ListTenants returns every tenant with a stored aggregate.
func (s *MemoryStatsStorage) ListTenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenants := make([]string, 0, len(s.stats))
	for tenantID := range s.stats {
		tenants = append(tenants, tenantID)
	}
	return tenants, nil
}

func (s *MemoryStatsStorage) ensure(tenantID string) *models.TenantStats {
	stats, ok := s.stats[tenantID]
	if !ok {
		stats = &models.TenantStats{TenantID: tenantID}
		s.stats[tenantID] = stats
	}
	return stats
}

var _ StatsStorage = (*MemoryStatsStorage)(nil)
