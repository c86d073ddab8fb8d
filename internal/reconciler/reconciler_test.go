package reconciler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/storage"
)

func TestReconcileCorrectsDrift(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	stats := storage.NewMemoryStatsStorage()

	if err := store.Upsert(ctx, "a-team", "k1", []byte(`"Hello A"`), nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, "a-team", "k2", []byte(`"Hi"`), nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Plant drifted counters, as approximate accounting racing with
	// deletes would leave behind.
	if err := stats.Overwrite(ctx, "a-team", 7, 12345); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}

	r := New(store, stats, time.Minute, zap.NewNop())
	r.ReconcileAll(ctx)

	got, err := stats.Get(ctx, "a-team")
	if err != nil {
		t.Fatalf("stats Get: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
	if got.Size != 13 {
		t.Errorf("size = %d, want 13", got.Size)
	}
}

func TestReconcileSurvivesTenantFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	stats := &failingStats{MemoryStatsStorage: storage.NewMemoryStatsStorage(), failFor: "bad-team"}

	if err := store.Upsert(ctx, "a-team", "k1", []byte(`"v"`), nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := stats.MemoryStatsStorage.Overwrite(ctx, "bad-team", 1, 1); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}
	if err := stats.MemoryStatsStorage.Overwrite(ctx, "a-team", 9, 9); err != nil {
		t.Fatalf("Overwrite: %v", err)
	}

	r := New(store, stats, time.Minute, zap.NewNop())
	r.ReconcileAll(ctx)

	got, err := stats.MemoryStatsStorage.Get(ctx, "a-team")
	if err != nil {
		t.Fatalf("stats Get: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("count = %d, want 1: failing tenant must not abort the pass", got.Count)
	}
}

func TestStartStop(t *testing.T) {
	store := storage.NewMemoryStorage()
	stats := storage.NewMemoryStatsStorage()
	r := New(store, stats, time.Millisecond, zap.NewNop())
	r.Start()
	r.Start() // second Start is a no-op
	time.Sleep(10 * time.Millisecond)
	r.Stop()
	r.Stop() // second Stop is a no-op
}

type failingStats struct {
	*storage.MemoryStatsStorage
	failFor string
}

func (s *failingStats) Overwrite(ctx context.Context, tenantID string, count, size int64) error {
	if tenantID == s.failFor {
		return context.DeadlineExceeded
	}
	return s.MemoryStatsStorage.Overwrite(ctx, tenantID, count, size)
}
