package tenant

import (
	"context"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

type countingClient struct {
	calls  atomic.Int64
	limits models.Limits
}

func (c *countingClient) GetLimits(_ context.Context, _ string) (models.Limits, error) {
	c.calls.Inc()
	return c.limits, nil
}

func TestCachedClientCachesLookups(t *testing.T) {
	inner := &countingClient{limits: models.Limits{MaxKeys: 10}}
	cached, err := NewCachedClient(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedClient: %v", err)
	}
	defer cached.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limits, err := cached.GetLimits(ctx, "a-team")
		if err != nil {
			t.Fatalf("GetLimits: %v", err)
		}
		if limits.MaxKeys != 10 {
			t.Errorf("maxKeys = %d, want 10", limits.MaxKeys)
		}
	}
	if calls := inner.calls.Load(); calls != 1 {
		t.Errorf("inner calls = %d, want 1", calls)
	}
}

func TestCachedClientExpires(t *testing.T) {
	inner := &countingClient{limits: models.Limits{MaxKeys: 10}}
	cached, err := NewCachedClient(inner, 100, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCachedClient: %v", err)
	}
	defer cached.Close()
	ctx := context.Background()

	if _, err := cached.GetLimits(ctx, "a-team"); err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := cached.GetLimits(ctx, "a-team"); err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if calls := inner.calls.Load(); calls != 2 {
		t.Errorf("inner calls = %d, want 2 after TTL expiry", calls)
	}
}

func TestStaticClient(t *testing.T) {
	limits, err := StaticClient{Limits: models.Limits{MaxSize: 42}}.GetLimits(context.Background(), "any")
	if err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if limits.MaxSize != 42 {
		t.Errorf("maxSize = %d, want 42", limits.MaxSize)
	}
}
