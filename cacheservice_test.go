package cacheservice

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewMemory(opts...)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func writerToken(tenantID string) Token {
	return Token{
		TenantID:    tenantID,
		Permissions: []string{PermissionCacheRead, PermissionCacheWrite},
	}
}

func TestServiceRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	token := writerToken("a-team")

	expiresAt := time.Now().Add(time.Minute)
	if err := svc.Set(ctx, token, "test1", "Hello A", &expiresAt); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entry, err := svc.Lookup(ctx, token, "test1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if got, want := string(entry.Data), `"Hello A"`; got != want {
		t.Errorf("data = %s, want %s", got, want)
	}
	if entry.Size != 9 || entry.Generation != 1 {
		t.Errorf("entry = %+v", entry)
	}

	if err := svc.Delete(ctx, token, "test1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	entry, err = svc.Lookup(ctx, token, "test1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry != nil {
		t.Errorf("expected absent after delete, got %+v", entry)
	}
}

func TestServiceQuota(t *testing.T) {
	svc := newTestService(t, WithDefaultLimits(2, 10_000, 5_000))
	ctx := context.Background()
	token := writerToken("a-team")

	if err := svc.Set(ctx, token, "k1", "v", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := svc.Set(ctx, token, "k2", "v", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := svc.Set(ctx, token, "k3", "v", nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("got %v, want ErrAccessDenied", err)
	}
}

func TestServiceHardRateLimit(t *testing.T) {
	svc := newTestService(t,
		WithRateLimit(1, time.Second),
		WithRateLimitPolicy("hard"),
	)
	ctx := context.Background()
	token := writerToken("a-team")

	var rateLimited bool
	for i := 0; i < 3; i++ {
		err := svc.Set(ctx, token, "k", "v", nil)
		if errors.Is(err, ErrRateLimitExceeded) {
			rateLimited = true
			break
		}
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if !rateLimited {
		t.Error("expected a rate limited request")
	}
}

func TestServiceInvalidOptions(t *testing.T) {
	if _, err := NewMemory(WithRateLimitPolicy("both")); err == nil {
		t.Error("expected an error for an unsupported policy")
	}
	if _, err := NewMemory(WithAccountingMode("guess")); err == nil {
		t.Error("expected an error for an unsupported accounting mode")
	}
}
