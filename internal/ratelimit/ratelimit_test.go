package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHardPolicyRejectsOverLimit(t *testing.T) {
	// 2 req/s over a 1s window: third request in the window fails.
	limiter := NewLimiter(NewMemoryCounter(), 2, time.Second, PolicyHard, 0, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Check(ctx, "a-team"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	err := limiter.Check(ctx, "a-team")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("got %v, want ErrRateLimitExceeded", err)
	}
	// Another tenant has its own window.
	if err := limiter.Check(ctx, "b-team"); err != nil {
		t.Errorf("other tenant: %v", err)
	}
}

func TestSoftPolicyDelaysInsteadOfRejecting(t *testing.T) {
	slowdown := 20 * time.Millisecond
	limiter := NewLimiter(NewMemoryCounter(), 1, time.Second, PolicySoft, slowdown, zap.NewNop())
	ctx := context.Background()

	if err := limiter.Check(ctx, "a-team"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	start := time.Now()
	if err := limiter.Check(ctx, "a-team"); err != nil {
		t.Fatalf("over-limit request: %v", err)
	}
	if elapsed := time.Since(start); elapsed < slowdown {
		t.Errorf("elapsed %v, want at least %v", elapsed, slowdown)
	}
}

func TestSoftPolicyHonorsCancellation(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounter(), 1, time.Second, PolicySoft, time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Check(ctx, "a-team"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	cancel()
	err := limiter.Check(ctx, "a-team")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestMemoryCounterExpiresWindows(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	count, err := counter.IncrementAndGet(ctx, "w1", time.Millisecond)
	if err != nil || count != 1 {
		t.Fatalf("got (%d, %v), want (1, nil)", count, err)
	}
	time.Sleep(5 * time.Millisecond)
	count, err = counter.IncrementAndGet(ctx, "w1", time.Millisecond)
	if err != nil || count != 1 {
		t.Errorf("after expiry got (%d, %v), want (1, nil)", count, err)
	}
}
