package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_TryConsume(t *testing.T) {
	r := NewRateLimiter(2)
	if !r.TryConsume() || !r.TryConsume() {
		t.Fatal("a fresh limiter should allow a full bucket")
	}
	if r.TryConsume() {
		t.Fatal("bucket should be empty")
	}
	if got := r.Status().TotalConsumed; got != 2 {
		t.Errorf("TotalConsumed = %d, want 2", got)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	r := NewRateLimiter(1)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Fatal("Wait() on an empty bucket should fail when the context expires")
	}
}

func TestRateLimiter_Record429(t *testing.T) {
	r := NewRateLimiter(600)
	r.Record429(time.Minute)
	if r.TryConsume() {
		t.Error("limiter should be paused after a 429 with Retry-After")
	}
	if r.Status().Last429Time.IsZero() {
		t.Error("Last429Time should be set")
	}
}

func TestRateLimiter_DefaultLimit(t *testing.T) {
	if got := NewRateLimiter(0).Status().TokensLimit; got != 150 {
		t.Errorf("TokensLimit = %d, want 150", got)
	}
}
