package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 4.0)
	if tokens := rl.GetCurrentTokens(); tokens < 3.9 {
		t.Errorf("expected ~4 tokens, got %.2f", tokens)
	}
}

func TestTryAcquireDrainsBurst(t *testing.T) {
	rl := NewRateLimiter(0.1, 3.0)
	for i := 0; i < 3; i++ {
		if !rl.tryAcquire() {
			t.Fatalf("tryAcquire() failed on attempt %d", i+1)
		}
	}
	if rl.tryAcquire() {
		t.Error("tryAcquire() should fail when bucket is empty")
	}
}

func TestRefillCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(100.0, 2.0)
	time.Sleep(50 * time.Millisecond)
	if tokens := rl.GetCurrentTokens(); tokens > 2.01 {
		t.Errorf("tokens should cap at 2, got %.2f", tokens)
	}
}

func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(10.0, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait() returned too quickly: %v", elapsed)
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	rl := NewRateLimiter(0.01, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNilLimiterNeverBlocks(t *testing.T) {
	var rl *RateLimiter
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter returned %v", err)
	}
}
