package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBucketStartsFull(t *testing.T) {
	l := New(1.0, 10.0)
	if tokens := l.Tokens(); tokens < 9.9 {
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

func TestTryAcquireConsumesTokens(t *testing.T) {
	l := New(1.0, 5.0)

	for i := 0; i < 5; i++ {
		if !l.TryAcquire() {
			t.Fatalf("TryAcquire failed on attempt %d", i+1)
		}
	}
	if l.TryAcquire() {
		t.Error("TryAcquire should fail with an empty bucket")
	}
}

func TestRefillOverTime(t *testing.T) {
	l := New(10.0, 10.0)

	for i := 0; i < 10; i++ {
		l.TryAcquire()
	}

	time.Sleep(200 * time.Millisecond)

	tokens := l.Tokens()
	if tokens < 1.0 || tokens > 4.0 {
		t.Errorf("expected ~2 tokens after 200ms at 10/sec, got %.2f", tokens)
	}
}

func TestRefillCapsAtBurst(t *testing.T) {
	l := New(100.0, 5.0)

	time.Sleep(100 * time.Millisecond)

	if tokens := l.Tokens(); tokens > 5.0 {
		t.Errorf("tokens %.2f exceed burst capacity 5", tokens)
	}
}

func TestWaitBlocksUntilToken(t *testing.T) {
	l := New(20.0, 1.0)
	l.TryAcquire() // drain

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, expected to block ~50ms", elapsed)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	l := New(0.01, 1.0) // next token is ~100s away
	l.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want context.DeadlineExceeded", err)
	}
}
