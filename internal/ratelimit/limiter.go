// Package ratelimit paces remote API requests with a token bucket.
//
// Object-storage and HTTP-based backends throttle clients that issue
// requests too quickly; recursive deletes and directory walks can hit
// those limits fast. A Limiter smooths request bursts down to a steady
// rate while still allowing short spikes up to the bucket capacity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. Each request consumes one token; tokens
// refill continuously at the configured rate up to the burst capacity.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	rate       float64 // tokens per second
	lastRefill time.Time
}

// New creates a limiter that refills at rate tokens per second and
// allows bursts up to burst tokens. The bucket starts full.
func New(rate, burst float64) *Limiter {
	return &Limiter{
		tokens:     burst,
		burst:      burst,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// ForProvider returns a limiter tuned for provider backends. Object
// stores tolerate far higher request rates than shared FTP servers, so
// the bucket is generous: 20 requests/second sustained with a burst of
// 60 covers interactive navigation and batch transfers without ever
// stalling a single user, while still capping recursive-delete loops.
func ForProvider() *Limiter {
	return New(20, 60)
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.nextToken()):
		}
	}
}

// TryAcquire consumes a token if one is available, without blocking.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Tokens returns the current token count after refilling.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// nextToken reports how long until at least one token is available.
func (l *Limiter) nextToken() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	missing := 1.0 - l.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / l.rate * float64(time.Second))
}

// refill credits tokens for elapsed time. Caller holds mu.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}
