package crawler

import (
	"context"
	"time"
)

// ExponentialRetryPolicy retries transient fetch failures with exponential
// backoff between attempts. The policy is stateless per call site; no
// backoff state is shared across URLs.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds the default policy: three attempts
// total, waiting 2s then 4s then 8s, capped at 10s.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		maxAttempts: 3,
		baseDelay:   2 * time.Second,
		maxDelay:    10 * time.Second,
	}
}

// ShouldRetry reports whether another attempt is warranted after the given
// 1-based attempt count. Every fetch error is considered transient; the
// caller aborts separately when its run context is canceled.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return attempt < p.maxAttempts
}

// Backoff returns the wait before the attempt following the given 0-based
// attempt index.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.baseDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	return delay
}

// sleepContext pauses for the given duration, returning early if the
// context finishes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
