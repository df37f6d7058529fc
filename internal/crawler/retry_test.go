package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()
	err := errors.New("connection reset")

	assert.True(t, policy.ShouldRetry(err, 1))
	assert.True(t, policy.ShouldRetry(err, 2))
	assert.False(t, policy.ShouldRetry(err, 3), "three attempts total")
	assert.False(t, policy.ShouldRetry(nil, 1))
}

func TestExponentialRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy()

	assert.Equal(t, 2*time.Second, policy.Backoff(0))
	assert.Equal(t, 4*time.Second, policy.Backoff(1))
	assert.Equal(t, 8*time.Second, policy.Backoff(2))
	assert.Equal(t, 10*time.Second, policy.Backoff(3), "capped at the max delay")
	assert.Equal(t, 10*time.Second, policy.Backoff(40), "shift overflow falls back to the cap")
}

func TestSleepContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSleepContextZero(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), 0))
}
