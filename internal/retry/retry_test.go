package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider unavailable")

// fastPolicy returns a policy with millisecond delays so tests stay quick
// while still exercising the backoff schedule.
func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   2 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err, "Do() should return nil when the operation succeeds")
	assert.Equal(t, 1, calls, "Operation should be invoked exactly once")
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errProvider
		}
		return nil
	})

	require.NoError(t, err, "Do() should return nil once an attempt succeeds")
	assert.Equal(t, 3, calls, "Operation should be invoked until it succeeds")
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errProvider
	})

	require.Error(t, err, "Do() should return an error after exhausting attempts")
	assert.Equal(t, 3, calls, "Operation should be invoked MaxAttempts times")

	var retryErr *Error
	require.ErrorAs(t, err, &retryErr, "Exhaustion should surface as *retry.Error")
	assert.Equal(t, 3, retryErr.Attempts, "Error should record the attempt count")
	assert.ErrorIs(t, err, errProvider, "Error should unwrap to the last underlying error")
	assert.Contains(t, err.Error(), "after 3 attempts", "Error message should mention the attempt count")
}

func TestDoBackoffScheduleIsDeterministic(t *testing.T) {
	t.Parallel()

	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		Multiplier:  2,
	}

	start := time.Now()
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		return errProvider
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	// Two waits between three attempts: 10ms + 20ms.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond,
		"Backoff waits should follow base*multiplier^(attempt-1)")
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		Multiplier:  2,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		return errProvider
	})
	elapsed := time.Since(start)

	require.Error(t, err, "Do() should return an error when cancelled mid-wait")
	assert.ErrorIs(t, err, context.Canceled, "Cancellation should be detectable with errors.Is")
	assert.Equal(t, 1, calls, "Cancellation during the first wait should prevent further attempts")
	assert.Less(t, elapsed, time.Second, "Cancellation should interrupt the backoff wait promptly")
}

func TestDoNormalizesZeroValuePolicy(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err, "A zero-value policy should fall back to defaults")
	assert.Equal(t, 1, calls)
}
