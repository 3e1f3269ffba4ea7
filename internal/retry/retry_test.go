package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), DefaultConfig(), func(attempt int) (string, error) {
		calls++
		assert.Equal(t, 0, attempt)
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	var retryAttempts []int
	calls := 0

	result, err := Do(context.Background(), cfg, func(attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}, func(attempt int) {
		retryAttempts = append(retryAttempts, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
	// onRetry sees the 1-based upcoming attempt number
	assert.Equal(t, []int{1, 2}, retryAttempts)
}

func TestDoExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	lastErr := errors.New("still broken")
	calls := 0

	_, err := Do(context.Background(), cfg, func(attempt int) (string, error) {
		calls++
		return "", lastErr
	}, nil)

	require.Error(t, err)
	assert.Equal(t, lastErr, err)
	// initial attempt plus three retries
	assert.Equal(t, 4, calls)
}

func TestDoBackoffSchedule(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}
	var gaps []time.Duration
	last := time.Now()

	_, err := Do(context.Background(), cfg, func(attempt int) (string, error) {
		now := time.Now()
		if attempt > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		return "", errors.New("fail")
	}, nil)

	require.Error(t, err)
	require.Len(t, gaps, 3)
	// deterministic doubling: base, 2*base, 4*base
	assert.GreaterOrEqual(t, gaps[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[2], 40*time.Millisecond)
	assert.Less(t, gaps[0], gaps[1])
	assert.Less(t, gaps[1], gaps[2])
}

func TestDoCancelledErrorStopsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	calls := 0

	_, err := Do(context.Background(), cfg, func(attempt int) (string, error) {
		calls++
		return "", ErrCancelled
	}, nil)

	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, 1, calls)
}

func TestDoContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 3, BaseDelay: time.Hour}
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, cfg, func(attempt int) (string, error) {
		calls++
		return "", errors.New("transient")
	}, nil)

	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, 1, calls)
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(ErrCancelled))
	assert.True(t, IsCancelled(context.Canceled))
	assert.False(t, IsCancelled(errors.New("other")))
	assert.False(t, IsCancelled(nil))
}
