// Package retry provides a generic exponential-backoff executor for
// fallible operations.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrCancelled marks work abandoned because the caller's cancellation
// token fired. It bypasses further retries but still counts as a
// refundable failure upstream.
var ErrCancelled = errors.New("operation cancelled")

// IsCancelled reports whether err stems from cancellation, either the
// explicit sentinel or a cancelled context
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Config controls the backoff schedule
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig is the standard schedule: three retries with delays of
// 1s, 2s, 4s and no jitter
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: time.Second}
}

// OnRetry is invoked before each retry with the 1-based number of the
// upcoming attempt, for side effects such as bumping a subtask's retry
// counter. It never affects the retry decision.
type OnRetry func(attempt int)

// Do runs op up to cfg.MaxRetries+1 times. op receives the 0-based
// attempt number. After a failure the delay is BaseDelay * 2^attempt.
// Cancellation is checked before each wait; a cancelled context or an
// ErrCancelled from op stops retrying immediately. After exhausting
// retries the last error is returned unchanged.
func Do[T any](ctx context.Context, cfg Config, op func(attempt int) (T, error), onRetry OnRetry) (T, error) {
	var zero T
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsCancelled(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		if onRetry != nil {
			onRetry(attempt + 1)
		}
	}
	return zero, lastErr
}
