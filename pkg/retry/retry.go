// Package retry re-runs idempotent operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Total attempts; values below 1 mean a single attempt
	InitialWait time.Duration // Wait before the second attempt
	MaxWait     time.Duration // Upper bound for any single wait
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns a single-attempt config with sane backoff values for
// callers that raise MaxAttempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 1,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// RetryableError wraps an error that should be retried.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return e.Err.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error should be retried.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps an error to mark it as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err}
}

// Do executes fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unwrapped from RetryableError.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn with retries and returns its result.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	for attempt := 1; ; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		if attempt >= attempts {
			return zero, unwrap(err)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff(cfg, attempt)):
		}
	}
}

func backoff(cfg Config, attempt int) time.Duration {
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}
	if cfg.Jitter > 0 {
		wait += wait * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

func unwrap(err error) error {
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Err
	}
	return err
}
