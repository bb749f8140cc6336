// Package retry provides bounded retry with backoff for transient transport failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts int
	Delays      []time.Duration
}

// Exponential builds a Config of maxAttempts attempts whose delays follow
// factor * 2^(n-1) for the nth retry, with no delay before the first retry.
func Exponential(maxAttempts int, factor time.Duration) Config {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delays := make([]time.Duration, 0, maxAttempts)
	for n := 1; n < maxAttempts; n++ {
		if n == 1 {
			delays = append(delays, 0)
			continue
		}
		delays = append(delays, factor*time.Duration(1<<(n-1)))
	}
	return Config{MaxAttempts: maxAttempts, Delays: delays}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. WithRetry returns the
// underlying error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// AttemptsError is returned once the attempt budget is exhausted.
type AttemptsError struct {
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error { return e.Err }

// WithRetry executes fn until it succeeds, returns a Permanent error, or
// MaxAttempts is reached. Delays are applied between attempts; when they run
// out the last delay is reused.
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 && len(cfg.Delays) > 0 {
			delayIndex := attempt - 1
			if delayIndex >= len(cfg.Delays) {
				delayIndex = len(cfg.Delays) - 1
			}

			select {
			case <-time.After(cfg.Delays[delayIndex]):
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}

	return &AttemptsError{Attempts: cfg.MaxAttempts, Err: lastErr}
}
