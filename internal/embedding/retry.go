package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxRetries is the total number of attempts per operation.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second
	// maxBackoffDelay caps the exponential backoff.
	maxBackoffDelay = 10 * time.Second
)

// RetryPolicy wraps a fallible provider operation with bounded
// exponential-backoff retry. The delay before retry n is
// min(BaseDelay * 2^(n-1), 10s).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRetryPolicy returns a policy with defaults applied for
// non-positive arguments.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Do runs op up to MaxRetries times. On exhaustion it returns an error
// wrapping both ErrRetryExhausted and the last underlying cause.
// A batch length mismatch is an integrity violation and is returned
// immediately, never retried verbatim.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := base << (attempt - 2)
			if delay > maxBackoffDelay {
				delay = maxBackoffDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBatchLengthMismatch) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
