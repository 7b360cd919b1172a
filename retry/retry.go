// Package retry implements bounded exponential backoff for transient gateway
// faults. Only errors the model package classifies as retryable are retried;
// protocol and schema errors propagate immediately.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/parleyhq/parley/model"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff (doubled per attempt).
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// Jitter adds up to this fraction of random spread to each delay.
	Jitter float64
}

// DefaultConfig matches the gateway retry policy: three attempts with
// exponential backoff starting at 500ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Delay computes the backoff before the given zero-based retry attempt.
func (c Config) Delay(attempt int) time.Duration {
	d := c.BaseDelay << uint(attempt)
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter > 0 {
		d += time.Duration(rand.Float64() * c.Jitter * float64(d))
	}
	return d
}

// Do executes fn up to cfg.MaxAttempts times, backing off between attempts
// and honoring a provider-requested Retry-After when it exceeds the computed
// delay. Context cancellation interrupts the wait. Non-retryable errors
// return immediately.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !model.IsRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			delay := cfg.Delay(attempt)
			if after := model.RetryAfter(err); after > delay {
				delay = after
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}
