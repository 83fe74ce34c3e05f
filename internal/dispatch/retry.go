// Package dispatch issues completion requests against the external model
// service under a process-wide concurrency cap, per-call timeouts, and a
// bounded retry policy. It is the sole network-facing component for
// completions.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/gridmind/gridmind/internal/core"
)

// RetryPolicy bounds retries of transient completion failures.
type RetryPolicy struct {
	// MaxRetries is the retry ceiling after the initial attempt.
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.0 to 1.0
	Multiplier   float64 // exponential factor
}

// DefaultRetryPolicy returns the default policy: two retries with
// exponential backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   2,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.2,
		Multiplier:   2.0,
	}
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func(ctx context.Context) error

// Execute runs fn, retrying transient failures up to the ceiling. Errors
// whose category is not retryable (auth, malformed request) propagate
// immediately.
func (p *RetryPolicy) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	attempts := p.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}

	return &RetryExhaustedError{Attempts: attempts, LastErr: lastErr}
}

// delay computes the backoff for a given attempt number.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		jitter := d * p.JitterFactor
		d += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(d)
}

// RetryExhaustedError indicates all attempts failed with transient errors.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
