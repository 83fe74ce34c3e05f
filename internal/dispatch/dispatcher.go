package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/logging"
)

const (
	// DefaultConcurrency is the process-wide in-flight request cap.
	DefaultConcurrency = 6
	// DefaultCallTimeout bounds one completion attempt.
	DefaultCallTimeout = 60 * time.Second
)

// Config sets dispatcher limits. Zero values fall back to defaults.
type Config struct {
	// Concurrency caps in-flight requests process-wide.
	Concurrency int
	// CallTimeout bounds each attempt, retries included per-attempt.
	CallTimeout time.Duration
	// Retry bounds transient-failure retries; nil uses DefaultRetryPolicy.
	Retry *RetryPolicy
	// RateLimit smooths request starts; nil disables smoothing.
	RateLimit *RateLimiter
}

// Dispatcher issues completion requests against the model service. At most
// Concurrency requests are in flight at once; each attempt is bounded by
// CallTimeout; transient failures are retried per the policy.
type Dispatcher struct {
	client      core.CompletionClient
	sem         *semaphore.Weighted
	concurrency int
	timeout     time.Duration
	retry       *RetryPolicy
	limiter     *RateLimiter
	logger      *logging.Logger
}

// NewDispatcher wraps a completion client with the configured limits.
func NewDispatcher(client core.CompletionClient, cfg Config, logger *logging.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Dispatcher{
		client:      client,
		sem:         semaphore.NewWeighted(int64(cfg.Concurrency)),
		concurrency: cfg.Concurrency,
		timeout:     cfg.CallTimeout,
		retry:       cfg.Retry,
		limiter:     cfg.RateLimit,
		logger:      logger,
	}
}

// Concurrency reports the in-flight request cap.
func (d *Dispatcher) Concurrency() int { return d.concurrency }

// Dispatch sends one completion request. It blocks while the concurrency cap
// is saturated; retry exhaustion surfaces the last transient failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, core.ErrCancelled("dispatch cancelled while waiting for capacity").WithCause(err)
	}
	defer d.sem.Release(1)

	var resp *core.CompletionResponse
	err := d.retry.Execute(ctx, func(ctx context.Context) error {
		if err := d.limiter.Acquire(ctx); err != nil {
			return core.ErrCancelled("dispatch cancelled while rate limited").WithCause(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		start := time.Now()
		r, err := d.client.Complete(callCtx, req)
		if err != nil {
			d.logger.Debug("completion attempt failed",
				"provider", d.client.Name(),
				"duration", time.Since(start),
				"category", string(core.GetCategory(err)),
				"error", err)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var exhausted *RetryExhaustedError
		if errors.As(err, &exhausted) {
			d.logger.Warn("completion retries exhausted",
				"provider", d.client.Name(),
				"attempts", exhausted.Attempts,
				"error", exhausted.LastErr)
			// Surface the final transient failure, not the wrapper.
			return nil, exhausted.LastErr
		}
		return nil, err
	}

	d.logger.Debug("completion succeeded",
		"provider", d.client.Name(),
		"model", resp.Model,
		"tokens_in", resp.TokensIn,
		"tokens_out", resp.TokensOut,
		"duration", resp.Duration)
	return resp, nil
}
