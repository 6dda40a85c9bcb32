package services

import (
	"context"
	"math/rand/v2"
	"time"
)

// Default transcript polling budget
const (
	DefaultMaxRetries   = 5
	DefaultInitialDelay = 10 * time.Second
)

// Jitter multiplies the nominal delay by a factor in [jitterMin, jitterMax)
const (
	jitterMin = 0.5
	jitterMax = 1.5
)

// RetryConfig describes bounded exponential backoff. The delay before retry i
// (0-indexed) is InitialDelay * 2^i.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Jitter       bool
}

// DefaultRetryConfig returns the transcript polling defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Jitter:       false,
	}
}

// RetryOverrides is a partial RetryConfig. Nil fields keep the default.
type RetryOverrides struct {
	MaxRetries   *int
	InitialDelay *time.Duration
	Jitter       *bool
}

// Merge applies the overrides onto base
func (o RetryOverrides) Merge(base RetryConfig) RetryConfig {
	if o.MaxRetries != nil {
		base.MaxRetries = *o.MaxRetries
	}
	if o.InitialDelay != nil {
		base.InitialDelay = *o.InitialDelay
	}
	if o.Jitter != nil {
		base.Jitter = *o.Jitter
	}
	if base.MaxRetries < 0 {
		base.MaxRetries = 0
	}
	if base.InitialDelay < 0 {
		base.InitialDelay = 0
	}
	return base
}

// BackoffDelay returns the wait before retry number attempt (0-indexed).
// rnd supplies a uniform value in [0,1) and is only consulted with jitter enabled.
func BackoffDelay(cfg RetryConfig, attempt int, rnd func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the shift so very large attempt numbers saturate instead of overflowing
	if attempt > 30 {
		attempt = 30
	}
	const maxDelay = time.Duration(1<<63 - 1)
	var delay time.Duration
	if cfg.InitialDelay > maxDelay>>uint(attempt) {
		delay = maxDelay
	} else {
		delay = cfg.InitialDelay << uint(attempt)
	}
	if cfg.Jitter && rnd != nil {
		factor := jitterMin + rnd()*(jitterMax-jitterMin)
		scaled := float64(delay) * factor
		if scaled >= float64(maxDelay) {
			return maxDelay
		}
		delay = time.Duration(scaled)
	}
	return delay
}

// RetryResult reports the outcome of Retry. Exhaustion is a result, not an error.
type RetryResult[T any] struct {
	Success  bool
	Value    T
	Attempts int
	LastErr  error
}

// OnRetryFunc observes each retry before its wait. attempt is 1-indexed and
// names the attempt that just failed.
type OnRetryFunc func(attempt int, lastErr error, delay time.Duration)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

type retryOptions struct {
	onRetry OnRetryFunc
	sleep   SleepFunc
	rnd     func() float64
}

// RetryOption customizes a Retry call
type RetryOption func(*retryOptions)

// WithOnRetry registers an observer called before each backoff wait
func WithOnRetry(fn OnRetryFunc) RetryOption {
	return func(o *retryOptions) {
		o.onRetry = fn
	}
}

// WithSleeper replaces the wait implementation
func WithSleeper(fn SleepFunc) RetryOption {
	return func(o *retryOptions) {
		o.sleep = fn
	}
}

// WithRandom replaces the jitter source
func WithRandom(fn func() float64) RetryOption {
	return func(o *retryOptions) {
		o.rnd = fn
	}
}

// Retry runs op up to cfg.MaxRetries+1 times, backing off exponentially
// between failed attempts. It stops early when ctx is cancelled.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error), opts ...RetryOption) RetryResult[T] {
	o := retryOptions{
		sleep: sleepContext,
		rnd:   rand.Float64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var result RetryResult[T]
	for i := 0; i <= cfg.MaxRetries; i++ {
		result.Attempts++
		value, err := op(ctx)
		if err == nil {
			result.Success = true
			result.Value = value
			result.LastErr = nil
			return result
		}
		result.LastErr = err

		if i == cfg.MaxRetries {
			break
		}

		delay := BackoffDelay(cfg, i, o.rnd)
		if o.onRetry != nil {
			o.onRetry(result.Attempts, err, delay)
		}
		if err := o.sleep(ctx, delay); err != nil {
			result.LastErr = err
			return result
		}
	}
	return result
}

// sleepContext waits for d unless ctx finishes first
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
