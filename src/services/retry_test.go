package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper captures requested waits without sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestBackoffDelay_Doubles(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 100 * time.Millisecond}

	for i := 0; i < 6; i++ {
		expected := 100 * time.Millisecond * time.Duration(1<<i)
		assert.Equal(t, expected, BackoffDelay(cfg, i, nil), "attempt %d", i)
	}
}

func TestBackoffDelay_MonotonicWithoutJitter(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 40, InitialDelay: time.Second}

	prev := time.Duration(0)
	for i := 0; i < 64; i++ {
		d := BackoffDelay(cfg, i, nil)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", i)
		assert.Positive(t, d, "attempt %d", i)
		prev = d
	}
}

func TestBackoffDelay_JitterBounds(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Second, Jitter: true}

	for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999999} {
		for i := 0; i < 5; i++ {
			nominal := time.Second * time.Duration(1<<i)
			d := BackoffDelay(cfg, i, func() float64 { return r })
			assert.GreaterOrEqual(t, d, time.Duration(float64(nominal)*0.5))
			assert.Less(t, d, time.Duration(float64(nominal)*1.5))
		}
	}
}

func TestBackoffDelay_JitterDisabledIgnoresRandom(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Second}
	d := BackoffDelay(cfg, 2, func() float64 { return 0.9 })
	assert.Equal(t, 4*time.Second, d)
}

func TestRetryOverrides_Merge(t *testing.T) {
	t.Run("empty overrides keep defaults", func(t *testing.T) {
		cfg := RetryOverrides{}.Merge(DefaultRetryConfig())
		assert.Equal(t, DefaultRetryConfig(), cfg)
	})

	t.Run("partial overrides", func(t *testing.T) {
		retries := 2
		jitter := true
		cfg := RetryOverrides{MaxRetries: &retries, Jitter: &jitter}.Merge(DefaultRetryConfig())

		assert.Equal(t, 2, cfg.MaxRetries)
		assert.Equal(t, DefaultInitialDelay, cfg.InitialDelay)
		assert.True(t, cfg.Jitter)
	})

	t.Run("negative values are clamped", func(t *testing.T) {
		retries := -1
		delay := -time.Second
		cfg := RetryOverrides{MaxRetries: &retries, InitialDelay: &delay}.Merge(DefaultRetryConfig())

		assert.Equal(t, 0, cfg.MaxRetries)
		assert.Equal(t, time.Duration(0), cfg.InitialDelay)
	})
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	result := Retry(context.Background(), RetryConfig{MaxRetries: 3, InitialDelay: time.Second},
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		}, WithSleeper(sleeper.sleep))

	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 1, result.Attempts)
	assert.NoError(t, result.LastErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	result := Retry(context.Background(), RetryConfig{MaxRetries: 3, InitialDelay: 10 * time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("not yet")
			}
			return 42, nil
		}, WithSleeper(sleeper.sleep))

	assert.True(t, result.Success)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeper.delays)
}

func TestRetry_ExhaustionReturnsFailure(t *testing.T) {
	sleeper := &recordingSleeper{}
	errBoom := errors.New("boom")
	calls := 0

	result := Retry(context.Background(), RetryConfig{MaxRetries: 4, InitialDelay: time.Millisecond},
		func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, errBoom
		}, WithSleeper(sleeper.sleep))

	assert.False(t, result.Success)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, result.Attempts)
	assert.ErrorIs(t, result.LastErr, errBoom)
	// No wait after the final attempt
	require.Len(t, sleeper.delays, 4)
	assert.Equal(t, 8*time.Millisecond, sleeper.delays[3])
}

func TestRetry_ZeroRetriesRunsOnce(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	result := Retry(context.Background(), RetryConfig{MaxRetries: 0, InitialDelay: time.Second},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		}, WithSleeper(sleeper.sleep))

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestRetry_OnRetryObserver(t *testing.T) {
	type observed struct {
		attempt int
		err     string
		delay   time.Duration
	}
	var seen []observed

	Retry(context.Background(), RetryConfig{MaxRetries: 2, InitialDelay: time.Second},
		func(ctx context.Context) (int, error) {
			return 0, errors.New("still failing")
		},
		WithSleeper((&recordingSleeper{}).sleep),
		WithOnRetry(func(attempt int, lastErr error, delay time.Duration) {
			seen = append(seen, observed{attempt, lastErr.Error(), delay})
		}))

	assert.Equal(t, []observed{
		{1, "still failing", time.Second},
		{2, "still failing", 2 * time.Second},
	}, seen)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	result := Retry(ctx, RetryConfig{MaxRetries: 5, InitialDelay: time.Hour},
		func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("fail")
		})

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.LastErr, context.Canceled)
}

func TestRetry_RealSleeperWaits(t *testing.T) {
	start := time.Now()
	calls := 0

	result := Retry(context.Background(), RetryConfig{MaxRetries: 2, InitialDelay: 5 * time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			if calls == 3 {
				return 1, nil
			}
			return 0, errors.New("fail")
		})

	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
