package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoVal_FirstAttempt(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		calls++
		return 1234, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1234, got)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransientOnce(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("unexpected status 503"), 503)
		}
		return "page", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "page", got)
	assert.Equal(t, 2, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (int, error) {
		calls++
		return 7, NewTransientError(errors.New("always down"), 500)
	})
	require.Error(t, err)
	assert.Zero(t, got)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "always down")
}

func TestDoVal_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("no journal id in page")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second

	calls := 0
	start := time.Now()
	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryUnless(t *testing.T) {
	stop := errors.New("budget exhausted")
	cfg := fastRetry(3)
	cfg.ShouldRetry = RetryUnless(stop, context.Canceled)

	assert.True(t, cfg.ShouldRetry(errors.New("no stats in page")))
	assert.False(t, cfg.ShouldRetry(stop))
	assert.False(t, cfg.ShouldRetry(context.Canceled))

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, stop
		}
		return 0, errors.New("parse failure")
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestDoVal_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("busy"), 429)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(RetryConfig{})
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	require.NotNil(t, cfg.ShouldRetry)
	assert.False(t, cfg.ShouldRetry(errors.New("permanent")))

	cfg = withDefaults(RetryConfig{InitialBackoff: 30 * time.Second})
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(3, 250, 2000)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)

	def := FromRetryConfig(0, 0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, def.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, def.InitialBackoff)
}

func TestRetryLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	defer undo()

	RetryLogger("springer", "search_stats")(1, errors.New("busy"))

	entries := logs.FilterMessage("retrying lookup").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "springer", ctx["service"])
	assert.Equal(t, "search_stats", ctx["operation"])
	assert.Equal(t, int64(1), ctx["attempt"])
}
