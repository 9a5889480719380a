// Package resilience provides retry helpers for lookups against remote
// services.
package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how often a lookup is attempted and how long to wait
// in between. The wait doubles after every failed attempt up to MaxBackoff.
type RetryConfig struct {
	// MaxAttempts counts the first try. Default: 2.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// ShouldRetry decides whether an error is worth another attempt. Nil
	// retries transient errors only.
	ShouldRetry func(err error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig retries a page lookup once after a second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// DoVal calls fn until it succeeds, returns an error ShouldRetry rejects, the
// attempts run out or ctx is done. The last error is returned on failure.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var zero T
	wait := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt == cfg.MaxAttempts || ctx.Err() != nil || !cfg.ShouldRetry(err) {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(wait):
		}
		wait = min(2*wait, cfg.MaxBackoff)
	}
}

// RetryUnless returns a ShouldRetry func that retries every error except
// those matching one of stop.
func RetryUnless(stop ...error) func(error) bool {
	return func(err error) bool {
		for _, s := range stop {
			if errors.Is(err, s) {
				return false
			}
		}
		return true
	}
}

func withDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that warns about the failed
// attempt of operation against service.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying lookup",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
