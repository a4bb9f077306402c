package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Retry defaults suit both engine subprocesses (pdftotext, tesseract) and
// API calls: short first backoff, capped growth.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultMultiplier     = 2.0
	defaultJitterFraction = 0.25
)

// RetryConfig controls retries with exponential backoff and jitter.
// Zero values fall back to the defaults above.
type RetryConfig struct {
	// MaxAttempts counts the first try; 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the grown delay.
	MaxBackoff time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64

	// JitterFraction randomizes each delay by +/- this fraction.
	JitterFraction float64

	// ShouldRetry replaces the default IsTransient check when set.
	ShouldRetry func(err error) bool

	// OnRetry fires before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is the configuration used when a caller has no
// per-operation tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Multiplier:     defaultMultiplier,
		JitterFraction: defaultJitterFraction,
	}
}

func (cfg RetryConfig) normalized() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaultMultiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// delay returns the backoff before retry number attempt (0-based).
func (cfg RetryConfig) delay(attempt int) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	d = math.Min(d, float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.JitterFraction
	}
	return time.Duration(math.Max(d, 0))
}

// DoVal runs fn until it succeeds, the error is permanent, the context is
// done, or attempts run out. Only transient errors (per ShouldRetry or
// IsTransient) are retried; the last error is returned with the zero value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) || attempt >= cfg.MaxAttempts-1 {
			return zero, lastErr
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		if err := sleep(ctx, cfg.delay(attempt)); err != nil {
			return zero, lastErr
		}
	}
}

// Do is DoVal for operations without a return value.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs attempts under the
// given service and operation labels.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
