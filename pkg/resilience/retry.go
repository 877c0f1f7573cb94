package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	// MaxAttempts is the total number of calls allowed, original included.
	// Must be at least 1.
	MaxAttempts int
	// MaxDelay is a hard cap applied after backoff and jitter
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// ExponentialMin is the base delay for the first retry
	ExponentialMin time.Duration
	// ExponentialMax caps the exponential term before jitter
	ExponentialMax time.Duration
	// Jitter adds randomness to delay to avoid thundering herd
	Jitter bool
	// JitterMax bounds the uniform jitter added to each delay
	JitterMax time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		ExponentialMin: 1 * time.Second,
		ExponentialMax: 10 * time.Second,
		Jitter:         true,
		JitterMax:      1 * time.Second,
	}
}

// normalized returns a copy with invalid fields replaced by safe values
func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.ExponentialMin <= 0 {
		c.ExponentialMin = 1 * time.Second
	}
	if c.ExponentialMax < c.ExponentialMin {
		c.ExponentialMax = c.ExponentialMin
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.ExponentialMax
	}
	return c
}

// Delay computes the backoff before a retry. The first retry is attempt 0.
// The exponential term is clamped to [ExponentialMin, ExponentialMax],
// uniform jitter in [0, JitterMax] is added, and the result is hard-capped
// at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	cfg := c.normalized()

	delay := float64(cfg.ExponentialMin) * math.Pow(cfg.Multiplier, float64(attempt))

	if delay < float64(cfg.ExponentialMin) {
		delay = float64(cfg.ExponentialMin)
	}
	if delay > float64(cfg.ExponentialMax) {
		delay = float64(cfg.ExponentialMax)
	}

	if cfg.Jitter && cfg.JitterMax > 0 {
		delay += rand.Float64() * float64(cfg.JitterMax)
	}

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry decides whether another attempt is allowed after a failure.
// attemptsMade counts calls already performed, original included.
func (c RetryConfig) ShouldRetry(attemptsMade int, err error) bool {
	cfg := c.normalized()

	if attemptsMade >= cfg.MaxAttempts {
		return false
	}
	return IsTransient(err)
}

// sleep waits for the given delay, returning early if the caller's context
// is cancelled.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
