package resilience

import (
	"fmt"
	"strings"
	"time"
)

// Strategy names a resilience preset tier. Tiers trade retry persistence
// against how quickly the circuit breaker gives up on a failing downstream.
type Strategy string

const (
	// StrategyAggressive fails fast: few retries, quick backoff, low
	// failure tolerance before the circuit opens.
	StrategyAggressive Strategy = "aggressive"
	// StrategyBalanced is the general-purpose default.
	StrategyBalanced Strategy = "balanced"
	// StrategyConservative retries patiently and tolerates more failures.
	StrategyConservative Strategy = "conservative"
	// StrategyCritical is reserved for operations where failure is costly:
	// up to 7 attempts and a long recovery window.
	StrategyCritical Strategy = "critical"
)

// ParseStrategy converts a strategy name to a Strategy. Unknown names are a
// configuration error and must be rejected before any call is made.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(name)) {
	case StrategyAggressive:
		return StrategyAggressive, nil
	case StrategyBalanced:
		return StrategyBalanced, nil
	case StrategyConservative:
		return StrategyConservative, nil
	case StrategyCritical:
		return StrategyCritical, nil
	default:
		return "", fmt.Errorf("unknown resilience strategy: %q", name)
	}
}

// ResilienceConfig composes a retry policy and a circuit breaker policy.
// It may be supplied directly in place of a named strategy.
type ResilienceConfig struct {
	Retry                RetryConfig
	CircuitBreaker       CircuitBreakerConfig
	EnableRetry          bool
	EnableCircuitBreaker bool
}

var strategyConfigs = map[Strategy]ResilienceConfig{
	StrategyAggressive: {
		Retry: RetryConfig{
			MaxAttempts:    2,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			ExponentialMin: 500 * time.Millisecond,
			ExponentialMax: 5 * time.Second,
			Jitter:         true,
			JitterMax:      500 * time.Millisecond,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
		EnableRetry:          true,
		EnableCircuitBreaker: true,
	},
	StrategyBalanced: {
		Retry: RetryConfig{
			MaxAttempts:    3,
			MaxDelay:       30 * time.Second,
			Multiplier:     2.0,
			ExponentialMin: 1 * time.Second,
			ExponentialMax: 10 * time.Second,
			Jitter:         true,
			JitterMax:      1 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			HalfOpenMaxCalls: 1,
		},
		EnableRetry:          true,
		EnableCircuitBreaker: true,
	},
	StrategyConservative: {
		Retry: RetryConfig{
			MaxAttempts:    5,
			MaxDelay:       60 * time.Second,
			Multiplier:     2.0,
			ExponentialMin: 2 * time.Second,
			ExponentialMax: 30 * time.Second,
			Jitter:         true,
			JitterMax:      2 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 8,
			RecoveryTimeout:  120 * time.Second,
			HalfOpenMaxCalls: 2,
		},
		EnableRetry:          true,
		EnableCircuitBreaker: true,
	},
	StrategyCritical: {
		Retry: RetryConfig{
			MaxAttempts:    7,
			MaxDelay:       120 * time.Second,
			Multiplier:     2.0,
			ExponentialMin: 2 * time.Second,
			ExponentialMax: 60 * time.Second,
			Jitter:         true,
			JitterMax:      2 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 10,
			RecoveryTimeout:  300 * time.Second,
			HalfOpenMaxCalls: 2,
		},
		EnableRetry:          true,
		EnableCircuitBreaker: true,
	},
}

// Config returns the preset configuration for a strategy. Unknown values
// fall back to the balanced preset; use ParseStrategy to reject bad names
// at configuration time.
func (s Strategy) Config() ResilienceConfig {
	if cfg, ok := strategyConfigs[s]; ok {
		return cfg
	}
	return strategyConfigs[StrategyBalanced]
}
