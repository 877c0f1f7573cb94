// Package resilience shields callers from transient failures of the
// downstream AI service via configurable retry, circuit breaking, and
// fallback, with per-operation metrics.
//
// This package implements the following patterns:
//
// # Strategy Tiers
//
// Named presets bundle a retry policy with a circuit breaker policy, tuned
// to operation criticality. Aggressive fails fast; critical retries up to
// seven attempts before giving up.
//
//	svc := resilience.NewService(nil)
//	wrapped := svc.WithResilience("summarize", resilience.StrategyBalanced, nil)(func(ctx context.Context) (interface{}, error) {
//		return aiClient.Summarize(ctx, text)
//	})
//
//	result, err := wrapped(ctx)
//
// # Circuit Breaker Pattern
//
// Each operation name owns an independent breaker. Consecutive failures
// open it; after the recovery timeout the next call probes the downstream
// in half-open state.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//		Name:             "summarize",
//		FailureThreshold: 5,
//		RecoveryTimeout:  60 * time.Second,
//		HalfOpenMaxCalls: 1,
//	})
//
// # Retry with Exponential Backoff
//
// Failed attempts classified transient are retried with exponential
// backoff and jitter; permanent errors abort immediately.
//
// # Fallback
//
// A fallback operation substitutes a result when the circuit is open or
// retries are exhausted. It receives the same closure arguments as the
// primary operation. If no fallback is configured, the caller sees a
// typed error identifying which stage failed.
//
// # Metrics and Health
//
// Per-operation counters and breaker snapshots are exposed as
// JSON-serializable values for a dashboard or health-check endpoint:
//
//	all := svc.GetAllMetrics()
//	health := svc.GetHealthStatus()
//
// The package is safe for concurrent use from many request goroutines.
package resilience
