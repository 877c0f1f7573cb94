package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/textgate/textgate/pkg/errors"
	"github.com/textgate/textgate/pkg/logging"
	"github.com/textgate/textgate/pkg/metrics"
)

// Operation is an async callable wrapped by the resilience service. Call
// arguments are captured in the closure, so the same closure shape serves
// both the primary function and its fallback.
type Operation func(ctx context.Context) (interface{}, error)

// Middleware decorates an Operation with resilience behavior
type Middleware func(Operation) Operation

// Service orchestrates retry, circuit breaking, fallback and metrics for
// named operations. Circuit breakers and metrics entries are created lazily
// per operation name and never shared between names.
//
// A Service is safe for concurrent use. Construct one per hosting
// application and inject it; do not reach for a package-level instance.
type Service struct {
	mutex    sync.Mutex
	breakers map[string]*CircuitBreaker

	tracker   *MetricsTracker
	collector *metrics.Metrics
	logger    *logging.Logger
}

// NewService creates a new resilience service. The collector may be nil
// when Prometheus export is not wanted (e.g. in tests).
func NewService(collector *metrics.Metrics) *Service {
	return &Service{
		breakers:  make(map[string]*CircuitBreaker),
		tracker:   NewMetricsTracker(),
		collector: collector,
		logger:    logging.GetLogger(),
	}
}

// WithResilience returns a decorator applying the named strategy's preset
// to an operation. The fallback may be nil.
func (s *Service) WithResilience(operation string, strategy Strategy, fallback Operation) Middleware {
	return s.WithResilienceConfig(operation, strategy.Config(), fallback)
}

// WithResilienceNamed is WithResilience for a strategy given by its string
// name. Unknown names fail here, at decoration time, never at call time.
func (s *Service) WithResilienceNamed(operation, strategy string, fallback Operation) (Middleware, error) {
	parsed, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	return s.WithResilience(operation, parsed, fallback), nil
}

// WithResilienceConfig returns a decorator applying a custom configuration
func (s *Service) WithResilienceConfig(operation string, cfg ResilienceConfig, fallback Operation) Middleware {
	return func(fn Operation) Operation {
		return func(ctx context.Context) (interface{}, error) {
			return s.execute(ctx, operation, cfg, fn, fallback)
		}
	}
}

// Convenience wrappers over the main decorator, one per strategy tier.

func (s *Service) WithAggressiveResilience(operation string) Middleware {
	return s.WithResilience(operation, StrategyAggressive, nil)
}

func (s *Service) WithBalancedResilience(operation string) Middleware {
	return s.WithResilience(operation, StrategyBalanced, nil)
}

func (s *Service) WithConservativeResilience(operation string) Middleware {
	return s.WithResilience(operation, StrategyConservative, nil)
}

func (s *Service) WithCriticalResilience(operation string) Middleware {
	return s.WithResilience(operation, StrategyCritical, nil)
}

// execute runs one resilience-wrapped call
func (s *Service) execute(ctx context.Context, operation string, cfg ResilienceConfig, fn, fallback Operation) (interface{}, error) {
	breaker := s.breaker(operation, cfg.CircuitBreaker)
	start := time.Now()

	if cfg.EnableCircuitBreaker {
		if err := breaker.Allow(); err != nil {
			s.tracker.RecordFailure(operation)
			s.recordOutcome(operation, "rejected", start)
			s.updateBreakerGauge(operation, breaker)

			if fallback != nil {
				s.logger.Warn("Circuit open, invoking fallback",
					"operation", operation,
				)
				if s.collector != nil {
					s.collector.RecordFallback(operation, "circuit_open")
				}
				return fallback(ctx)
			}
			return nil, errors.NewServiceUnavailableError(operation).WithCause(err)
		}
	}

	maxAttempts := cfg.Retry.normalized().MaxAttempts
	if !cfg.EnableRetry {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			// The original call is attempt 0 of the backoff schedule's
			// perspective; the first retry computes Delay(0).
			delay := cfg.Retry.Delay(attempt - 1)

			s.logger.Debug("Operation failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", lastErr.Error(),
			)

			if err := sleep(ctx, delay); err != nil {
				s.tracker.RecordFailure(operation)
				s.recordOutcome(operation, "cancelled", start)
				return nil, err
			}

			s.tracker.RecordRetry(operation)
			if s.collector != nil {
				s.collector.RecordRetry(operation)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if cfg.EnableCircuitBreaker {
				breaker.RecordSuccess()
			}
			s.tracker.RecordSuccess(operation)
			s.recordOutcome(operation, "success", start)
			s.updateBreakerGauge(operation, breaker)

			if attempt > 0 {
				s.logger.Info("Operation succeeded after retry",
					"operation", operation,
					"attempts", attempt+1,
					"duration", time.Since(start),
				)
			}
			return result, nil
		}

		lastErr = err

		if !IsTransient(err) {
			s.logger.Debug("Error is not retryable, stopping",
				"operation", operation,
				"error", err.Error(),
			)
			break
		}
	}

	if cfg.EnableCircuitBreaker {
		breaker.RecordFailure()
	}
	s.tracker.RecordFailure(operation)
	s.recordOutcome(operation, "failure", start)
	s.updateBreakerGauge(operation, breaker)

	s.logger.Error("Operation failed after all attempts",
		"operation", operation,
		"duration", time.Since(start),
		"error", lastErr.Error(),
	)

	if fallback != nil {
		if s.collector != nil {
			s.collector.RecordFallback(operation, "failure")
		}
		// A failing fallback propagates its own error unchanged.
		return fallback(ctx)
	}

	return nil, lastErr
}

// breaker fetches or lazily creates the circuit breaker for an operation.
// The first caller's configuration wins; breakers live until an explicit
// reset.
func (s *Service) breaker(operation string, cfg CircuitBreakerConfig) *CircuitBreaker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cb, ok := s.breakers[operation]
	if !ok {
		if cfg.Name == "" {
			cfg.Name = operation
		}
		cb = NewCircuitBreaker(cfg)
		s.breakers[operation] = cb
	}
	return cb
}

func (s *Service) recordOutcome(operation, result string, start time.Time) {
	if s.collector != nil {
		s.collector.RecordCall(operation, result, time.Since(start))
	}
}

func (s *Service) updateBreakerGauge(operation string, breaker *CircuitBreaker) {
	if s.collector != nil {
		s.collector.UpdateCircuitBreakerState(operation, int(breaker.State()))
	}
}

// GetMetrics returns a copy of the metrics for an operation, creating the
// entry lazily.
func (s *Service) GetMetrics(operation string) OperationMetrics {
	return s.tracker.Get(operation)
}

// AllMetrics is a JSON-serializable snapshot of every operation's metrics
// and breaker state.
type AllMetrics struct {
	Operations      map[string]OperationMetrics `json:"operations"`
	CircuitBreakers map[string]Snapshot         `json:"circuit_breakers"`
	Summary         MetricsSummary              `json:"summary"`
}

// MetricsSummary aggregates registry sizes
type MetricsSummary struct {
	TotalOperations      int `json:"total_operations"`
	TotalCircuitBreakers int `json:"total_circuit_breakers"`
}

// GetAllMetrics returns a snapshot of all operations and circuit breakers
func (s *Service) GetAllMetrics() AllMetrics {
	operations := s.tracker.All()

	s.mutex.Lock()
	breakers := make(map[string]Snapshot, len(s.breakers))
	for name, cb := range s.breakers {
		breakers[name] = cb.Snapshot()
	}
	s.mutex.Unlock()

	return AllMetrics{
		Operations:      operations,
		CircuitBreakers: breakers,
		Summary: MetricsSummary{
			TotalOperations:      len(operations),
			TotalCircuitBreakers: len(breakers),
		},
	}
}

// HealthStatus reports overall resilience health for a health-check
// endpoint. The service is unhealthy iff at least one breaker is open.
type HealthStatus struct {
	Healthy              bool     `json:"healthy"`
	OpenCircuitBreakers  []string `json:"open_circuit_breakers"`
	TotalCircuitBreakers int      `json:"total_circuit_breakers"`
}

// GetHealthStatus returns the current health snapshot
func (s *Service) GetHealthStatus() HealthStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	open := []string{}
	for name, cb := range s.breakers {
		if cb.State() == StateOpen {
			open = append(open, name)
		}
	}

	return HealthStatus{
		Healthy:              len(open) == 0,
		OpenCircuitBreakers:  open,
		TotalCircuitBreakers: len(s.breakers),
	}
}

// GetCircuitBreaker returns the breaker registered for an operation, if any
func (s *Service) GetCircuitBreaker(operation string) (*CircuitBreaker, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cb, ok := s.breakers[operation]
	return cb, ok
}

// ResetMetrics clears all operation metrics. Circuit breaker state is not
// touched.
func (s *Service) ResetMetrics() {
	s.tracker.Reset()
}

// ResetCircuitBreakers returns every breaker to the closed state
func (s *Service) ResetCircuitBreakers() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, cb := range s.breakers {
		cb.Reset()
	}
}
