package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/textgate/textgate/pkg/logging"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, limited requests are allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name of the circuit breaker for logging/metrics
	Name string
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit
	FailureThreshold int
	// RecoveryTimeout is the period of the open state, after which the
	// next call probes the downstream in half-open state
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls is the maximum number of trial calls allowed while
	// the circuit is half-open
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker is a per-operation state machine that stops calling a
// failing downstream dependency for a cool-down period. State transitions
// are evaluated lazily at call time; there is no background timer.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mutex           sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	halfOpenCalls   int

	logger *logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		recoveryTimeout:  config.RecoveryTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		state:            StateClosed,
		logger:           logging.GetLogger(),
	}
}

// Allow reports whether a call may proceed. In half-open state each
// allowed call consumes one of the limited trial slots.
func (cb *CircuitBreaker) Allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.evaluateState(time.Now()) {
	case StateOpen:
		return &CircuitBreakerError{Name: cb.name, State: StateOpen}
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return &CircuitBreakerError{Name: cb.name, State: StateHalfOpen}
		}
		cb.halfOpenCalls++
	}

	return nil
}

// RecordSuccess records a successful call. A single success in half-open
// state closes the circuit and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.evaluateState(time.Now()) {
	case StateHalfOpen:
		cb.setState(StateClosed)
		cb.failureCount = 0
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure records a failed call. Reaching the consecutive failure
// threshold opens the circuit; any failure in half-open state reopens it
// and restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()

	switch cb.evaluateState(now) {
	case StateHalfOpen:
		cb.lastFailureTime = now
		cb.setState(StateOpen)
	case StateClosed:
		cb.failureCount++
		cb.lastFailureTime = now
		if cb.failureCount >= cb.failureThreshold {
			cb.setState(StateOpen)
		}
	case StateOpen:
		cb.lastFailureTime = now
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.evaluateState(time.Now())
}

// FailureCount returns the current consecutive failure count
func (cb *CircuitBreaker) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.failureCount
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Reset returns the breaker to the closed state and clears its counters
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.halfOpenCalls = 0
	cb.lastFailureTime = time.Time{}
}

// Snapshot is a read-only view of breaker state for metrics reporting
type Snapshot struct {
	State        string     `json:"state"`
	FailureCount int        `json:"failure_count"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// Snapshot returns a copy of the breaker's observable state
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	snap := Snapshot{
		State:        cb.evaluateState(time.Now()).String(),
		FailureCount: cb.failureCount,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		snap.LastFailure = &t
	}
	return snap
}

// evaluateState applies the lazy open -> half-open transition. Callers must
// hold the mutex.
func (cb *CircuitBreaker) evaluateState(now time.Time) CircuitState {
	if cb.state == StateOpen && now.Sub(cb.lastFailureTime) >= cb.recoveryTimeout {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

// setState transitions the breaker. Callers must hold the mutex.
func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	if state == StateHalfOpen {
		cb.halfOpenCalls = 0
	}

	cb.logger.Info("Circuit breaker state changed",
		"name", cb.name,
		"from", prev.String(),
		"to", state.String(),
		"failure_count", cb.failureCount,
	)
}

// CircuitBreakerError represents an error when the circuit breaker rejects a call
type CircuitBreakerError struct {
	Name  string
	State CircuitState
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State.String())
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
