package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, recovery time.Duration, halfOpenMax int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test-op",
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		HalfOpenMaxCalls: halfOpenMax,
	})
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)

	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Allow()
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.FailureCount())

	// Two more failures should not open; the streak was broken
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := newTestBreaker(1, 30*time.Millisecond, 1)

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	require.Error(t, cb.Allow())

	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond, 1)

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cb.Allow())
	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond, 1)

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())

	// The recovery timer restarted; the breaker must still reject
	require.Error(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenLimitsTrialCalls(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond, 2)

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)

	assert.NoError(t, cb.Allow())
	assert.NoError(t, cb.Allow())

	err := cb.Allow()
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(1, time.Minute, 1)

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	cb := newTestBreaker(3, time.Minute, 1)

	snap := cb.Snapshot()
	assert.Equal(t, "CLOSED", snap.State)
	assert.Equal(t, 0, snap.FailureCount)
	assert.Nil(t, snap.LastFailure)

	cb.RecordFailure()

	snap = cb.Snapshot()
	assert.Equal(t, 1, snap.FailureCount)
	require.NotNil(t, snap.LastFailure)
	assert.WithinDuration(t, time.Now(), *snap.LastFailure, time.Second)
}

func TestCircuitBreaker_DefaultsApplied(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "defaults"})

	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 60*time.Second, cb.recoveryTimeout)
	assert.Equal(t, 1, cb.halfOpenMaxCalls)
}

func TestCircuitBreakerError_Message(t *testing.T) {
	err := &CircuitBreakerError{Name: "summarize", State: StateOpen}
	assert.Contains(t, err.Error(), "summarize")
	assert.Contains(t, err.Error(), "OPEN")
}
