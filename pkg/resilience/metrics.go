package resilience

import (
	"sync"
	"time"
)

// OperationMetrics holds per-operation call counters. Counters accumulate
// for the process lifetime unless reset in bulk.
type OperationMetrics struct {
	TotalCalls      int64      `json:"total_calls"`
	SuccessfulCalls int64      `json:"successful_calls"`
	FailedCalls     int64      `json:"failed_calls"`
	RetryAttempts   int64      `json:"retry_attempts"`
	LastSuccess     *time.Time `json:"last_success,omitempty"`
	LastFailure     *time.Time `json:"last_failure,omitempty"`
}

// MetricsTracker tracks per-operation metrics. Entries are created lazily
// on first use and are fully isolated between operation names.
type MetricsTracker struct {
	mutex      sync.RWMutex
	operations map[string]*OperationMetrics
}

// NewMetricsTracker creates an empty tracker
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		operations: make(map[string]*OperationMetrics),
	}
}

// get fetches or lazily creates the entry for an operation. Callers must
// hold the mutex.
func (t *MetricsTracker) get(operation string) *OperationMetrics {
	m, ok := t.operations[operation]
	if !ok {
		m = &OperationMetrics{}
		t.operations[operation] = m
	}
	return m
}

// RecordSuccess records a successful call
func (t *MetricsTracker) RecordSuccess(operation string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	m := t.get(operation)
	now := time.Now()
	m.TotalCalls++
	m.SuccessfulCalls++
	m.LastSuccess = &now
}

// RecordFailure records a failed call
func (t *MetricsTracker) RecordFailure(operation string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	m := t.get(operation)
	now := time.Now()
	m.TotalCalls++
	m.FailedCalls++
	m.LastFailure = &now
}

// RecordRetry records a retry attempt
func (t *MetricsTracker) RecordRetry(operation string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.get(operation).RetryAttempts++
}

// Get returns a copy of the metrics for an operation, creating the entry
// if it does not exist yet.
func (t *MetricsTracker) Get(operation string) OperationMetrics {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return *t.get(operation)
}

// All returns a copy of every operation's metrics
func (t *MetricsTracker) All() map[string]OperationMetrics {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	result := make(map[string]OperationMetrics, len(t.operations))
	for name, m := range t.operations {
		result[name] = *m
	}
	return result
}

// Reset clears all operation metrics
func (t *MetricsTracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.operations = make(map[string]*OperationMetrics)
}
