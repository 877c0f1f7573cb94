package resilience

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/textgate/textgate/pkg/errors"
	"github.com/textgate/textgate/pkg/metrics"
)

// These tests exercise the service together with a live Prometheus
// collector, verifying that call outcomes, retries and fallback
// invocations surface as the exported time series.

func TestService_ExportsPrometheusOutcomes(t *testing.T) {
	collector := metrics.NewMetrics(&metrics.Config{Namespace: "test", Enabled: true})
	svc := NewService(collector)

	var calls int
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, appErrors.NewTransientError("blip")
		}
		return "ok", nil
	}

	wrapped := svc.WithResilienceConfig("summarize", fastConfig(3, 5), nil)(op)

	_, err := wrapped(context.Background())
	require.NoError(t, err)

	success := testutil.ToFloat64(collector.ResilienceCallsTotal.WithLabelValues("summarize", "success"))
	assert.Equal(t, 1.0, success)

	retries := testutil.ToFloat64(collector.RetryAttemptsTotal.WithLabelValues("summarize"))
	assert.Equal(t, 1.0, retries)

	state := testutil.ToFloat64(collector.CircuitBreakerState.WithLabelValues("summarize"))
	assert.Equal(t, float64(StateClosed), state)
}

func TestService_ExportsFallbackAndRejection(t *testing.T) {
	collector := metrics.NewMetrics(&metrics.Config{Namespace: "test", Enabled: true})
	svc := NewService(collector)

	op := func(ctx context.Context) (interface{}, error) {
		return nil, appErrors.NewTransientError("down")
	}
	fallback := func(ctx context.Context) (interface{}, error) {
		return "stale", nil
	}

	wrapped := svc.WithResilienceConfig("qa", fastConfig(1, 1), fallback)(op)

	// First call fails, trips the breaker and invokes the fallback.
	result, err := wrapped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stale", result)

	failures := testutil.ToFloat64(collector.ResilienceCallsTotal.WithLabelValues("qa", "failure"))
	assert.Equal(t, 1.0, failures)

	exhausted := testutil.ToFloat64(collector.FallbackInvocations.WithLabelValues("qa", "failure"))
	assert.Equal(t, 1.0, exhausted)

	// Second call is rejected by the open breaker.
	result, err = wrapped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stale", result)

	rejected := testutil.ToFloat64(collector.ResilienceCallsTotal.WithLabelValues("qa", "rejected"))
	assert.Equal(t, 1.0, rejected)

	circuitOpen := testutil.ToFloat64(collector.FallbackInvocations.WithLabelValues("qa", "circuit_open"))
	assert.Equal(t, 1.0, circuitOpen)

	state := testutil.ToFloat64(collector.CircuitBreakerState.WithLabelValues("qa"))
	assert.Equal(t, float64(StateOpen), state)
}

func TestService_DisabledCollectorIsInert(t *testing.T) {
	collector := metrics.NewMetrics(&metrics.Config{Enabled: false})
	svc := NewService(collector)

	op := func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}
	wrapped := svc.WithResilienceConfig("noop", fastConfig(1, 5), nil)(op)

	result, err := wrapped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
