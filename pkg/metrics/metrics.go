package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Resilience metrics
	ResilienceCallsTotal   *prometheus.CounterVec
	RetryAttemptsTotal     *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
	OperationDuration      *prometheus.HistogramVec
	FallbackInvocations    *prometheus.CounterVec

	// Cache metrics
	CacheOperationsTotal   *prometheus.CounterVec
	CacheOperationDuration *prometheus.HistogramVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "textgate",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),

		ResilienceCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "resilience_calls_total",
				Help:      "Total number of resilience-wrapped calls by outcome",
			},
			[]string{"operation", "result"},
		),
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"operation"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Wrapped operation duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation", "result"},
		),
		FallbackInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "fallback_invocations_total",
				Help:      "Total number of fallback invocations",
			},
			[]string{"operation", "reason"},
		),

		CacheOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_operations_total",
				Help:      "Total number of response cache operations by outcome",
			},
			[]string{"operation", "result"},
		),
		CacheOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_operation_duration_seconds",
				Help:      "Response cache operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "result"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResilienceCallsTotal,
		m.RetryAttemptsTotal,
		m.CircuitBreakerState,
		m.OperationDuration,
		m.FallbackInvocations,
		m.CacheOperationsTotal,
		m.CacheOperationDuration,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration.Seconds())
}

// RecordCall records the outcome of a resilience-wrapped call
func (m *Metrics) RecordCall(operation, result string, duration time.Duration) {
	if m.ResilienceCallsTotal == nil {
		return
	}

	m.ResilienceCallsTotal.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// RecordRetry records a retry attempt
func (m *Metrics) RecordRetry(operation string) {
	if m.RetryAttemptsTotal == nil {
		return
	}

	m.RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordFallback records a fallback invocation
func (m *Metrics) RecordFallback(operation, reason string) {
	if m.FallbackInvocations == nil {
		return
	}

	m.FallbackInvocations.WithLabelValues(operation, reason).Inc()
}

// UpdateCircuitBreakerState updates the breaker state gauge
func (m *Metrics) UpdateCircuitBreakerState(operation string, state int) {
	if m.CircuitBreakerState == nil {
		return
	}

	m.CircuitBreakerState.WithLabelValues(operation).Set(float64(state))
}

// RecordCacheOperation records a response cache operation
func (m *Metrics) RecordCacheOperation(operation, result string, duration time.Duration) {
	if m.CacheOperationsTotal == nil {
		return
	}

	m.CacheOperationsTotal.WithLabelValues(operation, result).Inc()
	m.CacheOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(),
			strconv.Itoa(c.Writer.Status()), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
