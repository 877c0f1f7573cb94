package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturedLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()

	logger, err := NewLogger(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      "stdout",
		ServiceName: "textgate-test",
		Version:     "test",
	})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	logger.SetOutput(buf)

	return logger, buf
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "chatty", Format: "json", Output: "stdout"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)
}

func TestLogger_KeyValuePairs(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	logger.Info("Operation completed",
		"operation", "summarize",
		"attempts", 2,
	)

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "Operation completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "summarize", entry["operation"])
	assert.Equal(t, float64(2), entry["attempts"])
	assert.Equal(t, "textgate-test", entry["service"])
	assert.Equal(t, "test", entry["version"])
}

func TestLogger_DanglingKeyIsDropped(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	logger.Warn("odd pairs", "key1", "value1", "dangling")

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "value1", entry["key1"])
	assert.NotContains(t, entry, "dangling")
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithRequestID(ctx, "req-456")

	logger.WithContext(ctx).Info("handled")

	entry := decodeLogLine(t, buf)
	assert.Equal(t, "corr-123", entry["correlation_id"])
	assert.Equal(t, "req-456", entry["request_id"])
}

func TestLogger_WithContext_EmptyContext(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	logger.WithContext(context.Background()).Info("handled")

	entry := decodeLogLine(t, buf)
	assert.NotContains(t, entry, "correlation_id")
	assert.NotContains(t, entry, "request_id")
}

func TestGetCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-789")
	assert.Equal(t, "corr-789", GetCorrelationID(ctx))
	assert.Equal(t, "", GetCorrelationID(context.Background()))
}

func TestNewCorrelationID_Unique(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetGlobalLogger(original)

	replacement, _ := newCapturedLogger(t)
	SetGlobalLogger(replacement)

	assert.Same(t, replacement, GetLogger())
}
