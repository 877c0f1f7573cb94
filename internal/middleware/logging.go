package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/textgate/textgate/pkg/logging"
)

// RequestLogging tags every request with correlation and request IDs,
// propagates them through the request context and logs completion.
func RequestLogging(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.NewCorrelationID()
		}
		requestID := logging.NewCorrelationID()

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		ctx = logging.WithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Correlation-ID", correlationID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		logger.WithContext(ctx).WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}).Info("Request completed")
	}
}

// ErrorLogging logs any errors attached to the gin context during
// request handling.
func ErrorLogging(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, ginErr := range c.Errors {
			logger.WithContext(c.Request.Context()).
				WithError(ginErr.Err).
				Error("Request processing error")
		}
	}
}
