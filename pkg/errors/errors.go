package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeTransient   ErrorType = "transient"
	ErrorTypePermanent   ErrorType = "permanent"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
)

// AppError represents an application error with context
type AppError struct {
	Type       ErrorType         `json:"type"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Cause      error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithStatusCode attaches the HTTP status returned by the downstream service
func (e *AppError) WithStatusCode(status int) *AppError {
	e.StatusCode = status
	return e
}

// Common error constructors
func NewTransientError(message string) *AppError {
	return NewAppError(ErrorTypeTransient, "TRANSIENT_ERROR", message)
}

func NewPermanentError(message string) *AppError {
	return NewAppError(ErrorTypePermanent, "PERMANENT_ERROR", message)
}

func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

func NewRateLimitError(message string) *AppError {
	return NewAppError(ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", message).WithStatusCode(429)
}

func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

// IsNotFound reports whether the error represents a missing key or resource
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func NewExternalError(service, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "EXTERNAL_SERVICE_ERROR", message).
		WithDetail("service", service)
}

// NewServiceUnavailableError is raised when a circuit breaker rejects a call
// and no fallback is configured.
func NewServiceUnavailableError(operation string) *AppError {
	return NewAppError(ErrorTypeUnavailable, "SERVICE_UNAVAILABLE",
		fmt.Sprintf("operation %q is temporarily unavailable", operation)).
		WithDetail("operation", operation)
}

// FromStatusCode builds an error classified from a downstream HTTP status.
// 429 and 5xx map to retryable types, other 4xx to permanent.
func FromStatusCode(status int, message string) *AppError {
	switch {
	case status == 429:
		return NewRateLimitError(message)
	case status >= 500:
		return NewTransientError(message).WithStatusCode(status)
	case status >= 400:
		return NewPermanentError(message).WithStatusCode(status)
	default:
		return NewExternalError("ai", message).WithStatusCode(status)
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the downstream HTTP status if one was recorded
func GetStatusCode(err error) (int, bool) {
	if appErr, ok := err.(*AppError); ok && appErr.StatusCode != 0 {
		return appErr.StatusCode, true
	}
	return 0, false
}
