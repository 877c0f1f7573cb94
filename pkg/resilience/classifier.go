package resilience

import (
	"context"
	stderrors "errors"

	"github.com/textgate/textgate/pkg/errors"
)

// IsTransient reports whether an error is worth retrying. Typed transient
// errors (timeouts, rate limits, 5xx responses) are retryable; validation
// and other permanent errors are not. Unknown error values default to
// transient: retrying a hopeless call is cheaper than dropping a
// recoverable one.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// The caller gave up; retrying on their behalf would be wrong.
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if IsCircuitBreakerError(err) {
		return false
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.StatusCode != 0 {
			return IsRetryableStatus(appErr.StatusCode)
		}

		switch appErr.Type {
		case errors.ErrorTypeTransient,
			errors.ErrorTypeTimeout,
			errors.ErrorTypeRateLimit,
			errors.ErrorTypeExternal,
			errors.ErrorTypeInternal:
			return true
		case errors.ErrorTypePermanent,
			errors.ErrorTypeValidation,
			errors.ErrorTypeNotFound,
			errors.ErrorTypeUnavailable:
			return false
		}
	}

	return true
}

// IsRetryableStatus reports whether a downstream HTTP status should be
// retried: 429 and all 5xx qualify, other 4xx do not.
func IsRetryableStatus(status int) bool {
	if status == 429 {
		return true
	}
	return status >= 500 && status < 600
}
