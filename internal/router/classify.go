package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/zedaapi/eventspine/internal/envelope"
)

// ValidationError marks a handler failure as semantically invalid input
// (missing required field, platform 4xx other than 429). Never retried.
type ValidationError struct{ Cause error }

func (e *ValidationError) Error() string { return "validation: " + e.Cause.Error() }
func (e *ValidationError) Unwrap() error { return e.Cause }

// ExternalServiceError marks a handler failure as a transient downstream
// problem (platform 5xx/429, network error). Retried with backoff.
type ExternalServiceError struct{ Cause error }

func (e *ExternalServiceError) Error() string { return "external service: " + e.Cause.Error() }
func (e *ExternalServiceError) Unwrap() error { return e.Cause }

// ProcessingTimeoutError marks a handler that exceeded its deadline.
// Retried up to max_attempts.
type ProcessingTimeoutError struct{ Cause error }

func (e *ProcessingTimeoutError) Error() string { return "processing timeout: " + e.Cause.Error() }
func (e *ProcessingTimeoutError) Unwrap() error { return e.Cause }

// Classify maps a handler failure reason to the failure_type taxonomy of
// the error handling design: decode errors are SerializationError (never
// retried, straight to DLQ); context deadline/ProcessingTimeoutError is
// ProcessingTimeout; ValidationError is ValidationError; 5xx/429/network
// and ExternalServiceError are ExternalServiceError; anything else is
// UnknownError.
func Classify(cause error) envelope.FailureType {
	if cause == nil {
		return envelope.FailureUnknown
	}

	var serErr *envelope.SerializationError
	if errors.As(cause, &serErr) {
		return envelope.FailureSerialization
	}

	var valErr *ValidationError
	if errors.As(cause, &valErr) {
		return envelope.FailureValidation
	}

	var extErr *ExternalServiceError
	if errors.As(cause, &extErr) {
		return envelope.FailureExternalService
	}

	var toErr *ProcessingTimeoutError
	if errors.As(cause, &toErr) || errors.Is(cause, context.DeadlineExceeded) {
		return envelope.FailureProcessTimeout
	}

	return envelope.FailureUnknown
}

// ClassifyHTTPStatus maps an outbound platform API response status to a
// handler Outcome: 2xx is Success; 429 and 5xx are retryable
// ExternalServiceError; other 4xx are non-retryable ValidationError.
func ClassifyHTTPStatus(status int, cause error) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess()
	case status == http.StatusTooManyRequests, status >= 500:
		return OutcomeRetry(&ExternalServiceError{Cause: cause})
	case status >= 400:
		return OutcomeDead(&ValidationError{Cause: cause})
	default:
		return OutcomeRetry(&ExternalServiceError{Cause: cause})
	}
}

// ShouldRetry reports whether an outcome's reason should be retried at
// all, independent of the attempt ceiling (SerializationError and
// ValidationError never are).
func ShouldRetry(cause error) bool {
	failureType := Classify(cause)
	return failureType == envelope.FailureProcessTimeout || failureType == envelope.FailureExternalService || failureType == envelope.FailureUnknown
}
