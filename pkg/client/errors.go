package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingToken is returned when the client is built without a credential.
	ErrMissingToken = errors.New("auth token is required")
)

// APIError represents a marketplace API error with additional context.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error

	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("altered %s error (%s %s, status %d): %s: %v",
			e.ErrorClass, e.Method, e.Path, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("altered %s error (%s %s, status %d): %s",
		e.ErrorClass, e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// Other 4xx responses will not change on resubmission
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassTimeout, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
