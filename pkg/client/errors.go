package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/account-validator/pkg/validation"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrStopped is returned when the scheduler's stop signal fires between attempts.
	ErrStopped = errors.New("stopped")
)

// ErrorClass represents a classification of a failed attempt.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors and unexpected statuses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an expired per-request deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassAuth represents 401/403 responses. The credential is refreshed
	// and the request retried without backoff.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassCancelled represents a caller-cancelled context.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// APIError represents a non-2xx response from the validation service.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will not change on retry
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork, ErrorClassTimeout:
		return true
	case ErrorClassAuth:
		return true
	case ErrorClassCancelled:
		return false
	default:
		return false
	}
}

// errorKindFor maps the class of the last failed attempt onto the outcome taxonomy.
func errorKindFor(errorClass ErrorClass) validation.ErrorKind {
	switch errorClass {
	case ErrorClassRateLimit:
		return validation.ErrorKindRateLimit
	case ErrorClassNetwork:
		return validation.ErrorKindNetwork
	case ErrorClassTimeout:
		return validation.ErrorKindTimeout
	case ErrorClassAuth:
		return validation.ErrorKindAuthentication
	case ErrorClassCancelled:
		return validation.ErrorKindCancelled
	default:
		return validation.ErrorKindAPI
	}
}
