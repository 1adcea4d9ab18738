// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoData           = errors.New("payload has no option-chain records")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrExpiryNotFound   = errors.New("expiry not found")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
)

// NetworkError represents a failed request against the NSE API:
// connection failure, timeout, or a non-2xx response.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error [%d] %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("network error %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(url string, statusCode int, err error) *NetworkError {
	return &NetworkError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ParseError represents a response body that is not valid JSON or
// lacks the records block. Treated like a NetworkError for retry
// purposes: the fetch is repeated, never continued with stale data.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(url string, err error) *ParseError {
	return &ParseError{URL: url, Err: err}
}

// DataShapeError represents a malformed option-chain record, such as a
// duplicate strike on one instrument side. Surfaced to the caller of
// the transform, never silently swallowed.
type DataShapeError struct {
	Side    string
	Strike  float64
	Message string
}

func (e *DataShapeError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("data shape error [%s @ %.2f]: %s", e.Side, e.Strike, e.Message)
	}
	return fmt.Sprintf("data shape error: %s", e.Message)
}

// NewDataShapeError creates a new DataShapeError.
func NewDataShapeError(side string, strike float64, message string) *DataShapeError {
	return &DataShapeError{
		Side:    side,
		Strike:  strike,
		Message: message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRetryable reports whether the fetch that produced err should be
// retried. Network and parse failures are both retryable; anything
// else (config, data shape) is not.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var parseErr *ParseError
	return errors.As(err, &netErr) || errors.As(err, &parseErr)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
