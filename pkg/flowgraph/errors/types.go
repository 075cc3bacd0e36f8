package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPError is a provider failure carrying the upstream status code.
// Its text starts with the status, so a 503 classifies as transient.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ClassifyHTTP attaches an explicit category to statuses whose meaning is not
// carried by their text: 429 is transient, and every other 4xx except 408 is
// permanent. Other statuses are returned unchanged for text classification.
func ClassifyHTTP(e *HTTPError) error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return Transient(e, "")
	case e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusRequestTimeout:
		return Permanent(e, "")
	default:
		return e
	}
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return "timeout: " + e.Operation
	}
	return fmt.Sprintf("timeout: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// AsTimeout wraps err in a TimeoutError when it reports an exceeded deadline
// or a network timeout. Any other error is returned unchanged.
func AsTimeout(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Operation: operation, Err: err}
	}
	return err
}
