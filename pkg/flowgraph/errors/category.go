// Package errors classifies generation failures and decides whether and when
// to retry them.
//
// Providers attach an explicit category where their status codes decide it
// (see ClassifyHTTP and AsTimeout). Everything else is classified by message
// text: overload, throttling, and timeouts arrive in very different error
// types, but the text always carries a recognisable token. Policy turns a
// classification plus the number of retries already spent into a Decision.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, provider overload.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, invalid requests.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientMarkers are matched case-insensitively against error text.
var transientMarkers = []string{"503", "overloaded", "rate limit", "timeout"}

// CategorizedError wraps an error with an explicit category.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface. The category is not part of the
// text, which reaches users unchanged.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Context, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable regardless of its text.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent marks err as not retryable regardless of its text.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

// CategorizeMessage classifies raw error text.
func CategorizeMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return CategoryTransient
		}
	}
	return CategoryPermanent
}

// Categorize determines how an error should be handled.
// Explicit categories win; otherwise the error text decides.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	return CategorizeMessage(err.Error())
}
