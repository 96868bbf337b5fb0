package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSites is returned when a request names no sites.
	ErrNoSites = errors.New("site_type list cannot be empty")
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTerminal is returned when a finished task is written again.
	ErrTaskTerminal = errors.New("task already finished")
)

// ValidationError reports a malformed request. No task is created for it.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AdapterError wraps a failure raised while scraping a single site.
type AdapterError struct {
	Site Site
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Site, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
