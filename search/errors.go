package search

import (
	"errors"
	"fmt"
)

var (
	// ErrSearchUnavailable is returned once the backend keeps failing after all retries.
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrEmptyQuery        = errors.New("empty search query")
)

// UnavailableError carries the query and last cause behind ErrSearchUnavailable.
type UnavailableError struct {
	Query    string
	Attempts int
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("search unavailable for %q after %d attempt(s): %v", e.Query, e.Attempts, e.Cause)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSearchUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// StatusError is a non-200 reply from the search backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search backend returned status %d", e.Code)
	}
	return fmt.Sprintf("search backend returned status %d: %s", e.Code, e.Body)
}
