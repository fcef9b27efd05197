package zotero

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrNotFound indicates the item or collection does not exist.
	ErrNotFound = errors.New("not found in Zotero library")

	// ErrVersionConflict indicates a write precondition failed because the
	// object changed on the server since it was read. Callers retry with a
	// fresh read; the client never merges automatically.
	ErrVersionConflict = errors.New("Zotero library version conflict")
)

// APIError is a non-success response from the Zotero API, carrying the
// status code and body verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Zotero API error (status %d): %s", e.StatusCode, e.Body)
}

// RateLimitError is a 429 response. The client does not retry; RetryAfter
// tells the caller how long to wait before trying again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Zotero rate limit exceeded, retry after %s", e.RetryAfter)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited returns true if the error is a rate-limit rejection.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsVersionConflict returns true if the error is a write-precondition
// failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
