package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/tasklink/internal/store"
)

// Common service errors. Callers check them with errors.Is; the API layer
// maps them to status codes.
var (
	// ErrLinkNotFound indicates the task has no link.
	// API layer should map this to HTTP 404 Not Found.
	ErrLinkNotFound = store.ErrLinkNotFound

	// ErrTrackerSync indicates the local link was updated but the tracker
	// rejected the matching change. The caller may retry the request.
	// API layer should map this to HTTP 502 Bad Gateway.
	ErrTrackerSync = errors.New("tracker update failed")
)

// LinkServiceError wraps unexpected failures with the operation that failed.
type LinkServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for LinkServiceError.
func (e *LinkServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("link service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("link service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *LinkServiceError) Unwrap() error {
	return e.Err
}

// NewLinkServiceError creates a new LinkServiceError.
func NewLinkServiceError(operation, message string, err error) *LinkServiceError {
	return &LinkServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
