// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidJob is returned when a link job payload is missing required
	// fields or cannot be decoded. Such jobs are never retried.
	ErrInvalidJob = errors.New("invalid link job")

	// ErrInvalidTaskStatus is returned when a task status is not one of the known values.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTrackerStatus is returned when a tracker status is not one of the known values.
	ErrInvalidTrackerStatus = errors.New("invalid tracker status")

	// ErrInvalidTaskURL is returned when a task URL cannot be linked to.
	ErrInvalidTaskURL = errors.New("invalid task url")

	// ErrInvalidTimestamp is returned when a task timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
