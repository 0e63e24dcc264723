package domain

import (
	"errors"
	"time"
)

// Common validation errors for UserMapping
var (
	ErrEmptyTaskIdentity    = errors.New("user mapping task identity cannot be empty")
	ErrEmptyTrackerIdentity = errors.New("user mapping tracker identity cannot be empty")
)

// UserMapping caches the tracker username confirmed for a task-suite user.
// It is a cache: the identity directory stays authoritative.
type UserMapping struct {
	TaskIdentity    string    `json:"task_identity"`
	TrackerIdentity string    `json:"tracker_identity"`
	DisplayName     string    `json:"display_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks if the UserMapping has valid data.
func (m *UserMapping) Validate() error {
	if m.TaskIdentity == "" {
		return ErrEmptyTaskIdentity
	}

	if m.TrackerIdentity == "" {
		return ErrEmptyTrackerIdentity
	}

	return nil
}
