package store

import (
	"context"

	"github.com/phrazzld/tasklink/internal/domain"
)

// LinkStore is the link registry. TaskID is the only declared unique key;
// (project, issue) is a secondary lookup.
type LinkStore interface {
	// Save inserts the link or, when a link for the same task exists,
	// overwrites its tracker side. Returns ErrInvalidEntity on validation failure.
	Save(ctx context.Context, link *domain.TaskLink) error

	// GetByTaskID returns ErrLinkNotFound when the task has no link.
	GetByTaskID(ctx context.Context, taskID string) (*domain.TaskLink, error)

	// GetByIssue returns the link for a tracker issue, or ErrLinkNotFound.
	GetByIssue(ctx context.Context, project string, issueID int64) (*domain.TaskLink, error)

	// UpdateTaskStatus changes only task_status and last_synced_at.
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error

	// UpdateTrackerStatus changes only tracker_status and last_synced_at.
	UpdateTrackerStatus(ctx context.Context, project string, issueID int64, status domain.TrackerStatus) error

	// Delete removes the link for a task. Returns ErrLinkNotFound if absent.
	Delete(ctx context.Context, taskID string) error
}
