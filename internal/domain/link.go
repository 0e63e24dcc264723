package domain

import (
	"errors"
	"time"
)

// TrackerStatus mirrors the open/closed state of the linked issue.
type TrackerStatus string

// Possible tracker status values
const (
	TrackerStatusOpened TrackerStatus = "opened"
	TrackerStatusClosed TrackerStatus = "closed"
)

// Valid reports whether s is a known tracker status.
func (s TrackerStatus) Valid() bool {
	return s == TrackerStatusOpened || s == TrackerStatusClosed
}

// TaskStatus mirrors the state of the task in the task suite.
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Common validation errors for TaskLink
var (
	ErrEmptyLinkTaskID  = errors.New("task link task ID cannot be empty")
	ErrEmptyLinkProject = errors.New("task link tracker project cannot be empty")
	ErrInvalidIssueID   = errors.New("task link issue ID must be positive")
	ErrEmptyLinkURL     = errors.New("task link issue URL cannot be empty")
)

// TaskLink pairs one task-suite task with one tracker issue. TaskID is the
// natural key: there is exactly one TaskLink per task.
type TaskLink struct {
	ID                      int64         `json:"id"`
	TrackerProject          string        `json:"tracker_project"`
	TrackerIssueID          int64         `json:"tracker_issue_id"`
	TrackerIssueURL         string        `json:"tracker_issue_url"`
	TaskID                  string        `json:"task_id"`
	TaskURL                 string        `json:"task_url,omitempty"`
	TrackerStatus           TrackerStatus `json:"tracker_status"`
	TaskStatus              TaskStatus    `json:"task_status"`
	CreatedBy               string        `json:"created_by,omitempty"`
	AssigneeTaskIdentity    string        `json:"assignee_task_identity,omitempty"`
	AssigneeTrackerIdentity string        `json:"assignee_tracker_identity,omitempty"`
	LastSyncedAt            time.Time     `json:"last_synced_at"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// NewTaskLink creates a link for a freshly created issue. Both sides start
// in their initial state: the issue is open and the task is todo.
func NewTaskLink(taskID, project string, issueID int64, issueURL string) (*TaskLink, error) {
	now := time.Now().UTC()
	link := &TaskLink{
		TaskID:          taskID,
		TrackerProject:  project,
		TrackerIssueID:  issueID,
		TrackerIssueURL: issueURL,
		TrackerStatus:   TrackerStatusOpened,
		TaskStatus:      TaskStatusTodo,
		LastSyncedAt:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := link.Validate(); err != nil {
		return nil, err
	}

	return link, nil
}

// Validate checks if the TaskLink has valid data.
func (l *TaskLink) Validate() error {
	if l.TaskID == "" {
		return ErrEmptyLinkTaskID
	}

	if l.TrackerProject == "" {
		return ErrEmptyLinkProject
	}

	if l.TrackerIssueID <= 0 {
		return ErrInvalidIssueID
	}

	if l.TrackerIssueURL == "" {
		return ErrEmptyLinkURL
	}

	if !l.TrackerStatus.Valid() {
		return ErrInvalidTrackerStatus
	}

	if !l.TaskStatus.Valid() {
		return ErrInvalidTaskStatus
	}

	return nil
}
