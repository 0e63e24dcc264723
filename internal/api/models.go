package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/queue"
)

// EnqueueJobRequest is the body of POST /v1/jobs.
type EnqueueJobRequest struct {
	TaskID                 string   `json:"task_id" validate:"required,max=128"`
	TaskURL                string   `json:"task_url"`
	Summary                string   `json:"summary" validate:"required"`
	Description            string   `json:"description"`
	DueTimestamp           string   `json:"due_timestamp" validate:"omitempty,numeric"`
	AssigneeTaskIdentities []string `json:"assignee_task_identities" validate:"omitempty,max=50"`
	TrackerProject         string   `json:"tracker_project" validate:"required"`
	CreatedBy              string   `json:"created_by"`
}

// ToJob converts the request to a queue payload.
func (r EnqueueJobRequest) ToJob() domain.LinkJob {
	return domain.LinkJob{
		TaskID:                 strings.TrimSpace(r.TaskID),
		TaskURL:                r.TaskURL,
		Summary:                r.Summary,
		Description:            r.Description,
		DueTimestamp:           r.DueTimestamp,
		AssigneeTaskIdentities: r.AssigneeTaskIdentities,
		TrackerProject:         strings.TrimSpace(r.TrackerProject),
		CreatedBy:              r.CreatedBy,
	}
}

// EnqueueJobResponse is returned when a job was accepted.
type EnqueueJobResponse struct {
	MsgID int64 `json:"msg_id"`
}

// TaskStatusRequest is the body of PUT /v1/links/{taskID}/task-status.
type TaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress done"`
}

// TrackerStatusRequest is the body of the tracker-status endpoint.
type TrackerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=opened closed"`
}

// CompletionRequest is the body of PUT /v1/links/{taskID}/completion. An
// empty or zero timestamp means the task is no longer completed.
type CompletionRequest struct {
	CompletedAt string `json:"completed_at" validate:"omitempty,numeric"`
}

// TaskEditsRequest is the body of POST /v1/links/{taskID}/edits. Omitted
// fields did not change.
type TaskEditsRequest struct {
	Summary      *string `json:"summary" validate:"omitempty,min=1"`
	Description  *string `json:"description"`
	DueTimestamp *string `json:"due_timestamp" validate:"omitempty,numeric"`
}

// LinkResponse is the wire form of a task link.
type LinkResponse struct {
	TaskID                  string    `json:"task_id"`
	TaskURL                 string    `json:"task_url,omitempty"`
	TrackerProject          string    `json:"tracker_project"`
	TrackerIssueID          int64     `json:"tracker_issue_id"`
	TrackerIssueURL         string    `json:"tracker_issue_url"`
	TaskStatus              string    `json:"task_status"`
	TrackerStatus           string    `json:"tracker_status"`
	AssigneeTaskIdentity    string    `json:"assignee_task_identity,omitempty"`
	AssigneeTrackerIdentity string    `json:"assignee_tracker_identity,omitempty"`
	CreatedBy               string    `json:"created_by,omitempty"`
	LastSyncedAt            time.Time `json:"last_synced_at"`
	CreatedAt               time.Time `json:"created_at"`
}

func linkToResponse(l *domain.TaskLink) LinkResponse {
	return LinkResponse{
		TaskID:                  l.TaskID,
		TaskURL:                 l.TaskURL,
		TrackerProject:          l.TrackerProject,
		TrackerIssueID:          l.TrackerIssueID,
		TrackerIssueURL:         l.TrackerIssueURL,
		TaskStatus:              string(l.TaskStatus),
		TrackerStatus:           string(l.TrackerStatus),
		AssigneeTaskIdentity:    l.AssigneeTaskIdentity,
		AssigneeTrackerIdentity: l.AssigneeTrackerIdentity,
		CreatedBy:               l.CreatedBy,
		LastSyncedAt:            l.LastSyncedAt,
		CreatedAt:               l.CreatedAt,
	}
}

// DeadLetterResponse is the wire form of an archived job.
type DeadLetterResponse struct {
	MsgID      int64           `json:"msg_id"`
	ReadCount  int             `json:"read_count"`
	Reason     string          `json:"reason"`
	Detail     string          `json:"detail,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	ArchivedAt time.Time       `json:"archived_at"`
	Payload    json.RawMessage `json:"payload"`
}

func deadLetterToResponse(d queue.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		MsgID:      d.MsgID,
		ReadCount:  d.ReadCount,
		Reason:     string(d.Reason),
		Detail:     d.Detail,
		EnqueuedAt: d.EnqueuedAt,
		ArchivedAt: d.ArchivedAt,
		Payload:    d.Payload,
	}
}
