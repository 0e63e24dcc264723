package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/gitlab"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/store"
)

// JobEnqueuer accepts link-job payloads.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, payload json.RawMessage) (int64, error)
}

// IssueUpdater pushes task-side changes to an existing tracker issue.
type IssueUpdater interface {
	UpdateIssue(ctx context.Context, project string, issueID int64, changes gitlab.IssueChanges) error
	SyncCompletion(ctx context.Context, project string, issueID int64, completed bool) error
}

// TaskEdits carries the task fields that changed. Nil fields did not change.
type TaskEdits struct {
	Summary      *string
	Description  *string
	DueTimestamp *string
}

// LinkService is the enqueue boundary and the status mirroring surface.
type LinkService struct {
	queue  JobEnqueuer
	links  store.LinkStore
	issues IssueUpdater
	now    func() time.Time
	logger *slog.Logger
}

// NewLinkService creates a LinkService. issues may be nil, in which case
// changes are recorded locally and never pushed to the tracker.
func NewLinkService(queue JobEnqueuer, links store.LinkStore, issues IssueUpdater, logger *slog.Logger) (*LinkService, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: queue cannot be nil", domain.ErrValidation)
	}
	if links == nil {
		return nil, fmt.Errorf("%w: link store cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LinkService{
		queue:  queue,
		links:  links,
		issues: issues,
		now:    time.Now,
		logger: logger.With(slog.String("component", "link_service")),
	}, nil
}

// EnqueueLink validates a job and puts it on the queue. Jobs for tasks that
// are already linked are accepted too; the worker acknowledges them without
// side effects.
func (s *LinkService) EnqueueLink(ctx context.Context, job domain.LinkJob) (int64, error) {
	log := logger.FromContextOr(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Debug("rejecting invalid link job", "error", err)
		return 0, err
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = s.now().UTC()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return 0, NewLinkServiceError("enqueue", "failed to encode job", err)
	}

	msgID, err := s.queue.Enqueue(ctx, payload)
	if err != nil {
		log.Error("failed to enqueue link job", "task_id", job.TaskID, "error", err)
		return 0, NewLinkServiceError("enqueue", "failed to enqueue job", err)
	}

	log.Info("link job enqueued",
		"msg_id", msgID,
		"task_id", job.TaskID,
		"tracker_project", job.TrackerProject)
	return msgID, nil
}

// GetLink returns the link of a task.
func (s *LinkService) GetLink(ctx context.Context, taskID string) (*domain.TaskLink, error) {
	link, err := s.links.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, s.storeError("get_link", err)
	}
	return link, nil
}

// GetLinkByIssue returns the link of a tracker issue.
func (s *LinkService) GetLinkByIssue(ctx context.Context, project string, issueID int64) (*domain.TaskLink, error) {
	link, err := s.links.GetByIssue(ctx, project, issueID)
	if err != nil {
		return nil, s.storeError("get_link_by_issue", err)
	}
	return link, nil
}

// UpdateTaskStatus records the task-side status of a linked task.
func (s *LinkService) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTaskStatus, status)
	}
	if err := s.links.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return s.storeError("update_task_status", err)
	}

	logger.FromContextOr(ctx, s.logger).Info("task status recorded", "task_id", taskID, "task_status", status)
	return nil
}

// UpdateTrackerStatus records the tracker-side status of a linked issue.
func (s *LinkService) UpdateTrackerStatus(
	ctx context.Context,
	project string,
	issueID int64,
	status domain.TrackerStatus,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTrackerStatus, status)
	}
	if err := s.links.UpdateTrackerStatus(ctx, project, issueID, status); err != nil {
		return s.storeError("update_tracker_status", err)
	}

	logger.FromContextOr(ctx, s.logger).Info("tracker status recorded",
		"tracker_project", project,
		"tracker_issue_id", issueID,
		"tracker_status", status)
	return nil
}

// SetTaskCompletion mirrors a task completion timestamp: a set timestamp
// marks the task done and closes the issue, an empty or zero one marks it
// todo and reopens the issue. The task status is recorded even when the
// tracker call fails, in which case the error wraps ErrTrackerSync.
func (s *LinkService) SetTaskCompletion(ctx context.Context, taskID, completedAt string) (*domain.TaskLink, error) {
	log := logger.FromContextOr(ctx, s.logger).With("task_id", taskID)

	_, completed, err := domain.ParseTaskTimestamp(completedAt)
	if err != nil {
		return nil, err
	}

	link, err := s.links.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, s.storeError("set_completion", err)
	}

	taskStatus, trackerStatus := domain.TaskStatusTodo, domain.TrackerStatusOpened
	if completed {
		taskStatus, trackerStatus = domain.TaskStatusDone, domain.TrackerStatusClosed
	}

	if err := s.links.UpdateTaskStatus(ctx, taskID, taskStatus); err != nil {
		return nil, s.storeError("set_completion", err)
	}
	link.TaskStatus = taskStatus

	if s.issues == nil || link.TrackerStatus == trackerStatus {
		return link, nil
	}

	if err := s.issues.SyncCompletion(ctx, link.TrackerProject, link.TrackerIssueID, completed); err != nil {
		log.Warn("tracker rejected completion change", "completed", completed, "error", err)
		return link, fmt.Errorf("%w: %w", ErrTrackerSync, err)
	}

	if err := s.links.UpdateTrackerStatus(ctx, link.TrackerProject, link.TrackerIssueID, trackerStatus); err != nil {
		return link, s.storeError("set_completion", err)
	}
	link.TrackerStatus = trackerStatus

	log.Info("task completion mirrored to tracker",
		"task_status", taskStatus,
		"tracker_status", trackerStatus,
		"tracker_issue_id", link.TrackerIssueID)
	return link, nil
}

// SyncTaskEdits pushes edited task fields to the linked issue. The
// description keeps its backlink to the task. An empty or zero due timestamp
// clears the issue's due date.
func (s *LinkService) SyncTaskEdits(ctx context.Context, taskID string, edits TaskEdits) error {
	link, err := s.links.GetByTaskID(ctx, taskID)
	if err != nil {
		return s.storeError("sync_edits", err)
	}

	var changes gitlab.IssueChanges
	if edits.Summary != nil {
		changes.Title = edits.Summary
	}
	if edits.Description != nil {
		desc := domain.AppendTaskBacklink(*edits.Description, link.TaskURL)
		changes.Description = &desc
	}
	if edits.DueTimestamp != nil {
		due, ok, err := domain.ParseTaskTimestamp(*edits.DueTimestamp)
		if err != nil {
			return err
		}
		if ok {
			changes.DueDate = &due
		} else {
			changes.ClearDueDate = true
		}
	}

	if changes.Empty() || s.issues == nil {
		return nil
	}

	if err := s.issues.UpdateIssue(ctx, link.TrackerProject, link.TrackerIssueID, changes); err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("tracker rejected issue update",
			"task_id", taskID,
			"tracker_issue_id", link.TrackerIssueID,
			"error", err)
		return fmt.Errorf("%w: %w", ErrTrackerSync, err)
	}
	return nil
}

// Unlink removes the link of a task. The tracker issue is left as it is.
func (s *LinkService) Unlink(ctx context.Context, taskID string) error {
	if err := s.links.Delete(ctx, taskID); err != nil {
		return s.storeError("unlink", err)
	}
	logger.FromContextOr(ctx, s.logger).Info("task unlinked", "task_id", taskID)
	return nil
}

// storeError passes not-found through untouched and wraps anything else.
func (s *LinkService) storeError(op string, err error) error {
	if store.IsNotFoundError(err) {
		return err
	}
	return NewLinkServiceError(op, "store operation failed", err)
}
