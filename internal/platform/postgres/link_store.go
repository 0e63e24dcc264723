package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/store"
)

// PostgresLinkStore implements the store.LinkStore interface using PostgreSQL.
type PostgresLinkStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresLinkStore implements store.LinkStore interface
var _ store.LinkStore = (*PostgresLinkStore)(nil)

// NewPostgresLinkStore creates a new PostgresLinkStore.
func NewPostgresLinkStore(db store.DBTX, logger *slog.Logger) *PostgresLinkStore {
	return &PostgresLinkStore{
		db:     db,
		logger: logger.With("store", "task_link"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a store bound to tx.
func (s *PostgresLinkStore) WithTx(tx store.DBTX) *PostgresLinkStore {
	return &PostgresLinkStore{db: tx, logger: s.logger, now: s.now}
}

const linkColumns = `id, tracker_project, tracker_issue_id, tracker_issue_url, task_id, task_url,
	tracker_status, task_status, created_by, assignee_task_identity, assignee_tracker_identity,
	last_synced_at, created_at, updated_at`

// Save upserts the link keyed on task_id. On conflict the tracker side and
// assignee are replaced; statuses and created_at are preserved.
func (s *PostgresLinkStore) Save(ctx context.Context, link *domain.TaskLink) error {
	log := logger.FromContextOr(ctx, s.logger)

	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	now := s.now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.LastSyncedAt.IsZero() {
		link.LastSyncedAt = now
	}
	link.UpdatedAt = now

	query := `
		INSERT INTO task_links (
			tracker_project, tracker_issue_id, tracker_issue_url, task_id, task_url,
			tracker_status, task_status, created_by, assignee_task_identity,
			assignee_tracker_identity, last_synced_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (task_id) DO UPDATE SET
			tracker_project = EXCLUDED.tracker_project,
			tracker_issue_id = EXCLUDED.tracker_issue_id,
			tracker_issue_url = EXCLUDED.tracker_issue_url,
			task_url = EXCLUDED.task_url,
			assignee_task_identity = EXCLUDED.assignee_task_identity,
			assignee_tracker_identity = EXCLUDED.assignee_tracker_identity,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		link.TrackerProject,
		link.TrackerIssueID,
		link.TrackerIssueURL,
		link.TaskID,
		link.TaskURL,
		link.TrackerStatus,
		link.TaskStatus,
		link.CreatedBy,
		link.AssigneeTaskIdentity,
		link.AssigneeTrackerIdentity,
		link.LastSyncedAt,
		link.CreatedAt,
		link.UpdatedAt,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		log.Error("failed to save task link",
			"task_id", link.TaskID,
			"tracker_project", link.TrackerProject,
			"tracker_issue_id", link.TrackerIssueID,
			"error", err)
		return store.NewStoreError("task_link", "save", "upsert failed", MapError(err))
	}

	return nil
}

// GetByTaskID returns the link for a task.
func (s *PostgresLinkStore) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskLink, error) {
	query := `SELECT ` + linkColumns + ` FROM task_links WHERE task_id = $1`
	return s.getOne(ctx, query, taskID)
}

// GetByIssue returns the oldest link pointing at a tracker issue.
func (s *PostgresLinkStore) GetByIssue(ctx context.Context, project string, issueID int64) (*domain.TaskLink, error) {
	query := `SELECT ` + linkColumns + ` FROM task_links
		WHERE tracker_project = $1 AND tracker_issue_id = $2
		ORDER BY created_at ASC
		LIMIT 1`
	return s.getOne(ctx, query, project, issueID)
}

func (s *PostgresLinkStore) getOne(ctx context.Context, query string, args ...any) (*domain.TaskLink, error) {
	var link domain.TaskLink
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&link.ID,
		&link.TrackerProject,
		&link.TrackerIssueID,
		&link.TrackerIssueURL,
		&link.TaskID,
		&link.TaskURL,
		&link.TrackerStatus,
		&link.TaskStatus,
		&link.CreatedBy,
		&link.AssigneeTaskIdentity,
		&link.AssigneeTrackerIdentity,
		&link.LastSyncedAt,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrLinkNotFound
		}
		logger.FromContextOr(ctx, s.logger).Error("failed to query task link", "error", err)
		return nil, store.NewStoreError("task_link", "get", "query failed", MapError(err))
	}

	return &link, nil
}

// UpdateTaskStatus mirrors the task-suite state onto the link.
func (s *PostgresLinkStore) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTaskStatus)
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_links
		SET task_status = $1, last_synced_at = $2, updated_at = $2
		WHERE task_id = $3
	`, status, now, taskID)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to update task status",
			"task_id", taskID, "status", status, "error", err)
		return store.NewStoreError("task_link", "update_task_status", "update failed", MapError(err))
	}

	return checkRowsAffected(result, store.ErrLinkNotFound)
}

// UpdateTrackerStatus mirrors the issue state onto every link for the issue.
func (s *PostgresLinkStore) UpdateTrackerStatus(
	ctx context.Context,
	project string,
	issueID int64,
	status domain.TrackerStatus,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTrackerStatus)
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_links
		SET tracker_status = $1, last_synced_at = $2, updated_at = $2
		WHERE tracker_project = $3 AND tracker_issue_id = $4
	`, status, now, project, issueID)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to update tracker status",
			"tracker_project", project, "tracker_issue_id", issueID, "status", status, "error", err)
		return store.NewStoreError("task_link", "update_tracker_status", "update failed", MapError(err))
	}

	return checkRowsAffected(result, store.ErrLinkNotFound)
}

// Delete removes the link for a task.
func (s *PostgresLinkStore) Delete(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_links WHERE task_id = $1`, taskID)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to delete task link", "task_id", taskID, "error", err)
		return store.NewStoreError("task_link", "delete", "delete failed", MapError(err))
	}

	return checkRowsAffected(result, store.ErrLinkNotFound)
}
