package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/store"
)

func newTestLinkStore(t *testing.T) (*PostgresLinkStore, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	s := NewPostgresLinkStore(db, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestPostgresLinkStore_Save(t *testing.T) {
	s, mock := newTestLinkStore(t)
	link, err := domain.NewTaskLink("task-1", "grp/app", 42, "https://gitlab.example.com/grp/app/-/issues/42")
	require.NoError(t, err)
	link.CreatedAt = fixedNow

	mock.ExpectQuery(`INSERT INTO task_links .* ON CONFLICT \(task_id\) DO UPDATE`).
		WithArgs("grp/app", int64(42), link.TrackerIssueURL, "task-1", "",
			domain.TrackerStatusOpened, domain.TaskStatusTodo, "", "", "",
			sqlmock.AnyArg(), fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), fixedNow))

	require.NoError(t, s.Save(context.Background(), link))
	assert.Equal(t, int64(7), link.ID)
	assert.Equal(t, fixedNow, link.UpdatedAt)
}

func TestPostgresLinkStore_Save_Invalid(t *testing.T) {
	s, _ := newTestLinkStore(t)
	link := &domain.TaskLink{TrackerProject: "grp/app", TrackerIssueID: 42, TrackerIssueURL: "https://x"}

	err := s.Save(context.Background(), link)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestPostgresLinkStore_Save_CheckViolation(t *testing.T) {
	s, mock := newTestLinkStore(t)
	link, err := domain.NewTaskLink("task-1", "grp/app", 42, "https://x")
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT INTO task_links`).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "task_links_tracker_status_check"})

	err = s.Save(context.Background(), link)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	var storeErr *store.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "save", storeErr.Operation)
}

func TestPostgresLinkStore_GetByTaskID(t *testing.T) {
	s, mock := newTestLinkStore(t)
	columns := []string{
		"id", "tracker_project", "tracker_issue_id", "tracker_issue_url", "task_id", "task_url",
		"tracker_status", "task_status", "created_by", "assignee_task_identity",
		"assignee_tracker_identity", "last_synced_at", "created_at", "updated_at",
	}

	mock.ExpectQuery(`SELECT .* FROM task_links WHERE task_id = \$1`).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(3), "grp/app", int64(42), "https://x/grp/app/-/issues/42", "task-1", "https://task/1",
			"closed", "done", "ou_creator", "ou_alice", "alice",
			fixedNow, fixedNow, fixedNow,
		))

	link, err := s.GetByTaskID(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), link.TrackerIssueID)
	assert.Equal(t, domain.TrackerStatusClosed, link.TrackerStatus)
	assert.Equal(t, domain.TaskStatusDone, link.TaskStatus)
	assert.Equal(t, "alice", link.AssigneeTrackerIdentity)
}

func TestPostgresLinkStore_GetByTaskID_NotFound(t *testing.T) {
	s, mock := newTestLinkStore(t)

	mock.ExpectQuery(`SELECT .* FROM task_links WHERE task_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetByTaskID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrLinkNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestPostgresLinkStore_UpdateTaskStatus(t *testing.T) {
	s, mock := newTestLinkStore(t)

	mock.ExpectExec(`UPDATE task_links SET task_status = \$1`).
		WithArgs(domain.TaskStatusInProgress, fixedNow, "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateTaskStatus(context.Background(), "task-1", domain.TaskStatusInProgress))

	mock.ExpectExec(`UPDATE task_links SET task_status = \$1`).
		WithArgs(domain.TaskStatusDone, fixedNow, "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.UpdateTaskStatus(context.Background(), "gone", domain.TaskStatusDone)
	assert.ErrorIs(t, err, store.ErrLinkNotFound)

	err = s.UpdateTaskStatus(context.Background(), "task-1", domain.TaskStatus("archived"))
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestPostgresLinkStore_UpdateTrackerStatus(t *testing.T) {
	s, mock := newTestLinkStore(t)

	mock.ExpectExec(`UPDATE task_links SET tracker_status = \$1`).
		WithArgs(domain.TrackerStatusClosed, fixedNow, "grp/app", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.UpdateTrackerStatus(context.Background(), "grp/app", 42, domain.TrackerStatusClosed))
}

func TestPostgresLinkStore_Delete(t *testing.T) {
	s, mock := newTestLinkStore(t)

	mock.ExpectExec(`DELETE FROM task_links WHERE task_id = \$1`).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(context.Background(), "task-1"))

	mock.ExpectExec(`DELETE FROM task_links WHERE task_id = \$1`).
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), "task-1"), store.ErrLinkNotFound)
}
