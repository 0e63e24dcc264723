//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/platform/postgres"
	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/store"
	"github.com/phrazzld/tasklink/internal/testdb"
)

func TestJobQueue_Integration_Lifecycle(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	testdb.Truncate(t, db, "link_jobs", "link_job_dead_letters")

	_, log := logger.NewTestLogger()
	q := postgres.NewPostgresJobQueue(db, log)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, json.RawMessage(`{"task_id":"t-1"}`))
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, json.RawMessage(`{"task_id":"t-2"}`))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	msgs, err := q.Dequeue(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first, msgs[0].MsgID)
	assert.Equal(t, 1, msgs[0].ReadCount)
	assert.JSONEq(t, `{"task_id":"t-1"}`, string(msgs[0].Payload))

	// Leased messages stay hidden.
	hidden, err := q.Dequeue(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	deleted, err := q.Acknowledge(ctx, first)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = q.Acknowledge(ctx, first)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, q.Archive(ctx, msgs[1], queue.ReasonMaxAttempts, "gave up"))

	dead, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, second, dead[0].MsgID)
	assert.Equal(t, queue.ReasonMaxAttempts, dead[0].Reason)
	assert.Equal(t, "gave up", dead[0].Detail)

	newID, err := q.Requeue(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, newID, second)

	msgs, err = q.Dequeue(ctx, 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, newID, msgs[0].MsgID)
	assert.Equal(t, 1, msgs[0].ReadCount)

	_, err = q.Requeue(ctx, second)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobQueue_Integration_RedeliveryAfterVisibilityTimeout(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	testdb.Truncate(t, db, "link_jobs", "link_job_dead_letters")

	_, log := logger.NewTestLogger()
	q := postgres.NewPostgresJobQueue(db, log)
	ctx := context.Background()

	msgID, err := q.Enqueue(ctx, json.RawMessage(`{"task_id":"t-1"}`))
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	time.Sleep(100 * time.Millisecond)

	msgs, err = q.Dequeue(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgID, msgs[0].MsgID)
	assert.Equal(t, 2, msgs[0].ReadCount)
}

func TestLinkStore_Integration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	_, log := logger.NewTestLogger()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		links := postgres.NewPostgresLinkStore(tx, log)

		link, err := domain.NewTaskLink("it-task-1", "grp/app", 42, "https://gitlab.example.com/grp/app/-/issues/42")
		require.NoError(t, err)
		require.NoError(t, links.Save(ctx, link))
		assert.NotZero(t, link.ID)

		got, err := links.GetByIssue(ctx, "grp/app", 42)
		require.NoError(t, err)
		assert.Equal(t, "it-task-1", got.TaskID)
		assert.Equal(t, domain.TrackerStatusOpened, got.TrackerStatus)

		require.NoError(t, links.UpdateTaskStatus(ctx, "it-task-1", domain.TaskStatusDone))
		require.NoError(t, links.UpdateTrackerStatus(ctx, "grp/app", 42, domain.TrackerStatusClosed))

		got, err = links.GetByTaskID(ctx, "it-task-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, got.TaskStatus)
		assert.Equal(t, domain.TrackerStatusClosed, got.TrackerStatus)

		// A second issue for the same task replaces the first.
		replacement, err := domain.NewTaskLink("it-task-1", "grp/app", 43, "https://gitlab.example.com/grp/app/-/issues/43")
		require.NoError(t, err)
		require.NoError(t, links.Save(ctx, replacement))

		got, err = links.GetByTaskID(ctx, "it-task-1")
		require.NoError(t, err)
		assert.Equal(t, int64(43), got.TrackerIssueID)

		require.NoError(t, links.Delete(ctx, "it-task-1"))
		_, err = links.GetByTaskID(ctx, "it-task-1")
		assert.ErrorIs(t, err, store.ErrLinkNotFound)
	})
}

func TestUserMappingStore_Integration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	_, log := logger.NewTestLogger()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		mappings := postgres.NewPostgresUserMappingStore(tx, log)

		require.NoError(t, mappings.Upsert(ctx, &domain.UserMapping{
			TaskIdentity:    "ou_alice",
			TrackerIdentity: "alice",
			DisplayName:     "Alice",
		}))
		require.NoError(t, mappings.Upsert(ctx, &domain.UserMapping{
			TaskIdentity:    "ou_alice",
			TrackerIdentity: "alice.w",
		}))

		got, err := mappings.Get(ctx, "ou_alice")
		require.NoError(t, err)
		assert.Equal(t, "alice.w", got.TrackerIdentity)

		many, err := mappings.GetMany(ctx, []string{"ou_alice", "ou_nobody"})
		require.NoError(t, err)
		assert.Len(t, many, 1)
	})
}
