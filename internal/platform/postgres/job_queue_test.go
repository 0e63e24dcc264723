package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/store"
)

func newTestJobQueue(t *testing.T) (*PostgresJobQueue, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	q := NewPostgresJobQueue(db, discardLogger())
	q.now = func() time.Time { return fixedNow }
	return q, mock
}

func TestPostgresJobQueue_Enqueue(t *testing.T) {
	q, mock := newTestJobQueue(t)
	payload := json.RawMessage(`{"task_id":"t1"}`)

	mock.ExpectQuery(`INSERT INTO link_jobs`).
		WithArgs(fixedNow, []byte(payload)).
		WillReturnRows(sqlmock.NewRows([]string{"msg_id"}).AddRow(int64(11)))

	id, err := q.Enqueue(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	_, err = q.Enqueue(context.Background(), json.RawMessage(`nope`))
	assert.ErrorIs(t, err, queue.ErrInvalidPayload)
}

func TestPostgresJobQueue_Dequeue(t *testing.T) {
	q, mock := newTestJobQueue(t)
	vt := fixedNow.Add(2 * time.Minute)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(fixedNow, 5, vt).
		WillReturnRows(sqlmock.NewRows([]string{"msg_id", "read_ct", "enqueued_at", "vt", "payload"}).
			AddRow(int64(1), 1, fixedNow, vt, []byte(`{"task_id":"a"}`)).
			AddRow(int64(2), 3, fixedNow, vt, []byte(`{"task_id":"b"}`)))

	msgs, err := q.Dequeue(context.Background(), 5, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[1].MsgID)
	assert.Equal(t, 3, msgs[1].ReadCount)
	assert.Equal(t, vt, msgs[0].VisibleAt)
	assert.JSONEq(t, `{"task_id":"a"}`, string(msgs[0].Payload))

	_, err = q.Dequeue(context.Background(), 0, time.Minute)
	assert.Error(t, err)
}

func TestPostgresJobQueue_Dequeue_Error(t *testing.T) {
	q, mock := newTestJobQueue(t)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).WillReturnError(errors.New("connection reset"))

	_, err := q.Dequeue(context.Background(), 1, time.Minute)
	var storeErr *store.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "dequeue", storeErr.Operation)
}

func TestPostgresJobQueue_Acknowledge(t *testing.T) {
	q, mock := newTestJobQueue(t)

	mock.ExpectExec(`DELETE FROM link_jobs WHERE msg_id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := q.Acknowledge(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`DELETE FROM link_jobs WHERE msg_id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = q.Acknowledge(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresJobQueue_Archive(t *testing.T) {
	q, mock := newTestJobQueue(t)
	msg := queue.Message{MsgID: 9, ReadCount: 8}

	mock.ExpectExec(`INSERT INTO link_job_dead_letters`).
		WithArgs(int64(9), "max_attempts", "read 8 times", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Archive(context.Background(), msg, queue.ReasonMaxAttempts, "read 8 times"))
}

func TestPostgresJobQueue_Requeue(t *testing.T) {
	q, mock := newTestJobQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM link_job_dead_letters WHERE msg_id = \$1 RETURNING payload`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"task_id":"t"}`)))
	mock.ExpectQuery(`INSERT INTO link_jobs`).
		WithArgs(fixedNow, []byte(`{"task_id":"t"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"msg_id"}).AddRow(int64(30)))
	mock.ExpectCommit()

	id, err := q.Requeue(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(30), id)
}

func TestPostgresJobQueue_Requeue_Missing(t *testing.T) {
	q, mock := newTestJobQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM link_job_dead_letters`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	mock.ExpectRollback()

	_, err := q.Requeue(context.Background(), 9)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresJobQueue_ListDeadLetters(t *testing.T) {
	q, mock := newTestJobQueue(t)

	mock.ExpectQuery(`FROM link_job_dead_letters ORDER BY archived_at DESC`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"msg_id", "read_ct", "enqueued_at", "payload", "reason", "detail", "archived_at",
		}).AddRow(int64(9), 1, fixedNow, []byte(`{}`), "malformed", "missing task_id", fixedNow))

	dead, err := q.ListDeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, queue.ReasonMalformed, dead[0].Reason)
	assert.Equal(t, int64(9), dead[0].MsgID)
}
