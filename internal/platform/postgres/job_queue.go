package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/store"
)

// queueDB is satisfied by *sql.DB.
type queueDB interface {
	store.DBTX
	store.TxBeginner
}

// PostgresJobQueue implements queue.Queue and queue.Archiver on the
// link_jobs and link_job_dead_letters tables.
type PostgresJobQueue struct {
	db     queueDB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresJobQueue implements the queue contracts
var (
	_ queue.Queue    = (*PostgresJobQueue)(nil)
	_ queue.Archiver = (*PostgresJobQueue)(nil)
)

// NewPostgresJobQueue creates a new PostgresJobQueue.
func NewPostgresJobQueue(db queueDB, logger *slog.Logger) *PostgresJobQueue {
	return &PostgresJobQueue{
		db:     db,
		logger: logger.With("store", "link_jobs"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue inserts a visible message.
func (q *PostgresJobQueue) Enqueue(ctx context.Context, payload json.RawMessage) (int64, error) {
	if !queue.ValidPayload(payload) {
		return 0, queue.ErrInvalidPayload
	}

	now := q.now()
	var msgID int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO link_jobs (read_ct, enqueued_at, vt, payload)
		VALUES (0, $1, $1, $2)
		RETURNING msg_id
	`, now, []byte(payload)).Scan(&msgID)
	if err != nil {
		logger.FromContextOr(ctx, q.logger).Error("failed to enqueue link job", "error", err)
		return 0, store.NewStoreError("link_job", "enqueue", "insert failed", MapError(err))
	}

	logger.FromContextOr(ctx, q.logger).Debug("link job enqueued", "msg_id", msgID)
	return msgID, nil
}

// Dequeue leases up to batchSize visible messages. Rows locked by another
// consumer are skipped rather than waited on.
func (q *PostgresJobQueue) Dequeue(
	ctx context.Context,
	batchSize int,
	visibilityTimeout time.Duration,
) ([]queue.Message, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	now := q.now()
	rows, err := q.db.QueryContext(ctx, `
		WITH visible AS (
			SELECT msg_id
			FROM link_jobs
			WHERE vt <= $1
			ORDER BY msg_id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE link_jobs AS j
		SET vt = $3, read_ct = j.read_ct + 1
		FROM visible
		WHERE j.msg_id = visible.msg_id
		RETURNING j.msg_id, j.read_ct, j.enqueued_at, j.vt, j.payload
	`, now, batchSize, now.Add(visibilityTimeout))
	if err != nil {
		logger.FromContextOr(ctx, q.logger).Error("failed to dequeue link jobs", "error", err)
		return nil, store.NewStoreError("link_job", "dequeue", "lease failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var msgs []queue.Message
	for rows.Next() {
		var msg queue.Message
		var payload []byte
		if err := rows.Scan(&msg.MsgID, &msg.ReadCount, &msg.EnqueuedAt, &msg.VisibleAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan link job row: %w", err)
		}
		msg.Payload = json.RawMessage(payload)
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link job rows: %w", err)
	}

	return msgs, nil
}

// Acknowledge deletes a message.
func (q *PostgresJobQueue) Acknowledge(ctx context.Context, msgID int64) (bool, error) {
	result, err := q.db.ExecContext(ctx, `DELETE FROM link_jobs WHERE msg_id = $1`, msgID)
	if err != nil {
		logger.FromContextOr(ctx, q.logger).Error("failed to acknowledge link job", "msg_id", msgID, "error", err)
		return false, store.NewStoreError("link_job", "acknowledge", "delete failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// Archive moves a message to the dead-letter table in a single statement.
func (q *PostgresJobQueue) Archive(ctx context.Context, msg queue.Message, reason queue.DropReason, detail string) error {
	_, err := q.db.ExecContext(ctx, `
		WITH archived AS (
			DELETE FROM link_jobs WHERE msg_id = $1
			RETURNING msg_id, read_ct, enqueued_at, payload
		)
		INSERT INTO link_job_dead_letters (msg_id, read_ct, enqueued_at, payload, reason, detail, archived_at)
		SELECT msg_id, read_ct, enqueued_at, payload, $2, $3, $4
		FROM archived
		ON CONFLICT (msg_id) DO NOTHING
	`, msg.MsgID, string(reason), detail, q.now())
	if err != nil {
		logger.FromContextOr(ctx, q.logger).Error("failed to archive link job",
			"msg_id", msg.MsgID, "reason", reason, "error", err)
		return store.NewStoreError("link_job", "archive", "archive failed", MapError(err))
	}

	return nil
}

// ListDeadLetters returns the most recently archived messages first.
func (q *PostgresJobQueue) ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT msg_id, read_ct, enqueued_at, payload, reason, detail, archived_at
		FROM link_job_dead_letters
		ORDER BY archived_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, store.NewStoreError("link_job", "list_dead_letters", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var dead []queue.DeadLetter
	for rows.Next() {
		var d queue.DeadLetter
		var payload []byte
		var reason string
		if err := rows.Scan(&d.MsgID, &d.ReadCount, &d.EnqueuedAt, &payload, &reason, &d.Detail, &d.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
		}
		d.Payload = json.RawMessage(payload)
		d.Reason = queue.DropReason(reason)
		dead = append(dead, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letter rows: %w", err)
	}

	return dead, nil
}

// Requeue moves a dead letter back onto the queue as a fresh message and
// returns its new message id.
func (q *PostgresJobQueue) Requeue(ctx context.Context, msgID int64) (int64, error) {
	var newID int64
	err := store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		var payload []byte
		err := tx.QueryRowContext(ctx, `
			DELETE FROM link_job_dead_letters WHERE msg_id = $1 RETURNING payload
		`, msgID).Scan(&payload)
		if err != nil {
			if IsNotFoundError(err) {
				return fmt.Errorf("%w: dead letter %d", store.ErrNotFound, msgID)
			}
			return MapError(err)
		}

		now := q.now()
		return tx.QueryRowContext(ctx, `
			INSERT INTO link_jobs (read_ct, enqueued_at, vt, payload)
			VALUES (0, $1, $1, $2)
			RETURNING msg_id
		`, now, payload).Scan(&newID)
	})
	if err != nil {
		return 0, err
	}

	logger.FromContextOr(ctx, q.logger).Info("dead letter requeued", "old_msg_id", msgID, "msg_id", newID)
	return newID, nil
}
