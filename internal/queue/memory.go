package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with visibility timeouts. It is not
// durable; messages are lost when the process exits.
type MemoryQueue struct {
	mu          sync.Mutex
	nextID      int64
	messages    map[int64]*Message
	deadLetters []DeadLetter
	closed      bool
	now         func() time.Time
	logger      *slog.Logger
}

// Ensure MemoryQueue implements both the queue and archive contracts
var (
	_ Queue    = (*MemoryQueue)(nil)
	_ Archiver = (*MemoryQueue)(nil)
)

// NewMemoryQueue creates an empty queue using the wall clock.
func NewMemoryQueue(logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		messages: make(map[int64]*Message),
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source. Tests use it to expire leases.
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue adds a message that is immediately visible.
func (q *MemoryQueue) Enqueue(ctx context.Context, payload json.RawMessage) (int64, error) {
	if !ValidPayload(payload) {
		return 0, ErrInvalidPayload
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	q.nextID++
	now := q.now()
	q.messages[q.nextID] = &Message{
		MsgID:      q.nextID,
		EnqueuedAt: now,
		VisibleAt:  now,
		Payload:    append(json.RawMessage(nil), payload...),
	}

	q.logger.Debug("job enqueued", "msg_id", q.nextID, "queue_len", len(q.messages))
	return q.nextID, nil
}

// Dequeue leases up to batchSize visible messages in message-id order.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int, visibilityTimeout time.Duration) ([]Message, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	now := q.now()
	ids := make([]int64, 0, len(q.messages))
	for id, msg := range q.messages {
		if !msg.VisibleAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if len(ids) > batchSize {
		ids = ids[:batchSize]
	}

	leased := make([]Message, 0, len(ids))
	for _, id := range ids {
		msg := q.messages[id]
		msg.ReadCount++
		msg.VisibleAt = now.Add(visibilityTimeout)
		leased = append(leased, *msg)
	}

	return leased, nil
}

// Acknowledge deletes a message whether or not it is currently leased.
func (q *MemoryQueue) Acknowledge(ctx context.Context, msgID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.messages[msgID]; !ok {
		return false, nil
	}
	delete(q.messages, msgID)
	return true, nil
}

// Archive deletes a message and records it as a dead letter.
func (q *MemoryQueue) Archive(ctx context.Context, msg Message, reason DropReason, detail string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.messages, msg.MsgID)
	q.deadLetters = append(q.deadLetters, DeadLetter{
		Message:    msg,
		Reason:     reason,
		Detail:     detail,
		ArchivedAt: q.now(),
	})
	return nil
}

// Len returns the number of messages still queued, leased or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// DeadLetters returns a copy of the archived messages.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.deadLetters...)
}

// Close rejects further enqueue and dequeue calls.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.logger.Info("job queue closed")
	}
}
