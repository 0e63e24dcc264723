package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Common errors returned by queue implementations
var (
	ErrQueueClosed    = errors.New("job queue is closed")
	ErrInvalidPayload = errors.New("job payload must be valid JSON")
)

// Message is one delivery of a queued job.
type Message struct {
	MsgID      int64
	ReadCount  int
	EnqueuedAt time.Time
	VisibleAt  time.Time
	Payload    json.RawMessage
}

// Queue is the at-least-once contract the worker drains.
type Queue interface {
	// Enqueue stores payload and returns its message id.
	Enqueue(ctx context.Context, payload json.RawMessage) (int64, error)

	// Dequeue leases up to batchSize visible messages for visibilityTimeout,
	// incrementing each message's read count.
	Dequeue(ctx context.Context, batchSize int, visibilityTimeout time.Duration) ([]Message, error)

	// Acknowledge deletes a message. It reports false when the message was
	// already gone.
	Acknowledge(ctx context.Context, msgID int64) (bool, error)
}

// DropReason records why a message left the queue without a link.
type DropReason string

// Possible drop reasons
const (
	ReasonMaxAttempts     DropReason = "max_attempts"
	ReasonMalformed       DropReason = "malformed"
	ReasonAmbiguousCreate DropReason = "ambiguous_create"
)

// DeadLetter is an archived message kept for operators.
type DeadLetter struct {
	Message
	Reason     DropReason
	Detail     string
	ArchivedAt time.Time
}

// Archiver removes a message from the queue and records it as a dead letter
// in one step.
type Archiver interface {
	Archive(ctx context.Context, msg Message, reason DropReason, detail string) error
}

// ValidPayload reports whether payload is syntactically valid JSON.
func ValidPayload(payload json.RawMessage) bool {
	return len(payload) > 0 && json.Valid(payload)
}
