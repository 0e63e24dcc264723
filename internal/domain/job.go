package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// secondsCutoff separates second-precision from millisecond-precision epoch values.
// Any value below it is read as seconds.
const secondsCutoff = 1_000_000_000_000

// LinkJob is the queue payload asking the worker to create an issue for a task.
// Read count and enqueue time belong to the queue, not to the payload.
type LinkJob struct {
	TaskID                 string    `json:"task_id" validate:"required"`
	TaskURL                string    `json:"task_url,omitempty"`
	Summary                string    `json:"summary" validate:"required"`
	Description            string    `json:"description,omitempty"`
	DueTimestamp           string    `json:"due_timestamp,omitempty"`
	AssigneeTaskIdentities []string  `json:"assignee_task_identities,omitempty"`
	TrackerProject         string    `json:"tracker_project" validate:"required"`
	CreatedBy              string    `json:"created_by,omitempty"`
	RequestedAt            time.Time `json:"requested_at"`
}

// Validate checks that the mandatory fields are present. Blank strings count
// as missing. Optional fields never make a job invalid.
func (j *LinkJob) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	for field, value := range map[string]string{
		"task_id":         j.TaskID,
		"summary":         j.Summary,
		"tracker_project": j.TrackerProject,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is blank", ErrInvalidJob, field)
		}
	}

	return nil
}

// DecodeLinkJob parses and validates a raw queue payload.
func DecodeLinkJob(payload []byte) (*LinkJob, error) {
	var job LinkJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return &job, nil
}

// TaskLinkURL returns the task URL when it can be linked to: an absolute
// http or https URL. A job without a task URL returns "" and no error.
func (j *LinkJob) TaskLinkURL() (string, error) {
	raw := strings.TrimSpace(j.TaskURL)
	if raw == "" {
		return "", nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskURL, raw)
	}
	return raw, nil
}

// DueTime converts the job's due timestamp to a time. The second return value
// is false when the job has no due date.
func (j *LinkJob) DueTime() (time.Time, bool, error) {
	return ParseTaskTimestamp(j.DueTimestamp)
}

// ParseTaskTimestamp parses an epoch timestamp as sent by the task suite.
// Milliseconds are the norm; small values are read as seconds. Empty and
// zero values mean "unset".
func ParseTaskTimestamp(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return time.Time{}, false, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}

	if n < secondsCutoff {
		return time.Unix(n, 0).UTC(), true, nil
	}

	return time.UnixMilli(n).UTC(), true, nil
}
