package gitlab

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/tasklink/internal/domain"
)

// CreateOutcome classifies an issue creation attempt.
type CreateOutcome int

// Possible creation outcomes
const (
	OutcomeFailed CreateOutcome = iota
	OutcomeCreated
	OutcomeAmbiguous
)

func (o CreateOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "failed"
	}
}

// IssueRequest describes an issue to create.
type IssueRequest struct {
	Project     string
	Title       string
	Description string
	Assignees   []string
	// DueDate is rendered as a calendar date in the client's time zone. The
	// zero value means no due date.
	DueDate time.Time
}

// CreateResult carries the outcome of CreateIssue. IssueID and URL are set
// only for OutcomeCreated. Output is the redacted CLI output.
type CreateResult struct {
	Outcome CreateOutcome
	IssueID int64
	URL     string
	Output  string
}

// IssueChanges lists the fields to rewrite on an existing issue. Nil fields
// are left untouched. ClearDueDate removes the due date and is ignored when
// DueDate is set.
type IssueChanges struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Empty reports whether there is nothing to update.
func (c IssueChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.DueDate == nil && !c.ClearDueDate
}

// issueNumberPattern matches "#<digits>" at the start of a line, as glab
// prints it after creating an issue.
var issueNumberPattern = regexp.MustCompile(`(?m)^\s*#(\d+)`)

// ParseIssueID extracts the issue number from the first line of CLI output
// that starts with "#<digits>".
func ParseIssueID(output string) (int64, bool) {
	m := issueNumberPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IssueURL builds the canonical web URL of an issue.
func IssueURL(baseURL, project string, issueID int64) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.Trim(project, "/") +
		"/-/issues/" + strconv.FormatInt(issueID, 10)
}

// BuildIssueRequest maps a link job and its resolved assignees to an issue
// request. The description carries a backlink to the task when the task URL
// is usable. A due timestamp that cannot be parsed is dropped from the
// request and reported as the error; the request is still usable.
func BuildIssueRequest(job *domain.LinkJob, assignees []string) (IssueRequest, error) {
	taskURL, _ := job.TaskLinkURL()
	req := IssueRequest{
		Project:     strings.TrimSpace(job.TrackerProject),
		Title:       strings.TrimSpace(job.Summary),
		Description: domain.AppendTaskBacklink(job.Description, taskURL),
		Assignees:   assignees,
	}

	due, ok, err := job.DueTime()
	if err != nil {
		return req, err
	}
	if ok {
		req.DueDate = due
	}
	return req, nil
}
