package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/redact"
)

// Common errors returned by the client
var (
	ErrInvalidRequest  = errors.New("invalid issue request")
	ErrCLIFailed       = errors.New("glab command failed")
	ErrAmbiguousCreate = errors.New("glab reported success without an issue number")
)

// maxOutputInError caps how much CLI output is copied into errors.
const maxOutputInError = 512

const dueDateLayout = "2006-01-02"

// Client issues glab commands through a Runner.
type Client struct {
	runner   Runner
	binary   string
	baseURL  string
	location *time.Location
	logger   *slog.Logger
}

// NewClient creates a client from configuration. The configured time zone
// decides which calendar day a due timestamp falls on.
func NewClient(runner Runner, cfg config.GitLabConfig, logger *slog.Logger) (*Client, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid gitlab timezone %q: %w", cfg.Timezone, err)
	}

	binary := cfg.Binary
	if binary == "" {
		binary = "glab"
	}

	return &Client{
		runner:   runner,
		binary:   binary,
		baseURL:  cfg.BaseURL,
		location: loc,
		logger:   logger.With("component", "gitlab_cli"),
	}, nil
}

// RunnerEnv returns the environment glab needs to authenticate against the
// configured instance.
func RunnerEnv(cfg config.GitLabConfig) []string {
	var env []string
	if cfg.Token != "" {
		env = append(env, "GITLAB_TOKEN="+cfg.Token)
	}
	if host := hostOf(cfg.BaseURL); host != "" {
		env = append(env, "GITLAB_HOST="+host)
	}
	return env
}

// CreateIssue creates an issue. The error is nil only for OutcomeCreated;
// OutcomeAmbiguous wraps ErrAmbiguousCreate and OutcomeFailed wraps
// ErrInvalidRequest, ErrCLIFailed or the context error.
func (c *Client) CreateIssue(ctx context.Context, req IssueRequest) (CreateResult, error) {
	log := logger.FromContextOr(ctx, c.logger).With("tracker_project", req.Project)

	if strings.TrimSpace(req.Project) == "" || strings.TrimSpace(req.Title) == "" {
		return CreateResult{Outcome: OutcomeFailed}, fmt.Errorf("%w: project and title are required", ErrInvalidRequest)
	}

	args := []string{"issue", "create", "-R", req.Project, "--title", req.Title, "--description", req.Description}
	if assignees := joinNonEmpty(req.Assignees); assignees != "" {
		args = append(args, "--assignee", assignees)
	}
	if !req.DueDate.IsZero() {
		args = append(args, "--due-date", c.formatDueDate(req.DueDate))
	}
	args = append(args, "--yes")

	res, err := c.runner.Run(ctx, c.commandLine(args...))
	output := redact.String(strings.TrimSpace(res.Stdout))
	if err != nil {
		log.Error("glab issue create could not run", "error", redact.Error(err))
		return CreateResult{Outcome: OutcomeFailed, Output: output}, c.runError(err)
	}
	if res.ExitCode != 0 {
		stderr := redact.String(strings.TrimSpace(res.Stderr))
		log.Warn("glab issue create failed", "exit_code", res.ExitCode, "stderr", stderr)
		return CreateResult{Outcome: OutcomeFailed, Output: output},
			fmt.Errorf("%w: exit code %d: %s", ErrCLIFailed, res.ExitCode, truncate(stderr))
	}

	issueID, ok := ParseIssueID(res.Stdout)
	if !ok {
		log.Error("glab issue create succeeded but no issue number was found", "stdout", output)
		return CreateResult{Outcome: OutcomeAmbiguous, Output: output},
			fmt.Errorf("%w: %s", ErrAmbiguousCreate, truncate(output))
	}

	issueURL := IssueURL(c.baseURL, req.Project, issueID)
	log.Info("issue created", "tracker_issue_id", issueID, "tracker_issue_url", issueURL)
	return CreateResult{Outcome: OutcomeCreated, IssueID: issueID, URL: issueURL, Output: output}, nil
}

// UpdateIssue rewrites the changed fields of an issue. An empty change set
// runs nothing.
func (c *Client) UpdateIssue(ctx context.Context, project string, issueID int64, changes IssueChanges) error {
	if changes.Empty() {
		return nil
	}

	setDue := changes.DueDate != nil && !changes.DueDate.IsZero()

	args := []string{"issue", "update", strconv.FormatInt(issueID, 10), "-R", project}
	fixed := len(args)
	if changes.Title != nil {
		args = append(args, "--title", *changes.Title)
	}
	if changes.Description != nil {
		args = append(args, "--description", *changes.Description)
	}
	if setDue {
		args = append(args, "--due-date", c.formatDueDate(*changes.DueDate))
	}

	if len(args) > fixed {
		if err := c.runSimple(ctx, "update", project, issueID, args); err != nil {
			return err
		}
	}

	if changes.ClearDueDate && !setDue {
		return c.ClearDueDate(ctx, project, issueID)
	}
	return nil
}

// ClearDueDate removes the due date of an issue. glab issue update cannot
// unset it, so this goes through the REST API.
func (c *Client) ClearDueDate(ctx context.Context, project string, issueID int64) error {
	endpoint := "projects/" + url.PathEscape(project) + "/issues/" + strconv.FormatInt(issueID, 10)
	return c.runSimple(ctx, "clear_due_date", project, issueID,
		[]string{"api", "--method", "PUT", endpoint, "--raw-field", "due_date="})
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, project string, issueID int64) error {
	return c.runSimple(ctx, "close", project, issueID,
		[]string{"issue", "close", strconv.FormatInt(issueID, 10), "-R", project})
}

// ReopenIssue reopens a closed issue.
func (c *Client) ReopenIssue(ctx context.Context, project string, issueID int64) error {
	return c.runSimple(ctx, "reopen", project, issueID,
		[]string{"issue", "reopen", strconv.FormatInt(issueID, 10), "-R", project})
}

// SyncCompletion closes the issue when the task was completed and reopens it
// when completion was cleared.
func (c *Client) SyncCompletion(ctx context.Context, project string, issueID int64, completed bool) error {
	if completed {
		return c.CloseIssue(ctx, project, issueID)
	}
	return c.ReopenIssue(ctx, project, issueID)
}

func (c *Client) runSimple(ctx context.Context, op, project string, issueID int64, args []string) error {
	log := logger.FromContextOr(ctx, c.logger).With(
		"tracker_project", project,
		"tracker_issue_id", issueID,
		"op", op,
	)

	res, err := c.runner.Run(ctx, c.commandLine(args...))
	if err != nil {
		log.Error("glab command could not run", "error", redact.Error(err))
		return c.runError(err)
	}
	if res.ExitCode != 0 {
		stderr := redact.String(strings.TrimSpace(res.Stderr))
		log.Warn("glab command failed", "exit_code", res.ExitCode, "stderr", stderr)
		return fmt.Errorf("%w: issue %s: exit code %d: %s", ErrCLIFailed, op, res.ExitCode, truncate(stderr))
	}

	log.Debug("glab command succeeded")
	return nil
}

func (c *Client) runError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrCLIFailed, redact.Error(err))
}

// commandLine quotes the binary and every argument for sh.
func (c *Client) commandLine(args ...string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(c.binary))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

func (c *Client) formatDueDate(t time.Time) string {
	return t.In(c.location).Format(dueDateLayout)
}

func joinNonEmpty(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}

func truncate(s string) string {
	if len(s) <= maxOutputInError {
		return s
	}
	return s[:maxOutputInError] + "..."
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}
