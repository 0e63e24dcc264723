package lark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larktask "github.com/larksuite/oapi-sdk-go/v3/service/task/v2"
	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/identity"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/redact"
)

const (
	defaultRetryBase   = 200 * time.Millisecond
	defaultReqTimeout  = 30 * time.Second
	descriptionField   = "description"
	codeTaskNotFound   = 1470404
	codeUserNotVisible = 41050
)

// Client calls the Lark open platform through the official SDK, which owns
// the tenant access token. Throttling and server errors are retried here.
type Client struct {
	sdk        *larksdk.Client
	baseURL    string
	httpClient *http.Client
	userIDType string
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger
}

// Ensure Client can serve as the identity directory
var _ identity.Directory = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the SDK's HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the configured API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithRetryBase sets the first backoff interval.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// NewClient creates a client from configuration.
func NewClient(cfg config.LarkConfig, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		userIDType: cfg.UserIDType,
		maxRetries: cfg.MaxRetries,
		retryBase:  defaultRetryBase,
		logger:     logger.With("component", "lark_client"),
	}
	if c.userIDType == "" {
		c.userIDType = "open_id"
	}
	for _, opt := range opts {
		opt(c)
	}

	sdkOpts := []larksdk.ClientOptionFunc{
		larksdk.WithOpenBaseUrl(strings.TrimRight(c.baseURL, "/")),
		larksdk.WithReqTimeout(defaultReqTimeout),
		larksdk.WithLogger(sdkLogger{log: c.logger}),
		larksdk.WithLogLevel(larkcore.LogLevelWarn),
	}
	if c.httpClient != nil {
		sdkOpts = append(sdkOpts, larksdk.WithHttpClient(c.httpClient))
	}
	c.sdk = larksdk.NewClient(cfg.AppID, cfg.AppSecret, sdkOpts...)
	return c
}

// GetUser looks a user up in the contact directory. It satisfies
// identity.Directory; the returned email is the work email.
func (c *Client) GetUser(ctx context.Context, userID string) (*identity.DirectoryUser, error) {
	u, err := c.GetContactUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &identity.DirectoryUser{Email: u.WorkEmail(), DisplayName: u.Name}, nil
}

// GetContactUser returns the full directory entry for userID.
func (c *Client) GetContactUser(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrUserNotFound)
	}

	req := larkcontact.NewGetUserReqBuilder().
		UserId(userID).
		UserIdType(c.userIDType).
		Build()

	var found *larkcontact.User
	err := c.call(ctx, "contact.user.get", func(ctx context.Context) (apiResult, error) {
		resp, err := c.sdk.Contact.V3.User.Get(ctx, req)
		if err != nil {
			return apiResult{}, err
		}
		if resp.Data != nil {
			found = resp.Data.User
		}
		return resultOf(resp.ApiResp, resp.Code, resp.Msg), nil
	})
	if errors.Is(err, errNotFound) || (err == nil && found == nil) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	return &User{
		OpenID:          deref(found.OpenId),
		UserID:          deref(found.UserId),
		Name:            deref(found.Name),
		Email:           deref(found.Email),
		EnterpriseEmail: deref(found.EnterpriseEmail),
	}, nil
}

// GetTask returns a task by guid.
func (c *Client) GetTask(ctx context.Context, taskGUID string) (*Task, error) {
	req := larktask.NewGetTaskReqBuilder().
		TaskGuid(taskGUID).
		UserIdType(c.userIDType).
		Build()

	var found *larktask.Task
	err := c.call(ctx, "task.get", func(ctx context.Context) (apiResult, error) {
		resp, err := c.sdk.Task.V2.Task.Get(ctx, req)
		if err != nil {
			return apiResult{}, err
		}
		if resp.Data != nil {
			found = resp.Data.Task
		}
		return resultOf(resp.ApiResp, resp.Code, resp.Msg), nil
	})
	if errors.Is(err, errNotFound) || (err == nil && found == nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskGUID)
	}
	if err != nil {
		return nil, err
	}

	return &Task{
		GUID:        deref(found.Guid),
		Summary:     deref(found.Summary),
		Description: deref(found.Description),
		CompletedAt: deref(found.CompletedAt),
		URL:         deref(found.Url),
	}, nil
}

// GetTaskDescription returns the current description of a task.
func (c *Client) GetTaskDescription(ctx context.Context, taskGUID string) (string, error) {
	t, err := c.GetTask(ctx, taskGUID)
	if err != nil {
		return "", err
	}
	return t.Description, nil
}

// UpdateTaskDescription replaces the description of a task and nothing else.
func (c *Client) UpdateTaskDescription(ctx context.Context, taskGUID, description string) error {
	req := larktask.NewPatchTaskReqBuilder().
		TaskGuid(taskGUID).
		UserIdType(c.userIDType).
		Body(larktask.NewPatchTaskReqBodyBuilder().
			Task(larktask.NewInputTaskBuilder().Description(description).Build()).
			UpdateFields([]string{descriptionField}).
			Build()).
		Build()

	err := c.call(ctx, "task.patch", func(ctx context.Context) (apiResult, error) {
		resp, err := c.sdk.Task.V2.Task.Patch(ctx, req)
		if err != nil {
			return apiResult{}, err
		}
		return resultOf(resp.ApiResp, resp.Code, resp.Msg), nil
	})
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskGUID)
	}
	return err
}

// errNotFound is the internal signal for a missing user or task.
var errNotFound = errors.New("not found")

// apiResult is the part of an SDK response the client classifies.
type apiResult struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func resultOf(resp *larkcore.ApiResp, code int, msg string) apiResult {
	r := apiResult{Code: code, Msg: msg}
	if resp != nil {
		r.HTTPStatus = resp.StatusCode
	}
	return r
}

// call runs one SDK request with bounded retries inside the caller's
// deadline.
func (c *Client) call(ctx context.Context, op string, do func(context.Context) (apiResult, error)) error {
	log := logger.FromContextOr(ctx, c.logger).With("op", op)

	backoff := retry.WithJitterPercent(20, retry.NewExponential(c.retryBase))
	backoff = retry.WithMaxRetries(uint64(max(c.maxRetries, 0)), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := do(ctx)
		err = classify(ctx, res, err)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnavailable) {
			log.Warn("lark call failed, may retry", "attempt", attempt, "error", redact.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

// classify maps an SDK outcome onto the package errors. SDK errors cover
// transport failures, undecodable bodies and token fetch failures.
func classify(ctx context.Context, res apiResult, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s", ErrUnavailable, redact.Error(err))
	}

	apiErr := &APIError{HTTPStatus: res.HTTPStatus, Code: res.Code, Msg: res.Msg}
	switch {
	case res.HTTPStatus == http.StatusNotFound || res.Code == codeTaskNotFound || res.Code == codeUserNotVisible:
		return errNotFound
	case res.Code == 0 && res.HTTPStatus < 300:
		return nil
	case tokenRejected(res.Code):
		return fmt.Errorf("%w: %w", ErrAuth, apiErr)
	case res.Code == codeRateLimited || res.HTTPStatus == http.StatusTooManyRequests || res.HTTPStatus >= 500:
		return fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
	default:
		return apiErr
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sdkLogger routes SDK log lines into the structured logger.
type sdkLogger struct {
	log *slog.Logger
}

var _ larkcore.Logger = sdkLogger{}

func (l sdkLogger) Debug(ctx context.Context, args ...interface{}) {
	l.log.DebugContext(ctx, redact.String(fmt.Sprint(args...)), "source", "lark_sdk")
}

func (l sdkLogger) Info(ctx context.Context, args ...interface{}) {
	l.log.InfoContext(ctx, redact.String(fmt.Sprint(args...)), "source", "lark_sdk")
}

func (l sdkLogger) Warn(ctx context.Context, args ...interface{}) {
	l.log.WarnContext(ctx, redact.String(fmt.Sprint(args...)), "source", "lark_sdk")
}

func (l sdkLogger) Error(ctx context.Context, args ...interface{}) {
	l.log.ErrorContext(ctx, redact.String(fmt.Sprint(args...)), "source", "lark_sdk")
}
