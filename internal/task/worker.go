package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/gitlab"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/store"
)

// IssueCreator creates tracker issues.
type IssueCreator interface {
	CreateIssue(ctx context.Context, req gitlab.IssueRequest) (gitlab.CreateResult, error)
}

// TaskDescriptions reads and patches task descriptions in the task suite.
type TaskDescriptions interface {
	GetTaskDescription(ctx context.Context, taskID string) (string, error)
	UpdateTaskDescription(ctx context.Context, taskID, description string) error
}

// AssigneeResolver maps task-suite identities to tracker identities.
type AssigneeResolver interface {
	ResolveMany(ctx context.Context, taskIdentities []string) map[string]string
}

// WorkerConfig holds the polling and retry settings of the sync worker.
type WorkerConfig struct {
	// PollInterval is the period of the drain timer.
	PollInterval time.Duration

	// BatchSize caps how many messages one drain leases.
	BatchSize int

	// VisibilityTimeout hides a leased message from other dequeues. A job
	// that is not acknowledged within it is delivered again.
	VisibilityTimeout time.Duration

	// MaxAttempts is the read count at which a job is dropped.
	MaxAttempts int

	// CallTimeout bounds each external call made while processing a job.
	CallTimeout time.Duration

	// LeaseMargin is kept free at the end of every lease. A job with less
	// than this left on its lease is skipped, and no call before issue
	// creation may run into the margin.
	LeaseMargin time.Duration

	// SaveRetries is how many extra attempts persisting a link gets once the
	// issue exists.
	SaveRetries int
}

// DefaultWorkerConfig returns the production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:      30 * time.Second,
		BatchSize:         5,
		VisibilityTimeout: 120 * time.Second,
		MaxAttempts:       8,
		CallTimeout:       60 * time.Second,
		LeaseMargin:       10 * time.Second,
		SaveRetries:       3,
	}
}

// WorkerConfigFrom converts loaded configuration.
func WorkerConfigFrom(cfg config.WorkerConfig) WorkerConfig {
	wc := DefaultWorkerConfig()
	wc.PollInterval = cfg.PollInterval
	wc.BatchSize = cfg.BatchSize
	wc.VisibilityTimeout = cfg.VisibilityTimeout
	wc.MaxAttempts = cfg.MaxAttempts
	wc.CallTimeout = cfg.CallTimeout
	wc.LeaseMargin = cfg.LeaseMargin
	return wc
}

// Validate checks the invariants the worker relies on.
func (c WorkerConfig) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return errors.New("poll interval must be positive")
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.MaxAttempts <= 0:
		return errors.New("max attempts must be positive")
	case c.CallTimeout <= 0:
		return errors.New("call timeout must be positive")
	case c.LeaseMargin < 0:
		return errors.New("lease margin cannot be negative")
	case c.VisibilityTimeout <= c.CallTimeout+c.LeaseMargin:
		return fmt.Errorf("visibility timeout (%s) must exceed call timeout (%s) plus lease margin (%s)",
			c.VisibilityTimeout, c.CallTimeout, c.LeaseMargin)
	case c.SaveRetries < 0:
		return errors.New("save retries cannot be negative")
	}
	return nil
}

// Dependencies are the collaborators of a Worker. Archiver and Tasks are
// optional: without an archiver dropped jobs are only acknowledged, and
// without Tasks no backlink is written into the task description.
type Dependencies struct {
	Queue    queue.Queue
	Archiver queue.Archiver
	Links    store.LinkStore
	Resolver AssigneeResolver
	Issues   IssueCreator
	Tasks    TaskDescriptions
}

// Outcome is what happened to one message.
type Outcome string

// Possible message outcomes
const (
	OutcomeLinked        Outcome = "linked"
	OutcomeAlreadyLinked Outcome = "already_linked"
	OutcomeDropped       Outcome = "dropped"
	OutcomeAmbiguous     Outcome = "ambiguous"
	OutcomeRetry         Outcome = "retry"
)

// BatchResult summarizes one drain.
type BatchResult struct {
	Dequeued int
	Outcomes map[Outcome]int
}

// Worker drains the link-job queue. At most one batch is in flight per
// Worker, and jobs within a batch run one after another.
type Worker struct {
	deps   Dependencies
	config WorkerConfig
	logger *slog.Logger
	now    func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewWorker creates a sync worker.
func NewWorker(deps Dependencies, cfg WorkerConfig, logger *slog.Logger) (*Worker, error) {
	if deps.Queue == nil || deps.Links == nil || deps.Resolver == nil || deps.Issues == nil {
		return nil, errors.New("sync worker requires a queue, link store, resolver and issue creator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	return &Worker{
		deps:   deps,
		config: cfg,
		logger: logger.With("component", "sync_worker"),
		now:    time.Now,
	}, nil
}

// SetClock replaces the clock the worker measures leases against. It must
// agree with the queue's clock and is meant for tests.
func (w *Worker) SetClock(now func() time.Time) {
	w.now = now
}

// Busy reports whether a drain is in progress.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Run drains on every tick of the poll timer until ctx is cancelled. The
// batch in flight when ctx ends stops after its current job; unprocessed
// messages reappear once their visibility timeout lapses.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("sync worker started",
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize,
		"visibility_timeout", w.config.VisibilityTimeout,
		"max_attempts", w.config.MaxAttempts,
		"lease_margin", w.config.LeaseMargin)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Start runs the worker in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go func() {
		defer close(w.done)
		_ = w.Run(ctx)
	}()
}

// Stop cancels a worker started with Start and waits for it to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.started = false
	w.mu.Unlock()

	cancel()
	<-done
}

// Tick performs one drain unless another is in progress, in which case it
// returns immediately with ran set to false.
func (w *Worker) Tick(ctx context.Context) (result BatchResult, ran bool) {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Debug("drain already in progress, skipping tick")
		return BatchResult{}, false
	}
	defer w.busy.Store(false)

	return w.drain(ctx), true
}

func (w *Worker) drain(ctx context.Context) BatchResult {
	result := BatchResult{Outcomes: make(map[Outcome]int)}

	dqCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	msgs, err := w.deps.Queue.Dequeue(dqCtx, w.config.BatchSize, w.config.VisibilityTimeout)
	cancel()
	if err != nil {
		w.logger.Error("failed to dequeue link jobs", "error", err)
		return result
	}
	result.Dequeued = len(msgs)
	if len(msgs) == 0 {
		return result
	}

	start := time.Now()
	for _, msg := range msgs {
		if ctx.Err() != nil {
			w.logger.Info("drain interrupted, remaining jobs will be redelivered",
				"remaining", result.Dequeued-countOutcomes(result.Outcomes))
			break
		}
		result.Outcomes[w.processMessage(ctx, msg)]++
	}

	w.logger.Info("drain finished",
		"dequeued", result.Dequeued,
		"linked", result.Outcomes[OutcomeLinked],
		"already_linked", result.Outcomes[OutcomeAlreadyLinked],
		"dropped", result.Outcomes[OutcomeDropped],
		"ambiguous", result.Outcomes[OutcomeAmbiguous],
		"retry", result.Outcomes[OutcomeRetry],
		"duration_ms", time.Since(start).Milliseconds())
	return result
}

// processMessage runs one job. A panic is contained here and leaves the
// message for redelivery.
func (w *Worker) processMessage(ctx context.Context, msg queue.Message) (outcome Outcome) {
	log := w.logger.With("msg_id", msg.MsgID, "read_count", msg.ReadCount)
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while processing link job",
				"panic", p,
				"stack", string(debug.Stack()))
			outcome = OutcomeRetry
		}
	}()

	if !w.leaseUsable(log, msg, "before processing") {
		return OutcomeRetry
	}

	if msg.ReadCount >= w.config.MaxAttempts {
		log.Error("link job exceeded max attempts, dropping", "max_attempts", w.config.MaxAttempts)
		w.drop(ctx, msg, queue.ReasonMaxAttempts,
			fmt.Sprintf("read %d times, limit %d", msg.ReadCount, w.config.MaxAttempts))
		return OutcomeDropped
	}

	job, err := domain.DecodeLinkJob(msg.Payload)
	if err != nil {
		log.Error("malformed link job, dropping", "error", err)
		w.drop(ctx, msg, queue.ReasonMalformed, err.Error())
		return OutcomeDropped
	}

	log = log.With("task_id", job.TaskID, "tracker_project", job.TrackerProject)
	ctx = logger.WithLogger(ctx, log)

	return w.processJob(ctx, log, msg, job)
}

func (w *Worker) processJob(ctx context.Context, log *slog.Logger, msg queue.Message, job *domain.LinkJob) Outcome {
	existing, err := w.lookupLink(ctx, msg, job.TaskID)
	switch {
	case err == nil:
		log.Info("task already linked, acknowledging",
			"tracker_issue_id", existing.TrackerIssueID,
			"tracker_issue_url", existing.TrackerIssueURL)
		w.ack(ctx, msg)
		return OutcomeAlreadyLinked
	case !store.IsNotFoundError(err):
		log.Error("link registry lookup failed, job left for redelivery", "error", err)
		return OutcomeRetry
	}

	assignees := w.resolveAssignees(ctx, msg, job.AssigneeTaskIdentities)
	trackerIdentities := make([]string, 0, len(assignees))
	for _, a := range assignees {
		trackerIdentities = append(trackerIdentities, a.tracker)
	}
	if len(job.AssigneeTaskIdentities) > 0 && len(assignees) == 0 {
		log.Warn("no assignee could be resolved, creating issue unassigned",
			"assignee_task_identities", job.AssigneeTaskIdentities)
	}

	taskURL, urlErr := job.TaskLinkURL()
	if urlErr != nil {
		log.Warn("task url cannot be linked, creating issue without task backlink",
			"task_url", job.TaskURL, "error", urlErr)
	}
	job.TaskURL = taskURL

	req, dueErr := gitlab.BuildIssueRequest(job, trackerIdentities)
	if dueErr != nil {
		log.Warn("ignoring unparseable due timestamp", "due_timestamp", job.DueTimestamp, "error", dueErr)
	}

	// Another consumer may own the job once the lease lapses, so creating
	// the issue now could duplicate it.
	if !w.leaseUsable(log, msg, "before issue creation") {
		return OutcomeRetry
	}

	callCtx, cancel := w.leasedCall(ctx, msg)
	created, err := w.deps.Issues.CreateIssue(callCtx, req)
	cancel()

	switch created.Outcome {
	case gitlab.OutcomeCreated:
	case gitlab.OutcomeAmbiguous:
		log.Error("issue creation outcome unknown, archiving job for manual review", "error", err)
		w.drop(ctx, msg, queue.ReasonAmbiguousCreate, errorString(err))
		return OutcomeAmbiguous
	default:
		log.Warn("issue creation failed, job will be retried after visibility timeout",
			"error", err,
			"visibility_timeout", w.config.VisibilityTimeout)
		return OutcomeRetry
	}

	log = log.With("tracker_issue_id", created.IssueID, "tracker_issue_url", created.URL)
	ctx = logger.WithLogger(ctx, log)

	link, err := domain.NewTaskLink(job.TaskID, job.TrackerProject, created.IssueID, created.URL)
	if err != nil {
		log.Error("created issue produced an invalid link", "error", err)
		return OutcomeRetry
	}
	link.TaskURL = job.TaskURL
	link.CreatedBy = job.CreatedBy
	if len(assignees) > 0 {
		link.AssigneeTaskIdentity = assignees[0].task
		link.AssigneeTrackerIdentity = assignees[0].tracker
	}

	if err := w.saveLink(ctx, link); err != nil {
		log.Error("issue created but link could not be saved, job left for redelivery", "error", err)
		return OutcomeRetry
	}

	w.patchBacklink(ctx, job.TaskID, created.URL)
	w.ack(ctx, msg)

	log.Info("task linked to issue")
	return OutcomeLinked
}

// leaseLeft is what remains of msg's lease before the margin.
func (w *Worker) leaseLeft(msg queue.Message) time.Duration {
	return msg.VisibleAt.Sub(w.now()) - w.config.LeaseMargin
}

// leaseUsable reports whether msg may still be worked on, logging when it
// may not.
func (w *Worker) leaseUsable(log *slog.Logger, msg queue.Message, stage string) bool {
	if w.leaseLeft(msg) > 0 {
		return true
	}
	log.Warn("lease about to expire, leaving job for redelivery",
		"stage", stage,
		"visible_at", msg.VisibleAt,
		"lease_margin", w.config.LeaseMargin)
	return false
}

// leasedCall bounds a call made for msg by CallTimeout and by what is left
// of its lease.
func (w *Worker) leasedCall(ctx context.Context, msg queue.Message) (context.Context, context.CancelFunc) {
	timeout := w.config.CallTimeout
	if left := w.leaseLeft(msg); left < timeout {
		timeout = left
	}
	return context.WithTimeout(ctx, timeout)
}

func (w *Worker) lookupLink(ctx context.Context, msg queue.Message, taskID string) (*domain.TaskLink, error) {
	callCtx, cancel := w.leasedCall(ctx, msg)
	defer cancel()
	return w.deps.Links.GetByTaskID(callCtx, taskID)
}

type assignee struct {
	task    string
	tracker string
}

// resolveAssignees keeps the job's order and drops duplicates and
// identities that resolve to nothing.
func (w *Worker) resolveAssignees(ctx context.Context, msg queue.Message, taskIdentities []string) []assignee {
	if len(taskIdentities) == 0 {
		return nil
	}

	callCtx, cancel := w.leasedCall(ctx, msg)
	resolved := w.deps.Resolver.ResolveMany(callCtx, taskIdentities)
	cancel()

	seen := make(map[string]struct{}, len(resolved))
	out := make([]assignee, 0, len(resolved))
	for _, id := range taskIdentities {
		tracker, ok := resolved[id]
		if !ok || tracker == "" {
			continue
		}
		if _, dup := seen[tracker]; dup {
			continue
		}
		seen[tracker] = struct{}{}
		out = append(out, assignee{task: id, tracker: tracker})
	}
	return out
}

// saveLink persists a link, retrying briefly: once the issue exists a lost
// save means a duplicate issue on redelivery.
func (w *Worker) saveLink(ctx context.Context, link *domain.TaskLink) error {
	backoff := retry.WithMaxRetries(uint64(w.config.SaveRetries), retry.NewExponential(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
		defer cancel()

		err := w.deps.Links.Save(callCtx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrInvalidEntity) {
			return err
		}
		logger.FromContextOr(ctx, w.logger).Warn("saving task link failed", "error", err)
		return retry.RetryableError(err)
	})
}

// patchBacklink writes the issue URL into the task description. Failures
// are logged and otherwise ignored.
func (w *Worker) patchBacklink(ctx context.Context, taskID, issueURL string) {
	if w.deps.Tasks == nil {
		return
	}
	log := logger.FromContextOr(ctx, w.logger)

	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	defer cancel()

	current, err := w.deps.Tasks.GetTaskDescription(callCtx, taskID)
	if err != nil {
		log.Warn("could not read task description, skipping backlink", "error", err)
		return
	}

	updated := domain.AppendIssueBacklink(current, issueURL)
	if updated == current {
		log.Debug("task description already links the issue")
		return
	}

	if err := w.deps.Tasks.UpdateTaskDescription(callCtx, taskID, updated); err != nil {
		log.Warn("could not write backlink into task description", "error", err)
		return
	}
	log.Debug("backlink written into task description")
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	log := logger.FromContextOr(ctx, w.logger)

	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	defer cancel()

	ok, err := w.deps.Queue.Acknowledge(callCtx, msg.MsgID)
	switch {
	case err != nil:
		log.Error("failed to acknowledge link job, it will be redelivered", "error", err)
	case !ok:
		log.Warn("link job was already gone when acknowledged")
	}
}

// drop removes a message that must not be retried, archiving it when an
// archiver is configured.
func (w *Worker) drop(ctx context.Context, msg queue.Message, reason queue.DropReason, detail string) {
	if w.deps.Archiver == nil {
		w.ack(ctx, msg)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	err := w.deps.Archiver.Archive(callCtx, msg, reason, detail)
	cancel()
	if err != nil {
		logger.FromContextOr(ctx, w.logger).Error("failed to archive link job, acknowledging instead",
			"reason", reason, "error", err)
		w.ack(ctx, msg)
	}
}

func countOutcomes(m map[Outcome]int) int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
