package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/tasklink/internal/api/shared"
	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/service"
)

// LinkService is what the link handler needs from the service layer.
type LinkService interface {
	EnqueueLink(ctx context.Context, job domain.LinkJob) (int64, error)
	GetLink(ctx context.Context, taskID string) (*domain.TaskLink, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error
	UpdateTrackerStatus(ctx context.Context, project string, issueID int64, status domain.TrackerStatus) error
	SetTaskCompletion(ctx context.Context, taskID, completedAt string) (*domain.TaskLink, error)
	SyncTaskEdits(ctx context.Context, taskID string, edits service.TaskEdits) error
	Unlink(ctx context.Context, taskID string) error
}

// Ensure service.LinkService satisfies the handler's needs
var _ LinkService = (*service.LinkService)(nil)

// LinkHandler serves the enqueue boundary and the link endpoints.
type LinkHandler struct {
	links  LinkService
	logger *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(links LinkService, logger *slog.Logger) *LinkHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for LinkHandler")
	}
	return &LinkHandler{
		links:  links,
		logger: logger.With(slog.String("component", "link_handler")),
	}
}

// EnqueueJob handles POST /v1/jobs.
func (h *LinkHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msgID, err := h.links.EnqueueLink(r.Context(), req.ToJob())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueJobResponse{MsgID: msgID})
}

// GetLink handles GET /v1/links/{taskID}.
func (h *LinkHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	link, err := h.links.GetLink(r.Context(), taskID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, linkToResponse(link))
}

// UpdateTaskStatus handles PUT /v1/links/{taskID}/task-status.
func (h *LinkHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	var req TaskStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.links.UpdateTaskStatus(r.Context(), taskID, domain.TaskStatus(req.Status)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateTrackerStatus handles
// PUT /v1/projects/{project}/issues/{issueID}/tracker-status. The project
// path segment is URL-encoded ("grp%2Fapp").
func (h *LinkHandler) UpdateTrackerStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOr(r.Context(), h.logger)

	project, perr := url.PathUnescape(chi.URLParam(r, "project"))
	issueID, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	if project == "" || perr != nil || err != nil || issueID <= 0 {
		log.Debug("invalid tracker issue reference",
			"project", project,
			"issue_id", chi.URLParam(r, "issueID"))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid project or issue ID")
		return
	}

	var req TrackerStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.links.UpdateTrackerStatus(r.Context(), project, issueID, domain.TrackerStatus(req.Status)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCompletion handles PUT /v1/links/{taskID}/completion.
func (h *LinkHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	var req CompletionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	link, err := h.links.SetTaskCompletion(r.Context(), taskID, req.CompletedAt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, linkToResponse(link))
}

// SyncEdits handles POST /v1/links/{taskID}/edits.
func (h *LinkHandler) SyncEdits(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	var req TaskEditsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	edits := service.TaskEdits{
		Summary:      req.Summary,
		Description:  req.Description,
		DueTimestamp: req.DueTimestamp,
	}
	if err := h.links.SyncTaskEdits(r.Context(), taskID, edits); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlink handles DELETE /v1/links/{taskID}.
func (h *LinkHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	if err := h.links.Unlink(r.Context(), taskID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return "", false
	}
	return taskID, true
}

// decodeAndValidate decodes the body into v and validates it, writing a 400
// response and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		msg := SanitizeValidationError(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return false
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
