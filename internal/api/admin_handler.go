package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/tasklink/internal/api/shared"
	"github.com/phrazzld/tasklink/internal/queue"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// DeadLetterAdmin lists and replays archived jobs.
type DeadLetterAdmin interface {
	ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error)
	Requeue(ctx context.Context, msgID int64) (int64, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WorkerStatus reports whether the sync worker is draining.
type WorkerStatus interface {
	Busy() bool
}

var _ Pinger = (*sql.DB)(nil)

// AdminHandler serves dead-letter administration and the health probe.
type AdminHandler struct {
	deadLetters DeadLetterAdmin
	db          Pinger
	worker      WorkerStatus
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler. Any dependency may be nil; the
// matching endpoint then reports it as unavailable.
func NewAdminHandler(deadLetters DeadLetterAdmin, db Pinger, worker WorkerStatus, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		deadLetters: deadLetters,
		db:          db,
		worker:      worker,
		logger:      logger.With(slog.String("component", "admin_handler")),
	}
}

// ListDeadLetters handles GET /v1/dead-letters?limit=N.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		shared.RespondWithError(w, r, http.StatusNotImplemented, "Dead-letter archive not configured")
		return
	}

	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDeadLetterLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	dead, err := h.deadLetters.ListDeadLetters(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	out := make([]DeadLetterResponse, 0, len(dead))
	for _, d := range dead {
		out = append(out, deadLetterToResponse(d))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// RequeueDeadLetter handles POST /v1/dead-letters/{msgID}/requeue.
func (h *AdminHandler) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		shared.RespondWithError(w, r, http.StatusNotImplemented, "Dead-letter archive not configured")
		return
	}

	msgID, err := strconv.ParseInt(chi.URLParam(r, "msgID"), 10, 64)
	if err != nil || msgID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid message ID")
		return
	}

	newID, err := h.deadLetters.Requeue(r.Context(), msgID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	h.logger.Info("dead letter requeued", "msg_id", msgID, "new_msg_id", newID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueJobResponse{MsgID: newID})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	WorkerBusy bool   `json:"worker_busy"`
}

// Health handles GET /healthz. It answers 503 when the database is down.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "unconfigured"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("health check: database unreachable", "error", err)
			resp.Status, resp.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if h.worker != nil {
		resp.WorkerBusy = h.worker.Busy()
	}

	shared.RespondWithJSON(w, r, status, resp)
}
