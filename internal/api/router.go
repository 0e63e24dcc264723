package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/phrazzld/tasklink/internal/api/middleware"
	"github.com/phrazzld/tasklink/internal/service/auth"
)

// RouterDeps are the collaborators wired into the router.
type RouterDeps struct {
	Links       LinkService
	JWT         auth.JWTService
	DeadLetters DeadLetterAdmin
	DB          Pinger
	Worker      WorkerStatus
	Logger      *slog.Logger
}

// NewRouter builds the HTTP handler of the API.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	links := NewLinkHandler(deps.Links, deps.Logger)
	admin := NewAdminHandler(deps.DeadLetters, deps.DB, deps.Worker, deps.Logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.JWT)

	r.Get("/healthz", admin.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/jobs", links.EnqueueJob)

		r.Route("/links/{taskID}", func(r chi.Router) {
			r.Get("/", links.GetLink)
			r.Delete("/", links.Unlink)
			r.Put("/task-status", links.UpdateTaskStatus)
			r.Put("/completion", links.SetCompletion)
			r.Post("/edits", links.SyncEdits)
		})

		r.Put("/projects/{project}/issues/{issueID}/tracker-status", links.UpdateTrackerStatus)

		r.Get("/dead-letters", admin.ListDeadLetters)
		r.Post("/dead-letters/{msgID}/requeue", admin.RequeueDeadLetter)
	})

	return r
}
