package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/identity"
	"github.com/phrazzld/tasklink/internal/platform/gitlab"
	"github.com/phrazzld/tasklink/internal/platform/lark"
	"github.com/phrazzld/tasklink/internal/platform/postgres"
	"github.com/phrazzld/tasklink/internal/service"
	"github.com/phrazzld/tasklink/internal/service/auth"
	"github.com/phrazzld/tasklink/internal/store"
	"github.com/phrazzld/tasklink/internal/task"
)

// application holds the shared dependencies of every command and owns their
// cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	jobQueue     *postgres.PostgresJobQueue
	linkStore    store.LinkStore
	mappingStore store.UserMappingStore

	// External systems
	larkClient   *lark.Client
	gitlabClient *gitlab.Client

	// Services
	resolver    *identity.Resolver
	linkService *service.LinkService
	jwtService  auth.JWTService
	worker      *task.Worker
}

// newApplication wires every component on top of an open database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.jobQueue = postgres.NewPostgresJobQueue(db, logger)
	app.linkStore = postgres.NewPostgresLinkStore(db, logger)
	app.mappingStore = postgres.NewPostgresUserMappingStore(db, logger)

	app.larkClient = lark.NewClient(cfg.Lark, logger)

	var err error
	runner := gitlab.NewShellRunner(gitlab.RunnerEnv(cfg.GitLab)...)
	app.gitlabClient, err = gitlab.NewClient(runner, cfg.GitLab, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gitlab client: %w", err)
	}

	app.resolver = identity.NewResolver(
		app.mappingStore,
		app.larkClient,
		logger,
		identity.WithEmailSuffix(cfg.Identity.EmailSuffix),
	)

	app.linkService, err = service.NewLinkService(app.jobQueue, app.linkStore, app.gitlabClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize link service: %w", err)
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.worker, err = task.NewWorker(task.Dependencies{
		Queue:    app.jobQueue,
		Archiver: app.jobQueue,
		Links:    app.linkStore,
		Resolver: app.resolver,
		Issues:   app.gitlabClient,
		Tasks:    app.larkClient,
	}, task.WorkerConfigFrom(cfg.Worker), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync worker: %w", err)
	}

	return app, nil
}

// cleanup releases the resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
