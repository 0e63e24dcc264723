package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/tasklink/internal/api"
	"github.com/phrazzld/tasklink/internal/platform/postgres"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		migrate  bool
		noWorker bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApplication(ctx, opts, func(ctx context.Context, app *application) error {
				if migrate {
					if err := postgres.Migrate(ctx, app.db, app.logger); err != nil {
						return err
					}
				}
				return app.serve(ctx, !noWorker)
			})
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "serve the API without draining the queue")

	return cmd
}

// serve runs the API server and, optionally, the sync worker until ctx ends
// or either of them fails.
func (app *application) serve(ctx context.Context, runWorker bool) error {
	router := api.NewRouter(api.RouterDeps{
		Links:       app.linkService,
		JWT:         app.jwtService,
		DeadLetters: app.jobQueue,
		DB:          app.db,
		Worker:      app.worker,
		Logger:      app.logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if runWorker {
		g.Go(func() error {
			return app.worker.Run(gctx)
		})
	} else {
		app.logger.Warn("sync worker disabled; jobs will accumulate in the queue")
	}

	err := g.Wait()
	app.logger.Info("shutdown completed")
	return err
}
