package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/platform/logger"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tasklink",
		Short: "Links task-suite tasks to GitLab issues",
		Long: `tasklink mirrors tasks from the Lark task suite into GitLab issues.

QUICK START:
  tasklink migrate up                      # Create or upgrade the schema
  tasklink serve                           # Run the HTTP API and the sync worker
  tasklink enqueue --task-id t-1 \
      --summary "Fix login" --project grp/app
  tasklink link get t-1                    # Show the issue linked to a task

CONFIGURATION: tasklink.yaml in the working directory, or --config, with
TASKLINK_* environment variables taking precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newEnqueueCmd(opts),
		newResolveCmd(opts),
		newLinkCmd(opts),
		newTokenCmd(opts),
		newDeadLettersCmd(opts),
	)

	return cmd
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(opts.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return cfg, log, nil
}

// withApplication runs fn against a fully wired application and closes it
// afterwards.
func withApplication(
	ctx context.Context,
	opts *rootOptions,
	fn func(ctx context.Context, app *application) error,
) error {
	cfg, log, err := loadRuntime(opts)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer app.cleanup()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
