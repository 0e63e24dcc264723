package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/platform/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	steps := []struct {
		use   string
		short string
		run   func(ctx context.Context, db *sql.DB, logger *slog.Logger) error
	}{
		{"up", "Apply all pending migrations", postgres.Migrate},
		{"down", "Roll back the most recent migration", postgres.MigrateDown},
		{"status", "Show the state of every migration", postgres.MigrationStatus},
	}

	for _, step := range steps {
		step := step
		cmd.AddCommand(&cobra.Command{
			Use:   step.use,
			Short: step.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := loadRuntime(opts)
				if err != nil {
					return err
				}

				db, err := openDatabase(cmd.Context(), cfg.Database, log)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()

				return step.run(cmd.Context(), db, log)
			},
		})
	}

	return cmd
}
