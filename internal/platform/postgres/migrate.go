package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

// MigrationTableName is the table goose uses to track applied versions.
const MigrationTableName = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return runGoose(ctx, db, logger, func() error {
		return goose.UpContext(ctx, db, "migrations")
	})
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return runGoose(ctx, db, logger, func() error {
		return goose.DownContext(ctx, db, "migrations")
	})
}

// MigrationStatus logs the state of every migration.
func MigrationStatus(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return runGoose(ctx, db, logger, func() error {
		return goose.StatusContext(ctx, db, "migrations")
	})
}

func runGoose(ctx context.Context, db *sql.DB, logger *slog.Logger, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(MigrationTableName)
	goose.SetLogger(&gooseLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := fn(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "migrations")
}
