//go:build integration

// Package testdb connects integration tests to a real PostgreSQL database.
// Tests are skipped when no database URL is configured, so the package is
// safe to build in every environment that sets the integration tag.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/platform/postgres"
)

// URLEnvVars are consulted in order for the test database URL.
var URLEnvVars = []string{"TASKLINK_TEST_DATABASE_URL", "DATABASE_URL"}

// GetTestDatabaseURL returns the first configured database URL, or "".
func GetTestDatabaseURL() string {
	for _, name := range URLEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDBWithT opens the test database and applies all migrations. The
// test is skipped when no URL is configured and the connection is closed
// on cleanup.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("no test database configured; set TASKLINK_TEST_DATABASE_URL")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		t.Fatalf("failed to open test database %s: %v", maskDatabaseURL(dbURL), err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("test database %s unreachable: %v", maskDatabaseURL(dbURL), err)
	}

	_, log := logger.NewTestLogger()
	if err := postgres.Migrate(ctx, db, log); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// sharing a database do not see each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// Truncate empties the given tables. Use it for code under test that opens
// its own transactions and cannot run inside WithTx.
func Truncate(t *testing.T, db *sql.DB, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	if _, err := db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY"); err != nil {
		t.Fatalf("failed to truncate %v: %v", tables, err)
	}
}

// maskDatabaseURL hides the password of a connection URL.
func maskDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
