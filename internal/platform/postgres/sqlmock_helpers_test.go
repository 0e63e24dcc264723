package postgres

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// passthroughConverter lets array arguments such as []string reach sqlmock
// unchanged; the pgx driver encodes them natively in production.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	if dv, err := driver.DefaultParameterConverter.ConvertValue(v); err == nil {
		return dv, nil
	}
	return v, nil
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
