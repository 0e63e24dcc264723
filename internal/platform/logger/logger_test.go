package logger_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/config"
	"github.com/phrazzld/tasklink/internal/platform/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "chatty", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logger.ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetup_File(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	path := filepath.Join(t.TempDir(), "tasklink.log")
	l, err := logger.Setup(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug("worker started", "batch_size", 5)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"worker started"`)
	assert.Contains(t, string(data), `"batch_size":5`)
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := logger.Setup(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	buf, l := logger.NewTestLogger()
	ctx := logger.WithLogger(context.Background(), l.With("msg_id", 9))

	logger.FromContext(ctx).Info("processing job")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(9), entries[0]["msg_id"])

	assert.Equal(t, slog.Default(), logger.FromContext(context.Background()))
}
