package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/platform/logger"
	"github.com/phrazzld/tasklink/internal/store"
)

// PostgresUserMappingStore implements the store.UserMappingStore interface.
type PostgresUserMappingStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresUserMappingStore implements store.UserMappingStore interface
var _ store.UserMappingStore = (*PostgresUserMappingStore)(nil)

// NewPostgresUserMappingStore creates a new PostgresUserMappingStore.
func NewPostgresUserMappingStore(db store.DBTX, logger *slog.Logger) *PostgresUserMappingStore {
	return &PostgresUserMappingStore{
		db:     db,
		logger: logger.With("store", "user_mapping"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cached mapping for one task identity.
func (s *PostgresUserMappingStore) Get(ctx context.Context, taskIdentity string) (*domain.UserMapping, error) {
	var m domain.UserMapping
	err := s.db.QueryRowContext(ctx, `
		SELECT task_identity, tracker_identity, display_name, created_at, updated_at
		FROM user_mappings
		WHERE task_identity = $1
	`, taskIdentity).Scan(&m.TaskIdentity, &m.TrackerIdentity, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrUserMappingNotFound
		}
		logger.FromContextOr(ctx, s.logger).Error("failed to query user mapping",
			"task_identity", taskIdentity, "error", err)
		return nil, store.NewStoreError("user_mapping", "get", "query failed", MapError(err))
	}

	return &m, nil
}

// GetMany loads every cached mapping among taskIdentities in one query.
func (s *PostgresUserMappingStore) GetMany(
	ctx context.Context,
	taskIdentities []string,
) (map[string]*domain.UserMapping, error) {
	found := make(map[string]*domain.UserMapping, len(taskIdentities))
	if len(taskIdentities) == 0 {
		return found, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_identity, tracker_identity, display_name, created_at, updated_at
		FROM user_mappings
		WHERE task_identity = ANY($1)
	`, taskIdentities)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to query user mappings",
			"count", len(taskIdentities), "error", err)
		return nil, store.NewStoreError("user_mapping", "get_many", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m domain.UserMapping
		if err := rows.Scan(&m.TaskIdentity, &m.TrackerIdentity, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user mapping row: %w", err)
		}
		found[m.TaskIdentity] = &m
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user mapping rows: %w", err)
	}

	return found, nil
}

// Upsert inserts or refreshes a mapping.
func (s *PostgresUserMappingStore) Upsert(ctx context.Context, m *domain.UserMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	now := s.now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_mappings (task_identity, tracker_identity, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (task_identity) DO UPDATE SET
			tracker_identity = EXCLUDED.tracker_identity,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, m.TaskIdentity, m.TrackerIdentity, m.DisplayName, now).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to upsert user mapping",
			"task_identity", m.TaskIdentity, "error", err)
		return store.NewStoreError("user_mapping", "upsert", "upsert failed", MapError(err))
	}

	return nil
}
