package store

import (
	"context"

	"github.com/phrazzld/tasklink/internal/domain"
)

// UserMappingStore caches confirmed task-suite to tracker identity mappings.
type UserMappingStore interface {
	// Get returns ErrUserMappingNotFound on a cache miss.
	Get(ctx context.Context, taskIdentity string) (*domain.UserMapping, error)

	// GetMany returns the cached mappings keyed by task identity. Misses are
	// simply absent from the map.
	GetMany(ctx context.Context, taskIdentities []string) (map[string]*domain.UserMapping, error)

	// Upsert inserts or refreshes a mapping.
	Upsert(ctx context.Context, mapping *domain.UserMapping) error
}
