package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/store"
)

// MockUserMappingStore implements store.UserMappingStore for testing.
type MockUserMappingStore struct {
	GetFn     func(ctx context.Context, taskIdentity string) (*domain.UserMapping, error)
	GetManyFn func(ctx context.Context, taskIdentities []string) (map[string]*domain.UserMapping, error)
	UpsertFn  func(ctx context.Context, mapping *domain.UserMapping) error

	mu          sync.Mutex
	Mappings    map[string]*domain.UserMapping
	GetCalls    int
	UpsertCalls int
}

// Ensure MockUserMappingStore implements store.UserMappingStore
var _ store.UserMappingStore = (*MockUserMappingStore)(nil)

// NewMockUserMappingStore creates an empty cache.
func NewMockUserMappingStore() *MockUserMappingStore {
	return &MockUserMappingStore{Mappings: make(map[string]*domain.UserMapping)}
}

// Get implements store.UserMappingStore
func (m *MockUserMappingStore) Get(ctx context.Context, taskIdentity string) (*domain.UserMapping, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()

	if m.GetFn != nil {
		return m.GetFn(ctx, taskIdentity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.Mappings[taskIdentity]
	if !ok {
		return nil, store.ErrUserMappingNotFound
	}
	cp := *mapping
	return &cp, nil
}

// GetMany implements store.UserMappingStore
func (m *MockUserMappingStore) GetMany(
	ctx context.Context,
	taskIdentities []string,
) (map[string]*domain.UserMapping, error) {
	if m.GetManyFn != nil {
		return m.GetManyFn(ctx, taskIdentities)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	found := make(map[string]*domain.UserMapping)
	for _, id := range taskIdentities {
		if mapping, ok := m.Mappings[id]; ok {
			cp := *mapping
			found[id] = &cp
		}
	}
	return found, nil
}

// Upsert implements store.UserMappingStore
func (m *MockUserMappingStore) Upsert(ctx context.Context, mapping *domain.UserMapping) error {
	m.mu.Lock()
	m.UpsertCalls++
	m.mu.Unlock()

	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, mapping)
	}

	if err := mapping.Validate(); err != nil {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mapping
	m.Mappings[mapping.TaskIdentity] = &cp
	return nil
}
