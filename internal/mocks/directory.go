package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/tasklink/internal/identity"
)

// MockDirectory implements identity.Directory for testing.
type MockDirectory struct {
	GetUserFn func(ctx context.Context, taskIdentity string) (*identity.DirectoryUser, error)

	// Users backs the default implementation.
	Users map[string]*identity.DirectoryUser

	mu    sync.Mutex
	Calls []string
}

// Ensure MockDirectory implements identity.Directory
var _ identity.Directory = (*MockDirectory)(nil)

// GetUser implements identity.Directory
func (m *MockDirectory) GetUser(ctx context.Context, taskIdentity string) (*identity.DirectoryUser, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, taskIdentity)
	m.mu.Unlock()

	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, taskIdentity)
	}
	if u, ok := m.Users[taskIdentity]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

// CallCount returns how many lookups were made.
func (m *MockDirectory) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
