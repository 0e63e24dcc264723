package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/store"
)

// MockLinkStore implements store.LinkStore for testing. Without function
// overrides it behaves like an in-memory registry keyed by task id.
type MockLinkStore struct {
	SaveFn                func(ctx context.Context, link *domain.TaskLink) error
	GetByTaskIDFn         func(ctx context.Context, taskID string) (*domain.TaskLink, error)
	GetByIssueFn          func(ctx context.Context, project string, issueID int64) (*domain.TaskLink, error)
	UpdateTaskStatusFn    func(ctx context.Context, taskID string, status domain.TaskStatus) error
	UpdateTrackerStatusFn func(ctx context.Context, project string, issueID int64, status domain.TrackerStatus) error
	DeleteFn              func(ctx context.Context, taskID string) error

	mu        sync.Mutex
	Links     map[string]*domain.TaskLink
	nextID    int64
	SaveCalls int
}

// Ensure MockLinkStore implements store.LinkStore
var _ store.LinkStore = (*MockLinkStore)(nil)

// NewMockLinkStore creates an empty in-memory registry.
func NewMockLinkStore() *MockLinkStore {
	return &MockLinkStore{Links: make(map[string]*domain.TaskLink)}
}

// Save implements store.LinkStore
func (m *MockLinkStore) Save(ctx context.Context, link *domain.TaskLink) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()

	if m.SaveFn != nil {
		return m.SaveFn(ctx, link)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.Links[link.TaskID]; ok {
		link.ID = existing.ID
	} else {
		m.nextID++
		link.ID = m.nextID
	}
	cp := *link
	m.Links[link.TaskID] = &cp
	return nil
}

// GetByTaskID implements store.LinkStore
func (m *MockLinkStore) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskLink, error) {
	if m.GetByTaskIDFn != nil {
		return m.GetByTaskIDFn(ctx, taskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.Links[taskID]
	if !ok {
		return nil, store.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

// GetByIssue implements store.LinkStore
func (m *MockLinkStore) GetByIssue(ctx context.Context, project string, issueID int64) (*domain.TaskLink, error) {
	if m.GetByIssueFn != nil {
		return m.GetByIssueFn(ctx, project, issueID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var found *domain.TaskLink
	for _, link := range m.Links {
		if link.TrackerProject == project && link.TrackerIssueID == issueID {
			if found == nil || link.ID < found.ID {
				found = link
			}
		}
	}
	if found == nil {
		return nil, store.ErrLinkNotFound
	}
	cp := *found
	return &cp, nil
}

// UpdateTaskStatus implements store.LinkStore
func (m *MockLinkStore) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	if m.UpdateTaskStatusFn != nil {
		return m.UpdateTaskStatusFn(ctx, taskID, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.Links[taskID]
	if !ok {
		return store.ErrLinkNotFound
	}
	link.TaskStatus = status
	return nil
}

// UpdateTrackerStatus implements store.LinkStore
func (m *MockLinkStore) UpdateTrackerStatus(
	ctx context.Context,
	project string,
	issueID int64,
	status domain.TrackerStatus,
) error {
	if m.UpdateTrackerStatusFn != nil {
		return m.UpdateTrackerStatusFn(ctx, project, issueID, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, link := range m.Links {
		if link.TrackerProject == project && link.TrackerIssueID == issueID {
			link.TrackerStatus = status
			updated++
		}
	}
	if updated == 0 {
		return store.ErrLinkNotFound
	}
	return nil
}

// Delete implements store.LinkStore
func (m *MockLinkStore) Delete(ctx context.Context, taskID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, taskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Links[taskID]; !ok {
		return store.ErrLinkNotFound
	}
	delete(m.Links, taskID)
	return nil
}
