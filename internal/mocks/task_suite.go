package mocks

import (
	"context"
	"sync"
)

// MockTaskSuite stands in for the task-suite client's description calls.
// Descriptions backs the default implementation; unknown tasks read as
// empty.
type MockTaskSuite struct {
	GetTaskDescriptionFn    func(ctx context.Context, taskID string) (string, error)
	UpdateTaskDescriptionFn func(ctx context.Context, taskID, description string) error

	mu           sync.Mutex
	Descriptions map[string]string
	UpdateCalls  int
}

// NewMockTaskSuite creates a suite with no tasks.
func NewMockTaskSuite() *MockTaskSuite {
	return &MockTaskSuite{Descriptions: make(map[string]string)}
}

// GetTaskDescription returns the stored description.
func (m *MockTaskSuite) GetTaskDescription(ctx context.Context, taskID string) (string, error) {
	if m.GetTaskDescriptionFn != nil {
		return m.GetTaskDescriptionFn(ctx, taskID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Descriptions[taskID], nil
}

// UpdateTaskDescription stores the new description.
func (m *MockTaskSuite) UpdateTaskDescription(ctx context.Context, taskID, description string) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()

	if m.UpdateTaskDescriptionFn != nil {
		return m.UpdateTaskDescriptionFn(ctx, taskID, description)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Descriptions[taskID] = description
	return nil
}

// Description returns the current description of a task.
func (m *MockTaskSuite) Description(taskID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Descriptions[taskID]
}
