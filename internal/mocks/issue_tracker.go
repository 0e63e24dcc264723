package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/tasklink/internal/platform/gitlab"
)

// IssueUpdate records one UpdateIssue call.
type IssueUpdate struct {
	Project string
	IssueID int64
	Changes gitlab.IssueChanges
}

// CompletionSync records one SyncCompletion call.
type CompletionSync struct {
	Project   string
	IssueID   int64
	Completed bool
}

// MockIssueTracker stands in for the glab client. By default every create
// succeeds with increasing issue numbers.
type MockIssueTracker struct {
	CreateIssueFn    func(ctx context.Context, req gitlab.IssueRequest) (gitlab.CreateResult, error)
	UpdateIssueFn    func(ctx context.Context, project string, issueID int64, changes gitlab.IssueChanges) error
	SyncCompletionFn func(ctx context.Context, project string, issueID int64, completed bool) error

	BaseURL string

	mu          sync.Mutex
	nextIssueID int64
	Created     []gitlab.IssueRequest
	Updates     []IssueUpdate
	Completions []CompletionSync
}

// CreateIssue records the request and returns the configured result.
func (m *MockIssueTracker) CreateIssue(ctx context.Context, req gitlab.IssueRequest) (gitlab.CreateResult, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.nextIssueID++
	id := m.nextIssueID
	m.mu.Unlock()

	if m.CreateIssueFn != nil {
		return m.CreateIssueFn(ctx, req)
	}

	base := m.BaseURL
	if base == "" {
		base = "https://gitlab.example.com"
	}
	return gitlab.CreateResult{
		Outcome: gitlab.OutcomeCreated,
		IssueID: id,
		URL:     gitlab.IssueURL(base, req.Project, id),
	}, nil
}

// UpdateIssue records the change set.
func (m *MockIssueTracker) UpdateIssue(ctx context.Context, project string, issueID int64, changes gitlab.IssueChanges) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, IssueUpdate{Project: project, IssueID: issueID, Changes: changes})
	m.mu.Unlock()

	if m.UpdateIssueFn != nil {
		return m.UpdateIssueFn(ctx, project, issueID, changes)
	}
	return nil
}

// SyncCompletion records the close or reopen request.
func (m *MockIssueTracker) SyncCompletion(ctx context.Context, project string, issueID int64, completed bool) error {
	m.mu.Lock()
	m.Completions = append(m.Completions, CompletionSync{Project: project, IssueID: issueID, Completed: completed})
	m.mu.Unlock()

	if m.SyncCompletionFn != nil {
		return m.SyncCompletionFn(ctx, project, issueID, completed)
	}
	return nil
}

// CreateCount returns how many creations were attempted.
func (m *MockIssueTracker) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}
