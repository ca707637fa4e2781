package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

var _ driven.StargazerSource = (*MockStargazerSource)(nil)

// MockStargazerSource serves a fixed stargazer list, paginated like the
// upstream API. Count overrides the reported total to simulate drift.
type MockStargazerSource struct {
	mu    sync.Mutex
	items []domain.StarItem

	// Count, when non-nil, is returned by TotalCount instead of len(items)
	Count *int

	TotalCountFn func(repo domain.RepoRef) (int, error)
	PageFn       func(repo domain.RepoRef, page, size int) ([]domain.StarItem, error)

	TotalCountCalls int
	PageCalls       []int
}

func NewMockStargazerSource(items ...domain.StarItem) *MockStargazerSource {
	return &MockStargazerSource{items: items}
}

// SetItems replaces the upstream list.
func (m *MockStargazerSource) SetItems(items []domain.StarItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]domain.StarItem{}, items...)
}

func (m *MockStargazerSource) TotalCount(ctx context.Context, repo domain.RepoRef) (int, error) {
	m.mu.Lock()
	m.TotalCountCalls++
	m.mu.Unlock()

	if m.TotalCountFn != nil {
		return m.TotalCountFn(repo)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Count != nil {
		return *m.Count, nil
	}
	return len(m.items), nil
}

func (m *MockStargazerSource) Page(ctx context.Context, repo domain.RepoRef, page, size int) ([]domain.StarItem, error) {
	m.mu.Lock()
	m.PageCalls = append(m.PageCalls, page)
	m.mu.Unlock()

	if m.PageFn != nil {
		return m.PageFn(repo, page, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := (page - 1) * size
	if start >= len(m.items) {
		return []domain.StarItem{}, nil
	}
	end := start + size
	if end > len(m.items) {
		end = len(m.items)
	}
	return append([]domain.StarItem{}, m.items[start:end]...), nil
}

// Calls returns the total number of upstream calls made.
func (m *MockStargazerSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TotalCountCalls + len(m.PageCalls)
}
