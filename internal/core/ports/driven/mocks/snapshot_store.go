package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

var _ driven.SnapshotStore = (*MockSnapshotStore)(nil)

// MockSnapshotStore keeps snapshots in memory. Stored slices are copied
// on the way in and out so tests cannot alias them.
type MockSnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot

	ReadFn    func(repoID string) (*domain.Snapshot, error)
	ReplaceFn func(repoID string, items []domain.StarItem, reconciledAt time.Time) error
	DeleteFn  func(repoID string) error

	ReplaceCalls int
}

func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{
		snapshots: make(map[string]*domain.Snapshot),
	}
}

func (m *MockSnapshotStore) Read(ctx context.Context, repoID string) (*domain.Snapshot, error) {
	if m.ReadFn != nil {
		return m.ReadFn(repoID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[repoID]
	if !ok {
		return &domain.Snapshot{Items: []domain.StarItem{}}, nil
	}
	return copySnapshot(snap), nil
}

func (m *MockSnapshotStore) Replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error {
	m.mu.Lock()
	m.ReplaceCalls++
	m.mu.Unlock()

	if m.ReplaceFn != nil {
		if err := m.ReplaceFn(repoID, items, reconciledAt); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	at := reconciledAt
	m.snapshots[repoID] = &domain.Snapshot{
		Items:        append([]domain.StarItem{}, items...),
		ReconciledAt: &at,
	}
	return nil
}

func (m *MockSnapshotStore) Delete(ctx context.Context, repoID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(repoID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, repoID)
	return nil
}

func (m *MockSnapshotStore) Ping(ctx context.Context) error {
	return nil
}

// Seed stores a snapshot directly, bypassing ReplaceFn and the call counter.
func (m *MockSnapshotStore) Seed(repoID string, items []domain.StarItem, reconciledAt *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[repoID] = copySnapshot(&domain.Snapshot{Items: items, ReconciledAt: reconciledAt})
}

func copySnapshot(s *domain.Snapshot) *domain.Snapshot {
	out := &domain.Snapshot{Items: append([]domain.StarItem{}, s.Items...)}
	if s.ReconciledAt != nil {
		at := *s.ReconciledAt
		out.ReconciledAt = &at
	}
	return out
}
