package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

var _ driven.Registry = (*MockRegistry)(nil)

// MockRegistry is an in-memory Registry
type MockRegistry struct {
	mu     sync.RWMutex
	repos  map[string]*domain.Repository
	byURL  map[string]*domain.Repository
	users  map[string]*domain.User
	byUser map[string]*domain.User
	// repoID -> set of user IDs
	subs map[string]map[string]struct{}

	GetSubscribersFn func(repoID string) ([]string, error)
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		repos:  make(map[string]*domain.Repository),
		byURL:  make(map[string]*domain.Repository),
		users:  make(map[string]*domain.User),
		subs:   make(map[string]map[string]struct{}),
		byUser: make(map[string]*domain.User),
	}
}

// AddRepo registers a repository with a fixed ID.
func (m *MockRegistry) AddRepo(id, url string) *domain.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo := &domain.Repository{ID: id, URL: url, CreatedAt: time.Now()}
	m.repos[id] = repo
	m.byURL[url] = repo
	return repo
}

// Subscribe links handle to repoID, creating the user as needed.
func (m *MockRegistry) Subscribe(handle, repoID string) {
	user, _ := m.EnsureUser(context.Background(), handle)
	_ = m.AddSubscription(context.Background(), user.ID, repoID)
}

func (m *MockRegistry) GetRepo(ctx context.Context, repoID string) (*domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[repoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return repo, nil
}

func (m *MockRegistry) GetRepoByURL(ctx context.Context, url string) (*domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.byURL[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return repo, nil
}

func (m *MockRegistry) EnsureRepo(ctx context.Context, url string) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if repo, ok := m.byURL[url]; ok {
		return repo, nil
	}
	repo := &domain.Repository{ID: domain.GenerateID(), URL: url, CreatedAt: time.Now()}
	m.repos[repo.ID] = repo
	m.byURL[url] = repo
	return repo, nil
}

func (m *MockRegistry) EnsureUser(ctx context.Context, handle string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[handle]; ok {
		return user, nil
	}
	user := &domain.User{ID: domain.GenerateID(), Handle: handle, CreatedAt: time.Now()}
	m.users[handle] = user
	m.byUser[user.ID] = user
	return user, nil
}

func (m *MockRegistry) GetUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (m *MockRegistry) AddSubscription(ctx context.Context, userID, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[repoID]
	if !ok {
		set = make(map[string]struct{})
		m.subs[repoID] = set
	}
	if _, exists := set[userID]; exists {
		return domain.ErrAlreadyExists
	}
	set[userID] = struct{}{}
	return nil
}

func (m *MockRegistry) RemoveSubscription(ctx context.Context, userID, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.subs[repoID]
	if _, exists := set[userID]; !exists {
		return domain.ErrNotFound
	}
	delete(set, userID)
	return nil
}

func (m *MockRegistry) GetSubscribers(ctx context.Context, repoID string) ([]string, error) {
	if m.GetSubscribersFn != nil {
		return m.GetSubscribersFn(repoID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	handles := make([]string, 0, len(m.subs[repoID]))
	for userID := range m.subs[repoID] {
		handles = append(handles, m.byUser[userID].Handle)
	}
	sort.Strings(handles)
	return handles, nil
}

func (m *MockRegistry) ListUserRepos(ctx context.Context, userID string) ([]*domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Repository
	for repoID, set := range m.subs {
		if _, ok := set[userID]; ok {
			out = append(out, m.repos[repoID])
		}
	}
	sortRepos(out)
	return out, nil
}

func (m *MockRegistry) ListTrackedRepos(ctx context.Context) ([]*domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Repository
	for repoID, set := range m.subs {
		if len(set) > 0 {
			out = append(out, m.repos[repoID])
		}
	}
	sortRepos(out)
	return out, nil
}

func (m *MockRegistry) ListRepos(ctx context.Context) ([]*domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Repository, 0, len(m.repos))
	for _, repo := range m.repos {
		out = append(out, repo)
	}
	sortRepos(out)
	return out, nil
}

func sortRepos(repos []*domain.Repository) {
	sort.Slice(repos, func(i, j int) bool { return repos[i].URL < repos[j].URL })
}
