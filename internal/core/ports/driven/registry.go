package driven

import (
	"context"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// Registry stores users, repositories and the subscriptions between them (PostgreSQL).
type Registry interface {
	// GetRepo returns a repository by ID, or domain.ErrNotFound.
	GetRepo(ctx context.Context, repoID string) (*domain.Repository, error)

	// GetRepoByURL returns a repository by normalized URL, or domain.ErrNotFound.
	GetRepoByURL(ctx context.Context, url string) (*domain.Repository, error)

	// EnsureRepo returns the repository for url, creating it if needed.
	EnsureRepo(ctx context.Context, url string) (*domain.Repository, error)

	// EnsureUser returns the user for handle, creating it if needed.
	EnsureUser(ctx context.Context, handle string) (*domain.User, error)

	// GetUserByHandle returns a user, or domain.ErrNotFound.
	GetUserByHandle(ctx context.Context, handle string) (*domain.User, error)

	// AddSubscription links a user to a repository.
	// Returns domain.ErrAlreadyExists if the link exists.
	AddSubscription(ctx context.Context, userID, repoID string) error

	// RemoveSubscription unlinks a user from a repository.
	// Returns domain.ErrNotFound if there was no link.
	RemoveSubscription(ctx context.Context, userID, repoID string) error

	// GetSubscribers returns the handles subscribed to a repository.
	GetSubscribers(ctx context.Context, repoID string) ([]string, error)

	// ListUserRepos returns the repositories a user is subscribed to.
	ListUserRepos(ctx context.Context, userID string) ([]*domain.Repository, error)

	// ListTrackedRepos returns repositories with at least one subscriber.
	ListTrackedRepos(ctx context.Context) ([]*domain.Repository, error)

	// ListRepos returns every known repository.
	ListRepos(ctx context.Context) ([]*domain.Repository, error)
}
