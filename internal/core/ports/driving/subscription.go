package driving

import (
	"context"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// SubscriptionService manages which handles follow which repositories
type SubscriptionService interface {
	Subscribe(ctx context.Context, handle, repoURL string) (domain.SubscribeResult, error)
	Unsubscribe(ctx context.Context, handle, repoURL string) (domain.UnsubscribeResult, error)
	ListUserRepos(ctx context.Context, handle string) ([]*domain.Repository, error)

	// ListRepos returns a state summary for every known repository
	ListRepos(ctx context.Context) ([]*domain.RepoStateSummary, error)
}
