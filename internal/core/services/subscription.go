package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

var _ driving.SubscriptionService = (*SubscriptionService)(nil)

// SubscriptionService links subscriber handles to repositories.
type SubscriptionService struct {
	registry  driven.Registry
	snapshots driven.SnapshotStore
	logger    *slog.Logger
}

// SubscriptionServiceConfig holds dependencies for SubscriptionService.
type SubscriptionServiceConfig struct {
	Registry  driven.Registry
	Snapshots driven.SnapshotStore
	Logger    *slog.Logger
}

func NewSubscriptionService(cfg SubscriptionServiceConfig) *SubscriptionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		registry:  cfg.Registry,
		snapshots: cfg.Snapshots,
		logger:    logger,
	}
}

// Subscribe follows repoURL on behalf of handle. The repository is created
// on first subscription with an empty, never-reconciled snapshot.
func (s *SubscriptionService) Subscribe(ctx context.Context, handle, repoURL string) (domain.SubscribeResult, error) {
	if !domain.ValidHandle(handle) {
		return "", fmt.Errorf("%w: handle %q", domain.ErrInvalidInput, handle)
	}

	url, err := domain.NormalizeRepoURL(repoURL)
	if err != nil {
		return domain.SubscribeInvalidRepo, nil
	}

	user, err := s.registry.EnsureUser(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}
	repo, err := s.registry.EnsureRepo(ctx, url)
	if err != nil {
		return "", fmt.Errorf("ensure repo: %w", err)
	}

	if err := s.registry.AddSubscription(ctx, user.ID, repo.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.SubscribeAlreadySubscribed, nil
		}
		return "", fmt.Errorf("add subscription: %w", err)
	}

	s.logger.Info("subscribed", "handle", handle, "repo_id", repo.ID, "repo_url", url)
	return domain.SubscribeOK, nil
}

// Unsubscribe stops handle following repoURL. When the last subscriber
// leaves, the repository's snapshot is dropped and a later subscriber starts
// from a fresh baseline.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, handle, repoURL string) (domain.UnsubscribeResult, error) {
	url, err := domain.NormalizeRepoURL(repoURL)
	if err != nil {
		return domain.UnsubscribeNotSubscribed, nil
	}

	user, err := s.registry.GetUserByHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UnsubscribeNotSubscribed, nil
	} else if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	repo, err := s.registry.GetRepoByURL(ctx, url)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UnsubscribeNotSubscribed, nil
	} else if err != nil {
		return "", fmt.Errorf("get repo: %w", err)
	}

	if err := s.registry.RemoveSubscription(ctx, user.ID, repo.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UnsubscribeNotSubscribed, nil
		}
		return "", fmt.Errorf("remove subscription: %w", err)
	}

	s.logger.Info("unsubscribed", "handle", handle, "repo_id", repo.ID)
	s.dropIfUntracked(ctx, repo.ID)
	return domain.UnsubscribeOK, nil
}

// dropIfUntracked deletes the snapshot of a repository with no subscribers.
// Failures are logged, not returned.
func (s *SubscriptionService) dropIfUntracked(ctx context.Context, repoID string) {
	subscribers, err := s.registry.GetSubscribers(ctx, repoID)
	if err != nil {
		s.logger.Warn("failed to count subscribers", "repo_id", repoID, "error", err)
		return
	}
	if len(subscribers) > 0 {
		return
	}
	if err := s.snapshots.Delete(ctx, repoID); err != nil {
		s.logger.Warn("failed to drop snapshot", "repo_id", repoID, "error", err)
		return
	}
	s.logger.Info("dropped snapshot of untracked repository", "repo_id", repoID)
}

// ListUserRepos returns the repositories handle follows.
func (s *SubscriptionService) ListUserRepos(ctx context.Context, handle string) ([]*domain.Repository, error) {
	user, err := s.registry.GetUserByHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return []*domain.Repository{}, nil
	} else if err != nil {
		return nil, err
	}

	repos, err := s.registry.ListUserRepos(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if repos == nil {
		repos = []*domain.Repository{}
	}
	return repos, nil
}

// ListRepos summarises every known repository.
func (s *SubscriptionService) ListRepos(ctx context.Context) ([]*domain.RepoStateSummary, error) {
	repos, err := s.registry.ListRepos(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.RepoStateSummary, 0, len(repos))
	for _, repo := range repos {
		snap, err := s.snapshots.Read(ctx, repo.ID)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", repo.ID, err)
		}
		subscribers, err := s.registry.GetSubscribers(ctx, repo.ID)
		if err != nil {
			return nil, fmt.Errorf("get subscribers %s: %w", repo.ID, err)
		}
		summaries = append(summaries, &domain.RepoStateSummary{
			RepoID:           repo.ID,
			RepoURL:          repo.URL,
			LastReconciledAt: snap.ReconciledAt,
			Stargazers:       len(snap.Items),
			Subscribers:      len(subscribers),
		})
	}
	return summaries, nil
}
