package services

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

var _ driving.NotificationService = (*NotificationService)(nil)

// NotificationService reconciles a repository and tells its subscribers
// what changed.
type NotificationService struct {
	reconciler driving.Reconciler
	notifier   driven.Notifier
	logger     *slog.Logger
}

// NotificationServiceConfig holds dependencies for NotificationService.
type NotificationServiceConfig struct {
	Reconciler driving.Reconciler
	Notifier   driven.Notifier
	Logger     *slog.Logger
}

func NewNotificationService(cfg NotificationServiceConfig) *NotificationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		reconciler: cfg.Reconciler,
		notifier:   cfg.Notifier,
		logger:     logger.With("component", "notification"),
	}
}

// HandleRepo reconciles repoID and, when the diff warrants it, sends the
// change message to each subscriber. Delivery failures are logged and
// counted; they never fail the run, since the snapshot is already updated.
func (s *NotificationService) HandleRepo(ctx context.Context, repoID string) (*driving.HandleRepoResult, error) {
	result, err := s.reconciler.Reconcile(ctx, repoID)
	if err != nil {
		return nil, err
	}

	out := &driving.HandleRepoResult{ReconcileResult: result}
	if !result.NeedsNotification() {
		return out, nil
	}

	text := domain.FormatNotification(result.Repo.URL, result.Added, result.Removed)
	for _, handle := range result.Subscribers {
		if err := s.notifier.Notify(ctx, handle, text); err != nil {
			out.Failed++
			s.logger.Warn("delivery failed",
				"repo_id", repoID,
				"handle", handle,
				"error", err,
			)
			continue
		}
		out.Notified++
	}

	s.logger.Info("subscribers notified",
		"repo_id", repoID,
		"notified", out.Notified,
		"failed", out.Failed,
	)
	return out, nil
}
