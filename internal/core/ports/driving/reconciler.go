package driving

import (
	"context"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// Reconciler brings a repository's stored snapshot in line with upstream.
type Reconciler interface {
	// Reconcile runs one reconciliation for repoID if it is due.
	// On error nothing was written and the run may be retried.
	Reconcile(ctx context.Context, repoID string) (*domain.ReconcileResult, error)

	// GetState returns the stored sync state of a repository.
	GetState(ctx context.Context, repoID string) (*domain.RepoSyncState, error)
}

// NotificationService reconciles a repository and tells its subscribers.
type NotificationService interface {
	// HandleRepo reconciles repoID and delivers the diff message to every
	// subscriber when the diff warrants one.
	HandleRepo(ctx context.Context, repoID string) (*HandleRepoResult, error)
}

// HandleRepoResult reports what HandleRepo did.
type HandleRepoResult struct {
	*domain.ReconcileResult
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

// Scheduler periodically queues reconciliation of every tracked repository
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()

	// TriggerNow enqueues a reconcile_all task outside the regular cycle
	TriggerNow(ctx context.Context) (*domain.Task, error)

	// EnqueueTracked enqueues one reconcile_repo task per tracked repository
	// and returns how many were queued
	EnqueueTracked(ctx context.Context) (int, error)

	// EnqueueRepo enqueues a reconcile_repo task for one repository
	EnqueueRepo(ctx context.Context, repoID string) (*domain.Task, error)
}
