package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// SnapshotStore persists the stargazer snapshot of each repository.
//
// Items and the reconciled timestamp live and change together: Replace must
// be atomic, so a reader sees either the previous pair or the new one.
// Errors are wrapped in domain.ErrStore.
type SnapshotStore interface {
	// Read returns the stored snapshot. A repository never reconciled has
	// empty Items and a nil ReconciledAt; that is not an error.
	Read(ctx context.Context, repoID string) (*domain.Snapshot, error)

	// Replace overwrites the snapshot and its reconciled timestamp.
	Replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error

	// Delete drops the snapshot of a repository.
	Delete(ctx context.Context, repoID string) error

	// Ping checks if the store backend is healthy.
	Ping(ctx context.Context) error
}
