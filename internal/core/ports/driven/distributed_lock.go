package driven

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotHeld is returned by Extend when the lock expired or another
// instance owns it.
var ErrLockNotHeld = errors.New("lock not held by this instance")

// DistributedLock coordinates work across starwatch instances.
// The scheduler holds "scheduler" while enqueueing a cycle and the
// reconciler holds "reconcile:<repo_id>" for the duration of one run.
type DistributedLock interface {
	// Acquire attempts to take a named lock with the given TTL.
	// Returns false when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops a named lock. Safe to call on an expired or foreign lock.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a lock this instance holds.
	// Returns ErrLockNotHeld when the lock was lost.
	// PostgreSQL advisory locks have no TTL and treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}

// ReconcileLockName returns the lock guarding runs for one repository.
func ReconcileLockName(repoID string) string {
	return "reconcile:" + repoID
}
