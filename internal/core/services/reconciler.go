package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.Reconciler = (*Reconciler)(nil)

const (
	DefaultPageSize    = 100
	DefaultMinInterval = 10 * time.Minute
	DefaultCallTimeout = 30 * time.Second
	DefaultLockTTL     = 5 * time.Minute
)

// Reconciler keeps the stored stargazer snapshot of each repository in line
// with the upstream list.
//
// Upstream pages are read from the last one backwards. Page p covers
// positions [(p-1)*size, p*size) of the oldest-first list, so once the first
// item of a fetched page has the same starred_at as the stored item at that
// position, everything before it is assumed unchanged and the scan stops.
// Stars are appended at the end of the list, which makes the common case a
// single page.
type Reconciler struct {
	source    driven.StargazerSource
	snapshots driven.SnapshotStore
	registry  driven.Registry
	lock      driven.DistributedLock
	logger    *slog.Logger
	now       func() time.Time

	pageSize    int
	minInterval time.Duration
	callTimeout time.Duration
	lockTTL     time.Duration

	running keyedMutex
}

// ReconcilerConfig holds dependencies for the Reconciler.
type ReconcilerConfig struct {
	Source    driven.StargazerSource
	Snapshots driven.SnapshotStore
	Registry  driven.Registry
	Lock      driven.DistributedLock // Optional: serializes runs across instances
	Logger    *slog.Logger

	PageSize    int           // Items per upstream page (default: 100)
	MinInterval time.Duration // Minimum time between runs of one repo (default: 10m, negative: none)
	CallTimeout time.Duration // Deadline for each upstream call (default: 30s)
	LockTTL     time.Duration // TTL of the per-repo distributed lock (default: 5m)

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewReconciler creates a new Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	minInterval := cfg.MinInterval
	if minInterval < 0 {
		minInterval = 0
	} else if minInterval == 0 {
		minInterval = DefaultMinInterval
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	return &Reconciler{
		source:      cfg.Source,
		snapshots:   cfg.Snapshots,
		registry:    cfg.Registry,
		lock:        cfg.Lock,
		logger:      logger.With("component", "reconciler"),
		now:         now,
		pageSize:    pageSize,
		minInterval: minInterval,
		callTimeout: callTimeout,
		lockTTL:     lockTTL,
		running:     keyedMutex{held: make(map[string]struct{})},
	}
}

// Reconcile runs one reconciliation of repoID.
//
// When the repository is not due, nothing upstream is called and the result
// has Skipped set. On any error nothing is written: the stored snapshot and
// its reconciled timestamp are exactly as before the call.
func (r *Reconciler) Reconcile(ctx context.Context, repoID string) (*domain.ReconcileResult, error) {
	start := time.Now()

	repo, err := r.registry.GetRepo(ctx, repoID)
	if err != nil {
		return nil, storeErr("get repo", err)
	}
	ref, err := domain.ParseRepoURL(repo.URL)
	if err != nil {
		return nil, err
	}

	lease, err := r.acquire(ctx, repoID)
	if err != nil {
		return nil, err
	}
	defer lease.release(ctx)

	snap, err := r.snapshots.Read(ctx, repoID)
	if err != nil {
		return nil, storeErr("read snapshot", err)
	}

	logger := r.logger.With("repo_id", repoID, "repo", ref.String())
	now := r.now()

	result := &domain.ReconcileResult{
		Repo: repo,
		DiffResult: domain.DiffResult{
			IsFirstSync: snap.ReconciledAt == nil,
			Added:       []string{},
			Removed:     []string{},
		},
		Subscribers: []string{},
	}

	if !domain.IsDue(snap.ReconciledAt, now, r.minInterval) {
		result.Skipped = true
		result.Stargazers = len(snap.Items)
		result.Duration = time.Since(start)
		logger.Debug("reconcile not due", "last_reconciled_at", snap.ReconciledAt)
		return result, nil
	}

	items, pages, err := r.fetch(ctx, lease, ref, snap.Items)
	if err != nil {
		logger.Warn("reconcile aborted", "error", err)
		return nil, err
	}

	subscribers, err := r.registry.GetSubscribers(ctx, repoID)
	if err != nil {
		return nil, storeErr("get subscribers", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := lease.extend(ctx); err != nil {
		logger.Warn("reconcile aborted", "error", err)
		return nil, err
	}
	if err := r.snapshots.Replace(ctx, repoID, items, now); err != nil {
		return nil, storeErr("replace snapshot", err)
	}

	result.Added, result.Removed = domain.ComputeDiff(snap.Items, items)
	result.Subscribers = subscribers
	result.PagesFetched = pages
	result.Stargazers = len(items)
	result.Duration = time.Since(start)

	logger.Info("reconciled repository",
		"first_sync", result.IsFirstSync,
		"pages", pages,
		"stargazers", len(items),
		"added", len(result.Added),
		"removed", len(result.Removed),
		"duration", result.Duration,
	)

	return result, nil
}

// fetch builds the new snapshot from the old one and as few upstream pages
// as needed. It returns the new list and the number of pages fetched.
// The lease is renewed before every page.
func (r *Reconciler) fetch(ctx context.Context, lease *runLease, ref domain.RepoRef, old []domain.StarItem) ([]domain.StarItem, int, error) {
	total, err := r.totalCount(ctx, ref)
	if err != nil {
		return nil, 0, err
	}

	pagesNeeded := domain.PagesNeeded(total, r.pageSize)

	var window [][]domain.StarItem
	prev := 0
	fetched := 0
	for p := pagesNeeded; p >= 1; p-- {
		if err := ctx.Err(); err != nil {
			return nil, fetched, err
		}
		if err := lease.extend(ctx); err != nil {
			return nil, fetched, err
		}

		page, err := r.page(ctx, ref, p)
		if err != nil {
			return nil, fetched, err
		}
		fetched++
		window = append([][]domain.StarItem{page}, window...)

		prev = (p - 1) * r.pageSize
		if prev == 0 {
			break
		}
		// An empty page carries no boundary to align on.
		if len(page) > 0 && len(old) > prev && old[prev].StarredAt.Equal(page[0].StarredAt) {
			break
		}
	}

	items := make([]domain.StarItem, 0, prev+len(window)*r.pageSize)
	items = append(items, old[:prev]...)
	for _, page := range window {
		items = append(items, page...)
	}
	return dedupe(items), fetched, nil
}

func (r *Reconciler) totalCount(ctx context.Context, ref domain.RepoRef) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	total, err := r.source.TotalCount(callCtx, ref)
	if err != nil {
		return 0, upstreamErr(ctx, "total count", err)
	}
	return total, nil
}

func (r *Reconciler) page(ctx context.Context, ref domain.RepoRef, p int) ([]domain.StarItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	items, err := r.source.Page(callCtx, ref, p, r.pageSize)
	if err != nil {
		return nil, upstreamErr(ctx, fmt.Sprintf("page %d", p), err)
	}
	return items, nil
}

// runLease is the exclusive right to reconcile one repository: the
// in-process key plus, when configured, the distributed lock.
type runLease struct {
	r      *Reconciler
	repoID string
	name   string
	remote bool
}

// acquire takes the in-process and, when configured, the distributed lock
// for repoID.
func (r *Reconciler) acquire(ctx context.Context, repoID string) (*runLease, error) {
	if !r.running.TryLock(repoID) {
		return nil, domain.ErrReconcileInProgress
	}
	lease := &runLease{r: r, repoID: repoID, name: driven.ReconcileLockName(repoID)}
	if r.lock == nil {
		return lease, nil
	}

	acquired, err := r.lock.Acquire(ctx, lease.name, r.lockTTL)
	if err != nil {
		r.running.Unlock(repoID)
		return nil, storeErr("acquire lock", err)
	}
	if !acquired {
		r.running.Unlock(repoID)
		return nil, domain.ErrReconcileInProgress
	}
	lease.remote = true
	return lease, nil
}

// extend renews the distributed lock for another TTL. A run that lost its
// lock must not write: another instance may already own the repository.
func (l *runLease) extend(ctx context.Context) error {
	if !l.remote {
		return nil
	}
	err := l.r.lock.Extend(ctx, l.name, l.r.lockTTL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, driven.ErrLockNotHeld):
		return fmt.Errorf("%w: lock on %s lost mid-run", domain.ErrReconcileInProgress, l.repoID)
	default:
		return storeErr("extend lock", err)
	}
}

func (l *runLease) release(ctx context.Context) {
	if l.remote {
		if err := l.r.lock.Release(context.WithoutCancel(ctx), l.name); err != nil {
			l.r.logger.Warn("failed to release reconcile lock", "repo_id", l.repoID, "error", err)
		}
	}
	l.r.running.Unlock(l.repoID)
}

// GetState returns the stored sync state of a repository.
func (r *Reconciler) GetState(ctx context.Context, repoID string) (*domain.RepoSyncState, error) {
	repo, err := r.registry.GetRepo(ctx, repoID)
	if err != nil {
		return nil, storeErr("get repo", err)
	}
	snap, err := r.snapshots.Read(ctx, repoID)
	if err != nil {
		return nil, storeErr("read snapshot", err)
	}
	return domain.NewRepoSyncState(repo, snap), nil
}

// dedupe keeps the first occurrence of every login.
func dedupe(items []domain.StarItem) []domain.StarItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item.Login]; ok {
			continue
		}
		seen[item.Login] = struct{}{}
		out = append(out, item)
	}
	return out
}

func upstreamErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, domain.ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, op, err)
}

// storeErr wraps persistence failures in domain.ErrStore. Not-found and
// errors already classified pass through with context only.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStore) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}

// keyedMutex is a non-blocking per-key lock.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (k *keyedMutex) TryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}
