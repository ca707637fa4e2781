package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven/mocks"
)

const testRepoID = "repo-1"

var baseTime = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// star returns loginN starred N minutes after baseTime
func star(n int) domain.StarItem {
	return domain.StarItem{
		Login:     fmt.Sprintf("login%d", n),
		StarredAt: baseTime.Add(time.Duration(n) * time.Minute),
	}
}

func stars(ns ...int) []domain.StarItem {
	out := make([]domain.StarItem, len(ns))
	for i, n := range ns {
		out[i] = star(n)
	}
	return out
}

type reconcilerFixture struct {
	reconciler *Reconciler
	source     *mocks.MockStargazerSource
	snapshots  *mocks.MockSnapshotStore
	registry   *mocks.MockRegistry
	lock       *mocks.MockDistributedLock
	clock      *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newReconcilerFixture(t *testing.T, pageSize int) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		source:    mocks.NewMockStargazerSource(),
		snapshots: mocks.NewMockSnapshotStore(),
		registry:  mocks.NewMockRegistry(),
		lock:      mocks.NewMockDistributedLock(),
		clock:     &testClock{now: baseTime.Add(24 * time.Hour)},
	}
	f.registry.AddRepo(testRepoID, "https://github.com/octo/stars")
	f.registry.Subscribe("tg:1", testRepoID)

	f.reconciler = NewReconciler(ReconcilerConfig{
		Source:      f.source,
		Snapshots:   f.snapshots,
		Registry:    f.registry,
		Lock:        f.lock,
		PageSize:    pageSize,
		MinInterval: 10 * time.Minute,
		Now:         f.clock.Now,
	})
	return f
}

// seed stores items as last reconciled long enough ago to be due
func (f *reconcilerFixture) seed(items []domain.StarItem) {
	last := f.clock.Now().Add(-time.Hour)
	f.snapshots.Seed(testRepoID, items, &last)
}

func (f *reconcilerFixture) stored(t *testing.T) *domain.Snapshot {
	t.Helper()
	snap, err := f.snapshots.Read(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func logins(items []domain.StarItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Login
	}
	return out
}

func TestNewReconciler_Defaults(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{})

	if r.logger == nil {
		t.Error("expected non-nil logger")
	}
	if r.pageSize != DefaultPageSize {
		t.Errorf("expected page size %d, got %d", DefaultPageSize, r.pageSize)
	}
	if r.minInterval != DefaultMinInterval {
		t.Errorf("expected min interval %v, got %v", DefaultMinInterval, r.minInterval)
	}
	if r.callTimeout != DefaultCallTimeout {
		t.Errorf("expected call timeout %v, got %v", DefaultCallTimeout, r.callTimeout)
	}

	r = NewReconciler(ReconcilerConfig{MinInterval: -1})
	if r.minInterval != 0 {
		t.Errorf("expected negative interval to disable throttle, got %v", r.minInterval)
	}
}

func TestReconcile_FirstSync(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.source.SetItems(stars(1, 2, 3))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.IsFirstSync {
		t.Error("expected first sync")
	}
	if result.NeedsNotification() {
		t.Error("first sync must not notify")
	}
	if !reflect.DeepEqual(result.Added, []string{"login1", "login2", "login3"}) {
		t.Errorf("unexpected added %v", result.Added)
	}
	if result.PagesFetched != 2 {
		t.Errorf("expected 2 pages, got %d", result.PagesFetched)
	}
	if !reflect.DeepEqual(result.Subscribers, []string{"tg:1"}) {
		t.Errorf("unexpected subscribers %v", result.Subscribers)
	}

	snap := f.stored(t)
	if !reflect.DeepEqual(logins(snap.Items), []string{"login1", "login2", "login3"}) {
		t.Errorf("unexpected snapshot %v", logins(snap.Items))
	}
	if snap.ReconciledAt == nil || !snap.ReconciledAt.Equal(f.clock.Now()) {
		t.Errorf("expected reconciled at %v, got %v", f.clock.Now(), snap.ReconciledAt)
	}
}

// Old [l1,l2], size 2, upstream adds l3 on a new page. Page 1 still has to
// be read because page 2 starts past the end of the old snapshot.
func TestReconcile_NewPageAppended(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1, 2))
	f.source.SetItems(stars(1, 2, 3))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.IsFirstSync {
		t.Error("expected not first sync")
	}
	if !reflect.DeepEqual(result.Added, []string{"login3"}) {
		t.Errorf("expected added [login3], got %v", result.Added)
	}
	if len(result.Removed) != 0 {
		t.Errorf("expected nothing removed, got %v", result.Removed)
	}
	if !reflect.DeepEqual(f.source.PageCalls, []int{2, 1}) {
		t.Errorf("expected pages [2 1], got %v", f.source.PageCalls)
	}
	if !result.NeedsNotification() {
		t.Error("expected notification")
	}
}

// Old [l1..l6], size 4. l2 unstarred, so page 2 now starts with l6 where the
// snapshot has l5: the boundary check fails and the scan reaches page 1.
func TestReconcile_ShiftedBoundaryRescans(t *testing.T) {
	f := newReconcilerFixture(t, 4)
	f.seed(stars(1, 2, 3, 4, 5, 6))
	f.source.SetItems(stars(1, 3, 4, 5, 6))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(result.Removed, []string{"login2"}) {
		t.Errorf("expected removed [login2], got %v", result.Removed)
	}
	if len(result.Added) != 0 {
		t.Errorf("expected nothing added, got %v", result.Added)
	}
	if !reflect.DeepEqual(f.source.PageCalls, []int{2, 1}) {
		t.Errorf("expected pages [2 1], got %v", f.source.PageCalls)
	}
	if got := logins(f.stored(t).Items); !reflect.DeepEqual(got, logins(stars(1, 3, 4, 5, 6))) {
		t.Errorf("unexpected snapshot %v", got)
	}
}

// Appending to a partially filled last page only needs that page.
func TestReconcile_EarlyTermination(t *testing.T) {
	f := newReconcilerFixture(t, 3)
	f.seed(stars(1, 2, 3, 4, 5, 6, 7))
	f.source.SetItems(stars(1, 2, 3, 4, 5, 6, 7, 8))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(f.source.PageCalls, []int{3}) {
		t.Errorf("expected only page 3, got %v", f.source.PageCalls)
	}
	if !reflect.DeepEqual(result.Added, []string{"login8"}) {
		t.Errorf("expected added [login8], got %v", result.Added)
	}
	if got := len(f.stored(t).Items); got != 8 {
		t.Errorf("expected 8 stored items, got %d", got)
	}
}

func TestReconcile_TotalCountZero(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1, 2))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.source.PageCalls) != 0 {
		t.Errorf("expected no page calls, got %v", f.source.PageCalls)
	}
	if !reflect.DeepEqual(result.Removed, []string{"login1", "login2"}) {
		t.Errorf("unexpected removed %v", result.Removed)
	}
	if len(f.stored(t).Items) != 0 {
		t.Error("expected empty snapshot")
	}
}

func TestReconcile_NotDue(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	recent := f.clock.Now().Add(-5 * time.Minute)
	f.snapshots.Seed(testRepoID, stars(1), &recent)
	f.source.SetItems(stars(1, 2))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Skipped {
		t.Error("expected skipped result")
	}
	if result.IsFirstSync {
		t.Error("skipped run of a reconciled repo is not a first sync")
	}
	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("expected empty diff, got %+v", result.DiffResult)
	}
	if calls := f.source.Calls(); calls != 0 {
		t.Errorf("expected zero upstream calls, got %d", calls)
	}
	if f.snapshots.ReplaceCalls != 0 {
		t.Errorf("expected no writes, got %d", f.snapshots.ReplaceCalls)
	}
	if snap := f.stored(t); !snap.ReconciledAt.Equal(recent) {
		t.Errorf("reconciled at changed to %v", snap.ReconciledAt)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1, 2))
	f.source.SetItems(stars(1, 2, 3, 4, 5))

	if _, err := f.reconciler.Reconcile(context.Background(), testRepoID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := f.stored(t)

	f.clock.Advance(time.Hour)
	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("expected empty diff, got %+v", result.DiffResult)
	}
	if !reflect.DeepEqual(logins(f.stored(t).Items), logins(first.Items)) {
		t.Error("snapshot changed on unchanged upstream")
	}
}

func TestReconcile_UpstreamFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mocks.MockStargazerSource)
	}{
		{
			name: "total count fails",
			setup: func(s *mocks.MockStargazerSource) {
				s.TotalCountFn = func(domain.RepoRef) (int, error) {
					return 0, errors.New("connection refused")
				}
			},
		},
		{
			name: "second page fails",
			setup: func(s *mocks.MockStargazerSource) {
				s.PageFn = func(_ domain.RepoRef, page, size int) ([]domain.StarItem, error) {
					if page == 1 {
						return nil, fmt.Errorf("%w: status 502", domain.ErrUpstream)
					}
					return stars(5), nil
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture(t, 2)
			f.seed(stars(1, 2, 3))
			before := f.stored(t)
			f.source.SetItems(stars(1, 3, 5))
			tt.setup(f.source)

			_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
			if !errors.Is(err, domain.ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}

			after := f.stored(t)
			if f.snapshots.ReplaceCalls != 0 {
				t.Error("expected no write")
			}
			if !reflect.DeepEqual(after, before) {
				t.Errorf("state changed: before %+v after %+v", before, after)
			}
		})
	}
}

func TestReconcile_StoreFailure(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1))
	f.source.SetItems(stars(1, 2))
	f.snapshots.ReplaceFn = func(string, []domain.StarItem, time.Time) error {
		return errors.New("disk full")
	}

	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if got := logins(f.stored(t).Items); !reflect.DeepEqual(got, []string{"login1"}) {
		t.Errorf("snapshot changed to %v", got)
	}
	if f.lock.IsHeld(driven.ReconcileLockName(testRepoID)) {
		t.Error("lock must be released after failure")
	}
}

func TestReconcile_CancelledContextDoesNotWrite(t *testing.T) {
	f := newReconcilerFixture(t, 1)
	f.seed(stars(1))
	f.source.SetItems(stars(2, 3, 4))

	ctx, cancel := context.WithCancel(context.Background())
	f.source.PageFn = func(_ domain.RepoRef, page, size int) ([]domain.StarItem, error) {
		cancel()
		return stars(page + 1), nil
	}

	_, err := f.reconciler.Reconcile(ctx, testRepoID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.source.PageCalls) != 1 {
		t.Errorf("expected scan to stop after one page, got %v", f.source.PageCalls)
	}
	if f.snapshots.ReplaceCalls != 0 {
		t.Error("expected no write")
	}
}

func TestReconcile_CallTimeout(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.reconciler.callTimeout = 10 * time.Millisecond

	var deadlineSet bool
	f.reconciler.source = &deadlineSource{MockStargazerSource: f.source, sawDeadline: &deadlineSet}

	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !deadlineSet {
		t.Error("expected upstream call to carry a deadline")
	}
}

type deadlineSource struct {
	*mocks.MockStargazerSource
	sawDeadline *bool
}

func (d *deadlineSource) TotalCount(ctx context.Context, repo domain.RepoRef) (int, error) {
	_, ok := ctx.Deadline()
	*d.sawDeadline = ok
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestReconcile_EmptyPageDoesNotAlign(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1, 2, 3, 4))

	// Count says 6 but the last page came back empty.
	count := 6
	f.source.Count = &count
	f.source.SetItems(stars(1, 2, 3, 4))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Page 3 is empty so it cannot stop the scan; page 2 aligns at position 2.
	if !reflect.DeepEqual(f.source.PageCalls, []int{3, 2}) {
		t.Errorf("expected pages [3 2], got %v", f.source.PageCalls)
	}
	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("expected empty diff, got %+v", result.DiffResult)
	}
}

func TestReconcile_DuplicateLoginsCollapsed(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1))

	f.source.PageFn = func(_ domain.RepoRef, page, size int) ([]domain.StarItem, error) {
		switch page {
		case 1:
			return stars(1, 2), nil
		case 2:
			// login2 repeated across the page boundary
			return stars(2, 3), nil
		}
		return nil, nil
	}
	count := 4
	f.source.Count = &count

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := logins(f.stored(t).Items)
	if !reflect.DeepEqual(got, []string{"login1", "login2", "login3"}) {
		t.Errorf("expected duplicates collapsed, got %v", got)
	}
	if !reflect.DeepEqual(result.Added, []string{"login2", "login3"}) {
		t.Errorf("unexpected added %v", result.Added)
	}
}

func TestReconcile_LockHeldElsewhere(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.lock.SetLockHeld(driven.ReconcileLockName(testRepoID), time.Minute)

	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrReconcileInProgress) {
		t.Fatalf("expected ErrReconcileInProgress, got %v", err)
	}
	if f.source.Calls() != 0 {
		t.Error("expected no upstream calls")
	}
}

func TestReconcile_ExtendsLockEveryPage(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.source.SetItems(stars(1, 2, 3, 4, 5))

	result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PagesFetched != 3 {
		t.Fatalf("expected 3 pages, got %d", result.PagesFetched)
	}
	// once per page and once before the write
	if got := f.lock.Extended(); got != 4 {
		t.Errorf("expected 4 lock extensions, got %d", got)
	}
}

func TestReconcile_LockLostMidRunDoesNotWrite(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.seed(stars(1, 2))
	before := f.stored(t)

	count := 3
	f.source.Count = &count
	f.source.PageFn = func(_ domain.RepoRef, page, _ int) ([]domain.StarItem, error) {
		f.lock.Expire(driven.ReconcileLockName(testRepoID))
		if page == 2 {
			return stars(3), nil
		}
		return stars(1, 2), nil
	}

	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrReconcileInProgress) {
		t.Fatalf("expected ErrReconcileInProgress, got %v", err)
	}

	after := f.stored(t)
	if !reflect.DeepEqual(logins(after.Items), logins(before.Items)) {
		t.Errorf("snapshot changed: %v", logins(after.Items))
	}
	if !after.ReconciledAt.Equal(*before.ReconciledAt) {
		t.Errorf("reconciled_at changed to %v", after.ReconciledAt)
	}
}

func TestReconcile_ExtendFailureIsStoreError(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.source.SetItems(stars(1, 2))
	f.lock.ExtendFn = func(string, time.Duration) error {
		return errors.New("connection reset")
	}

	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if f.stored(t).ReconciledAt != nil {
		t.Error("expected nothing written")
	}
}

func TestReconcile_SerializedPerRepo(t *testing.T) {
	f := newReconcilerFixture(t, 2)
	f.reconciler.lock = nil
	f.source.SetItems(stars(1, 2))

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.source.TotalCountFn = func(domain.RepoRef) (int, error) {
		close(entered)
		<-unblock
		return 2, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
		done <- err
	}()

	<-entered
	_, err := f.reconciler.Reconcile(context.Background(), testRepoID)
	if !errors.Is(err, domain.ErrReconcileInProgress) {
		t.Errorf("expected ErrReconcileInProgress, got %v", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestReconcile_UnknownRepo(t *testing.T) {
	f := newReconcilerFixture(t, 2)

	_, err := f.reconciler.Reconcile(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetState(t *testing.T) {
	f := newReconcilerFixture(t, 2)

	state, err := f.reconciler.GetState(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastReconciledAt != nil || len(state.Snapshot) != 0 {
		t.Error("expected empty state before first run")
	}

	f.source.SetItems(stars(1))
	if _, err := f.reconciler.Reconcile(context.Background(), testRepoID); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	state, err = f.reconciler.GetState(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastReconciledAt == nil || len(state.Snapshot) != 1 {
		t.Errorf("unexpected state %+v", state)
	}
}

// The backward scan must produce the same snapshot and diff as reading
// every page, for histories where stars are appended and removed anywhere.
func TestReconcile_MatchesFullRescan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 300; iter++ {
		pageSize := 1 + rng.Intn(5)
		f := newReconcilerFixture(t, pageSize)

		next := 0
		var upstream []domain.StarItem
		for i := rng.Intn(15); i > 0; i-- {
			next++
			upstream = append(upstream, star(next))
		}

		for round := 0; round < 4; round++ {
			old := f.stored(t).Items

			// Remove a few anywhere, then append a few at the end.
			for i := rng.Intn(3); i > 0 && len(upstream) > 0; i-- {
				idx := rng.Intn(len(upstream))
				upstream = append(upstream[:idx:idx], upstream[idx+1:]...)
			}
			for i := rng.Intn(4); i > 0; i-- {
				next++
				upstream = append(upstream, star(next))
			}
			f.source.SetItems(upstream)

			result, err := f.reconciler.Reconcile(context.Background(), testRepoID)
			if err != nil {
				t.Fatalf("iter %d round %d: %v", iter, round, err)
			}

			got := f.stored(t).Items
			if !reflect.DeepEqual(logins(got), logins(upstream)) {
				t.Fatalf("iter %d round %d size %d: snapshot %v, want %v",
					iter, round, pageSize, logins(got), logins(upstream))
			}

			wantAdded, wantRemoved := domain.ComputeDiff(old, upstream)
			if !reflect.DeepEqual(result.Added, wantAdded) || !reflect.DeepEqual(result.Removed, wantRemoved) {
				t.Fatalf("iter %d round %d: diff %+v, want added %v removed %v",
					iter, round, result.DiffResult, wantAdded, wantRemoved)
			}

			f.clock.Advance(time.Hour)
		}
	}
}
