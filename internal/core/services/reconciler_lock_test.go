package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redisadapter "github.com/custodia-labs/starwatch/internal/adapters/driven/redis"
	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven/mocks"
)

// Two instances share one Redis. The first stalls upstream past its lock
// TTL, the second takes over and writes, and the first must then give up
// without overwriting the newer snapshot.
func TestReconcile_ExpiredLockStopsStaleRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	snapshots := mocks.NewMockSnapshotStore()
	registry := mocks.NewMockRegistry()
	registry.AddRepo(testRepoID, "https://github.com/octo/stars")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	slow := mocks.NewMockStargazerSource()
	slow.TotalCountFn = func(domain.RepoRef) (int, error) { return 2, nil }
	slow.PageFn = func(domain.RepoRef, int, int) ([]domain.StarItem, error) {
		close(entered)
		<-unblock
		return stars(1, 2), nil
	}
	fast := mocks.NewMockStargazerSource(stars(1, 2, 3)...)

	instance := func(src driven.StargazerSource) *Reconciler {
		return NewReconciler(ReconcilerConfig{
			Source:      src,
			Snapshots:   snapshots,
			Registry:    registry,
			Lock:        redisadapter.NewLock(client),
			PageSize:    10,
			MinInterval: -1,
			LockTTL:     time.Second,
			Now:         func() time.Time { return baseTime },
		})
	}
	a, b := instance(slow), instance(fast)

	done := make(chan error, 1)
	go func() {
		_, err := a.Reconcile(context.Background(), testRepoID)
		done <- err
	}()

	<-entered
	mr.FastForward(2 * time.Second)

	result, err := b.Reconcile(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("second instance: %v", err)
	}
	if result.Stargazers != 3 {
		t.Fatalf("expected 3 stargazers, got %d", result.Stargazers)
	}

	close(unblock)
	if err := <-done; !errors.Is(err, domain.ErrReconcileInProgress) {
		t.Fatalf("expected stale run to fail with ErrReconcileInProgress, got %v", err)
	}

	snap, err := snapshots.Read(context.Background(), testRepoID)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if want := []string{"login1", "login2", "login3"}; !reflect.DeepEqual(logins(snap.Items), want) {
		t.Errorf("expected snapshot %v, got %v", want, logins(snap.Items))
	}
}
