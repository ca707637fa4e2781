package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

func setupTestStore(t *testing.T) *SnapshotStore {
	t.Helper()

	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "data", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testItems(n int) []domain.StarItem {
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]domain.StarItem, n)
	for i := range items {
		items[i] = domain.StarItem{Login: fmt.Sprintf("user%d", i), StarredAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return items
}

func TestSnapshotStore_ReadMissing(t *testing.T) {
	store := setupTestStore(t)

	snap, err := store.Read(context.Background(), "repo-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.ReconciledAt)
}

func TestSnapshotStore_ReplaceAndRead(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	items := testItems(150)
	at := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Replace(ctx, "repo-1", items, at))

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 150)
	for i := range items {
		assert.Equal(t, items[i].Login, snap.Items[i].Login)
		assert.True(t, items[i].StarredAt.Equal(snap.Items[i].StarredAt))
	}
	require.NotNil(t, snap.ReconciledAt)
	assert.True(t, at.Equal(*snap.ReconciledAt))
}

func TestSnapshotStore_ReplaceShrinks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, "repo-1", testItems(5), time.Now()))
	require.NoError(t, store.Replace(ctx, "repo-1", testItems(2), time.Now()))

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2)
}

func TestSnapshotStore_ReplaceEmptyIsReconciled(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, "repo-1", nil, time.Now()))

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.NotNil(t, snap.ReconciledAt)
}

func TestSnapshotStore_FailedReplaceKeepsPrevious(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	at := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Replace(ctx, "repo-1", testItems(3), at))

	// An item with an empty login cannot be encoded.
	bad := append(testItems(2), domain.StarItem{})
	err := store.Replace(ctx, "repo-1", bad, time.Now())
	assert.ErrorIs(t, err, domain.ErrStore)

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 3)
	assert.True(t, at.Equal(*snap.ReconciledAt))
}

func TestSnapshotStore_RepositoriesAreIsolated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, "repo-1", testItems(3), time.Now()))
	require.NoError(t, store.Replace(ctx, "repo-2", testItems(1), time.Now()))

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 3)
}

func TestSnapshotStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, "repo-1", testItems(3), time.Now()))
	require.NoError(t, store.Delete(ctx, "repo-1"))

	snap, err := store.Read(ctx, "repo-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.ReconciledAt)
}

func TestSnapshotStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
	assert.Contains(t, store.Path(), "snapshots.db")
}
