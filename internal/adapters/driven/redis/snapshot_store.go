package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

const starsPrefix = keyPrefix + "stars:"

// SnapshotStore keeps each snapshot as a Redis list of encoded StarItems
// (oldest first) next to a string key holding the reconciled timestamp.
//
// Replace writes the new list under a temporary key and RENAMEs it over the
// live one inside MULTI/EXEC, so readers see the old pair or the new pair.
type SnapshotStore struct {
	client *redis.Client
}

// NewSnapshotStore creates a Redis-backed SnapshotStore
func NewSnapshotStore(client *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

func itemsKey(repoID string) string {
	return starsPrefix + repoID
}

func reconciledAtKey(repoID string) string {
	return starsPrefix + repoID + ":reconciled_at"
}

// Read returns the stored snapshot, empty when the repository was never reconciled.
func (s *SnapshotStore) Read(ctx context.Context, repoID string) (*domain.Snapshot, error) {
	var rows *redis.StringSliceCmd
	var stamp *redis.StringCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rows = pipe.LRange(ctx, itemsKey(repoID), 0, -1)
		stamp = pipe.Get(ctx, reconciledAtKey(repoID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	raw := rows.Val()
	encoded := make([][]byte, len(raw))
	for i, r := range raw {
		encoded[i] = []byte(r)
	}
	items, err := domain.DecodeStarItems(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	snap := &domain.Snapshot{Items: items}
	if v, err := stamp.Result(); err == nil {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%w: read snapshot %s: reconciled_at: %w", domain.ErrStore, repoID, err)
		}
		snap.ReconciledAt = &t
	}

	return snap, nil
}

// Replace atomically swaps in items and reconciledAt.
func (s *SnapshotStore) Replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error {
	encoded, err := domain.EncodeStarItems(items)
	if err != nil {
		return fmt.Errorf("%w: replace snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	key := itemsKey(repoID)
	tmp := key + ":tmp:" + uuid.NewString()

	values := make([]interface{}, len(encoded))
	for i, e := range encoded {
		values[i] = e
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) == 0 {
			// RENAME fails on a missing source key.
			pipe.Del(ctx, key)
		} else {
			pipe.RPush(ctx, tmp, values...)
			pipe.Rename(ctx, tmp, key)
		}
		pipe.Set(ctx, reconciledAtKey(repoID), reconciledAt.Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		s.client.Del(context.WithoutCancel(ctx), tmp)
		return fmt.Errorf("%w: replace snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	return nil
}

// Delete drops the snapshot and its timestamp.
func (s *SnapshotStore) Delete(ctx context.Context, repoID string) error {
	if err := s.client.Del(ctx, itemsKey(repoID), reconciledAtKey(repoID)).Err(); err != nil {
		return fmt.Errorf("%w: delete snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
