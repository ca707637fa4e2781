package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps one row per repository: the item list as a JSONB
// array and the reconciled timestamp. A single-row upsert replaces both.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// encodeItems renders items as a JSON array in list order.
func encodeItems(items []domain.StarItem) ([]byte, error) {
	rows, err := domain.EncodeStarItems(items)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(rows, []byte{','}))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func decodeItems(data []byte) ([]domain.StarItem, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot items: %w", err)
	}
	rows := make([][]byte, len(raw))
	for i, r := range raw {
		rows[i] = r
	}
	return domain.DecodeStarItems(rows)
}

// Read returns the stored snapshot, empty when the repository was never reconciled.
func (s *SnapshotStore) Read(ctx context.Context, repoID string) (*domain.Snapshot, error) {
	var data []byte
	var reconciledAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT items, reconciled_at FROM snapshots WHERE repo_id = $1
	`, repoID).Scan(&data, &reconciledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Snapshot{Items: []domain.StarItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	return &domain.Snapshot{Items: items, ReconciledAt: &reconciledAt}, nil
}

// Replace upserts the snapshot row in one transaction.
func (s *SnapshotStore) Replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error {
	data, err := encodeItems(items)
	if err != nil {
		return fmt.Errorf("%w: replace snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (repo_id, items, reconciled_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (repo_id) DO UPDATE SET
				items = EXCLUDED.items,
				reconciled_at = EXCLUDED.reconciled_at
		`, repoID, data, reconciledAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: replace snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	return nil
}

// Delete drops the snapshot row
func (s *SnapshotStore) Delete(ctx context.Context, repoID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE repo_id = $1`, repoID); err != nil {
		return fmt.Errorf("%w: delete snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	return nil
}

// Ping checks if the database is reachable
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
