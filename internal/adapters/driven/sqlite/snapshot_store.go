// Package sqlite provides an embedded snapshot store for single-node
// deployments that run without Redis.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    repo_id TEXT PRIMARY KEY,
    reconciled_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_items (
    repo_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item TEXT NOT NULL,
    PRIMARY KEY (repo_id, position)
);
`

// SnapshotStore keeps snapshots in a SQLite file. Items are rows ordered by
// position; Replace rewrites them and the timestamp in one transaction.
type SnapshotStore struct {
	db   *sql.DB
	path string
}

// NewSnapshotStore opens (or creates) the database at path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SnapshotStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Read returns the stored snapshot, empty when the repository was never reconciled.
func (s *SnapshotStore) Read(ctx context.Context, repoID string) (*domain.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	snap := &domain.Snapshot{Items: []domain.StarItem{}}

	var stamp string
	err = tx.QueryRowContext(ctx, `SELECT reconciled_at FROM snapshots WHERE repo_id = ?`, repoID).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	reconciledAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: reconciled_at: %w", domain.ErrStore, repoID, err)
	}
	snap.ReconciledAt = &reconciledAt

	rows, err := tx.QueryContext(ctx, `
		SELECT item FROM snapshot_items WHERE repo_id = ? ORDER BY position
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
		}
		item, err := domain.DecodeStarItem([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
		}
		snap.Items = append(snap.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read snapshot %s: %w", domain.ErrStore, repoID, err)
	}

	return snap, nil
}

// Replace rewrites the snapshot in one transaction.
func (s *SnapshotStore) Replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error {
	if err := s.replace(ctx, repoID, items, reconciledAt); err != nil {
		return fmt.Errorf("%w: replace snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	return nil
}

func (s *SnapshotStore) replace(ctx context.Context, repoID string, items []domain.StarItem, reconciledAt time.Time) error {
	encoded, err := domain.EncodeStarItems(items)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_items WHERE repo_id = ?`, repoID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_items (repo_id, position, item) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range encoded {
		if _, err := stmt.ExecContext(ctx, repoID, i, string(row)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (repo_id, reconciled_at) VALUES (?, ?)
		ON CONFLICT (repo_id) DO UPDATE SET reconciled_at = excluded.reconciled_at
	`, repoID, reconciledAt.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Delete drops the snapshot of a repository.
func (s *SnapshotStore) Delete(ctx context.Context, repoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: delete snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, q := range []string{
		`DELETE FROM snapshot_items WHERE repo_id = ?`,
		`DELETE FROM snapshots WHERE repo_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, repoID); err != nil {
			return fmt.Errorf("%w: delete snapshot %s: %w", domain.ErrStore, repoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: delete snapshot %s: %w", domain.ErrStore, repoID, err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
