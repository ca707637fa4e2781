package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Registry = (*Registry)(nil)

// Registry implements driven.Registry on the users, repositories and
// subscriptions tables.
type Registry struct {
	db *DB
}

// NewRegistry creates a new Registry
func NewRegistry(db *DB) *Registry {
	return &Registry{db: db}
}

const repoColumns = `id, url, created_at`

func scanRepo(row interface{ Scan(...any) error }) (*domain.Repository, error) {
	var repo domain.Repository
	if err := row.Scan(&repo.ID, &repo.URL, &repo.CreatedAt); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (r *Registry) getRepo(ctx context.Context, where string, arg any) (*domain.Repository, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repositories WHERE `+where+` = $1`, arg)
	repo, err := scanRepo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query repository: %w", err)
	}
	return repo, nil
}

// GetRepo retrieves a repository by ID
func (r *Registry) GetRepo(ctx context.Context, repoID string) (*domain.Repository, error) {
	return r.getRepo(ctx, "id", repoID)
}

// GetRepoByURL retrieves a repository by its normalized URL
func (r *Registry) GetRepoByURL(ctx context.Context, url string) (*domain.Repository, error) {
	return r.getRepo(ctx, "url", url)
}

// EnsureRepo inserts the repository unless a row for url exists, then
// returns the stored row. Concurrent callers converge on one ID.
func (r *Registry) EnsureRepo(ctx context.Context, url string) (*domain.Repository, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO repositories (id, url, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING `+repoColumns,
		domain.GenerateID(), url, time.Now(),
	)
	repo, err := scanRepo(row)
	if err != nil {
		return nil, fmt.Errorf("ensure repository: %w", err)
	}
	return repo, nil
}

// EnsureUser inserts the user unless a row for handle exists, then returns it.
func (r *Registry) EnsureUser(ctx context.Context, handle string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, handle, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (handle) DO UPDATE SET handle = EXCLUDED.handle
		RETURNING id, handle, created_at
	`, domain.GenerateID(), handle, time.Now()).Scan(&user.ID, &user.Handle, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return &user, nil
}

// GetUserByHandle retrieves a user by handle
func (r *Registry) GetUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, handle, created_at FROM users WHERE handle = $1
	`, handle).Scan(&user.ID, &user.Handle, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// AddSubscription links a user to a repository
func (r *Registry) AddSubscription(ctx context.Context, userID, repoID string) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, repo_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, repo_id) DO NOTHING
	`, userID, repoID, time.Now())
	if err != nil {
		if isPQCode(err, codeForeignKeyViolation) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// RemoveSubscription unlinks a user from a repository
func (r *Registry) RemoveSubscription(ctx context.Context, userID, repoID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE user_id = $1 AND repo_id = $2
	`, userID, repoID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSubscribers returns the handles subscribed to a repository, sorted
func (r *Registry) GetSubscribers(ctx context.Context, repoID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.handle
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.repo_id = $1
		ORDER BY u.handle
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	handles := []string{}
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		handles = append(handles, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return handles, nil
}

func (r *Registry) listRepos(ctx context.Context, query string, args ...any) ([]*domain.Repository, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	repos := []*domain.Repository{}
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return repos, nil
}

// ListUserRepos returns the repositories a user is subscribed to
func (r *Registry) ListUserRepos(ctx context.Context, userID string) ([]*domain.Repository, error) {
	return r.listRepos(ctx, `
		SELECT r.id, r.url, r.created_at
		FROM repositories r
		JOIN subscriptions s ON s.repo_id = r.id
		WHERE s.user_id = $1
		ORDER BY r.url
	`, userID)
}

// ListTrackedRepos returns repositories with at least one subscriber
func (r *Registry) ListTrackedRepos(ctx context.Context) ([]*domain.Repository, error) {
	return r.listRepos(ctx, `
		SELECT r.id, r.url, r.created_at
		FROM repositories r
		WHERE EXISTS (SELECT 1 FROM subscriptions s WHERE s.repo_id = r.id)
		ORDER BY r.url
	`)
}

// ListRepos returns every known repository
func (r *Registry) ListRepos(ctx context.Context) ([]*domain.Repository, error) {
	return r.listRepos(ctx, `SELECT `+repoColumns+` FROM repositories ORDER BY url`)
}
