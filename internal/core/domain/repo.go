package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Repository is a tracked GitHub repository
type Repository struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// RepoRef addresses a repository upstream
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns owner/name
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL maps https://github.com/<owner>/<name> to a RepoRef.
// A trailing slash or .git suffix is accepted.
func ParseRepoURL(raw string) (RepoRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return RepoRef{}, fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return RepoRef{}, fmt.Errorf("%w: host %q", ErrInvalidRepoURL, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: path %q", ErrInvalidRepoURL, u.Path)
	}

	return RepoRef{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}

// NormalizeRepoURL returns the canonical https://github.com/<owner>/<name> form
func NormalizeRepoURL(raw string) (string, error) {
	ref, err := ParseRepoURL(raw)
	if err != nil {
		return "", err
	}
	return "https://github.com/" + ref.String(), nil
}

// Snapshot is the persisted stargazer list of one repository together with
// the instant it was last reconciled. Both are written in one atomic replace.
type Snapshot struct {
	Items        []StarItem `json:"items"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}

// RepoSyncState is the engine's view of one tracked repository
type RepoSyncState struct {
	RepoID           string     `json:"repo_id"`
	RepoURL          string     `json:"repo_url"`
	LastReconciledAt *time.Time `json:"last_reconciled_at,omitempty"`
	Snapshot         []StarItem `json:"snapshot"`
}

// NewRepoSyncState builds the state of a repository from its stored snapshot
func NewRepoSyncState(repo *Repository, snap *Snapshot) *RepoSyncState {
	state := &RepoSyncState{
		RepoID:  repo.ID,
		RepoURL: repo.URL,
	}
	if snap != nil {
		state.LastReconciledAt = snap.ReconciledAt
		state.Snapshot = snap.Items
	}
	return state
}

// RepoStateSummary is the API view of a repository's sync state
type RepoStateSummary struct {
	RepoID           string     `json:"repo_id"`
	RepoURL          string     `json:"repo_url"`
	LastReconciledAt *time.Time `json:"last_reconciled_at,omitempty"`
	Stargazers       int        `json:"stargazers"`
	Subscribers      int        `json:"subscribers"`
}
