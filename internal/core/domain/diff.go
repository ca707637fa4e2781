package domain

import (
	"sort"
	"time"
)

// DiffResult is the outcome of one reconciliation
type DiffResult struct {
	// IsFirstSync is true when the repository had never been reconciled
	// before this run. The whole list would otherwise read as "added".
	IsFirstSync bool     `json:"is_first_sync"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
}

// NeedsNotification reports whether subscribers should hear about this diff
func (d *DiffResult) NeedsNotification() bool {
	return !d.IsFirstSync && (len(d.Added) > 0 || len(d.Removed) > 0)
}

// ComputeDiff returns added = New - Old and removed = Old - New by login.
// Both slices are sorted.
func ComputeDiff(old, new []StarItem) (added, removed []string) {
	oldSet := Logins(old)
	newSet := Logins(new)

	added = make([]string, 0)
	for login := range newSet {
		if _, ok := oldSet[login]; !ok {
			added = append(added, login)
		}
	}
	removed = make([]string, 0)
	for login := range oldSet {
		if _, ok := newSet[login]; !ok {
			removed = append(removed, login)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// ReconcileResult is what the engine hands to its caller
type ReconcileResult struct {
	Repo *Repository `json:"repo"`
	DiffResult
	// Subscribers are the handles registered for the repository at the end of the run
	Subscribers []string `json:"subscribers"`
	// Skipped is true when the throttle policy short-circuited the run
	Skipped bool `json:"skipped"`
	// PagesFetched counts upstream page calls
	PagesFetched int           `json:"pages_fetched"`
	Stargazers   int           `json:"stargazers"`
	Duration     time.Duration `json:"duration"`
}
