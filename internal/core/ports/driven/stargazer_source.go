package driven

import (
	"context"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// StargazerSource reads stargazers from the upstream provider.
//
// The upstream is eventually consistent: TotalCount and Page are read at
// different instants, so the count may drift from what the pages return, and
// items near page boundaries can repeat. Failures are wrapped in domain.ErrUpstream.
type StargazerSource interface {
	// TotalCount returns the number of stargazers the provider reports.
	TotalCount(ctx context.Context, repo domain.RepoRef) (int, error)

	// Page returns page number page (1-based) of size items, oldest first.
	// A page past the end is empty, not an error.
	Page(ctx context.Context, repo domain.RepoRef, page, size int) ([]domain.StarItem, error)
}
