package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

var _ driven.StargazerSource = (*StargazerSource)(nil)

// DefaultTimeout is the HTTP client timeout. The reconciler applies its own
// per-call deadline on top.
const DefaultTimeout = 30 * time.Second

// Config configures the GitHub stargazer source.
type Config struct {
	// Token is a personal access token. Empty means unauthenticated (60 req/hr).
	Token string

	// BaseURL overrides https://api.github.com/, for GitHub Enterprise or tests.
	BaseURL string

	// Rate is the proactive request rate per second (default: ProactiveRate).
	Rate float64

	// HTTPClient is used as the base transport when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// StargazerSource reads stargazers through the GitHub REST API.
type StargazerSource struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewStargazerSource creates a GitHub-backed StargazerSource.
func NewStargazerSource(ctx context.Context, cfg Config) (*StargazerSource, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		tc := oauth2.NewClient(ctx, ts)
		tc.Timeout = httpClient.Timeout
		httpClient = tc
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StargazerSource{
		gh:          client,
		rateLimiter: NewRateLimiter(cfg.Rate),
		logger:      logger.With("component", "github"),
	}, nil
}

// TotalCount returns stargazers_count of the repository.
func (s *StargazerSource) TotalCount(ctx context.Context, repo domain.RepoRef) (int, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: rate limit wait: %w", domain.ErrUpstream, err)
	}

	r, resp, err := s.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
	s.updateRateLimit(resp)
	if err != nil {
		return 0, s.wrapError(err, "get repo")
	}
	if r.StargazersCount == nil {
		return 0, fmt.Errorf("%w: get repo %s: missing stargazers_count", domain.ErrUpstream, repo)
	}
	return r.GetStargazersCount(), nil
}

// Page returns one page of stargazers, oldest first.
func (s *StargazerSource) Page(ctx context.Context, repo domain.RepoRef, page, size int) ([]domain.StarItem, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("%w: page %d size %d", domain.ErrInvalidInput, page, size)
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", domain.ErrUpstream, err)
	}

	stargazers, resp, err := s.gh.Activity.ListStargazers(ctx, repo.Owner, repo.Name, &gh.ListOptions{
		Page:    page,
		PerPage: size,
	})
	s.updateRateLimit(resp)
	if err != nil {
		return nil, s.wrapError(err, fmt.Sprintf("list stargazers page %d", page))
	}

	items := make([]domain.StarItem, 0, len(stargazers))
	for i, sg := range stargazers {
		login := sg.GetUser().GetLogin()
		if login == "" || sg.StarredAt == nil {
			return nil, fmt.Errorf("%w: %s page %d item %d: missing login or starred_at",
				domain.ErrUpstream, repo, page, i)
		}
		items = append(items, domain.StarItem{
			Login:     login,
			StarredAt: sg.GetStarredAt().Time,
		})
	}

	s.logger.Debug("fetched stargazers page",
		"repo", repo.String(),
		"page", page,
		"items", len(items),
		"remaining", s.rateLimiter.Remaining(),
	)
	return items, nil
}

// RateLimiter exposes the quota state for diagnostics.
func (s *StargazerSource) RateLimiter() *RateLimiter {
	return s.rateLimiter
}

func (s *StargazerSource) updateRateLimit(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	s.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types, classified as
// domain.ErrUpstream.
func (s *StargazerSource) wrapError(err error, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, operation, &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		})
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		resetAt := time.Now()
		if abuseErr.RetryAfter != nil {
			resetAt = resetAt.Add(*abuseErr.RetryAfter)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, operation, &RateLimitError{
			ResetAt:   resetAt,
			Remaining: s.rateLimiter.Remaining(),
			Limit:     s.rateLimiter.Limit(),
		})
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, operation, apiErr)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, operation, err)
}
