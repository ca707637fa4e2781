package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates a wrong operator password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired indicates the API token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the API token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidRepoURL indicates the URL does not point at a GitHub repository
	ErrInvalidRepoURL = errors.New("invalid repository url")

	// ErrReconcileInProgress indicates another run holds the repository
	ErrReconcileInProgress = errors.New("reconciliation already in progress")

	// ErrUpstream indicates the stargazer provider failed (network, timeout,
	// non-2xx, malformed payload). Always retryable on the next cycle.
	ErrUpstream = errors.New("upstream error")

	// ErrStore indicates snapshot persistence failed. Retryable.
	ErrStore = errors.New("store error")

	// ErrNoChannel indicates no delivery channel accepts the handle
	ErrNoChannel = errors.New("no delivery channel for handle")
)
