package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/swaggo/swag"

	_ "github.com/custodia-labs/starwatch/docs" // registers the OpenAPI document
	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// SubscriptionRequest names a handle and a repository
// @Description Subscribe or unsubscribe request
type SubscriptionRequest struct {
	Handle  string `json:"handle" example:"tg:123456"`
	RepoURL string `json:"repo_url" example:"https://github.com/golang/go"`
}

// SubscriptionResponse reports the outcome of a subscription change
// @Description Subscription change outcome
type SubscriptionResponse struct {
	Result string `json:"result" example:"ok"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "Dependency unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleIssueToken godoc
// @Summary      Issue operator token
// @Description  Exchange the operator password for a JWT bearer token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.TokenRequest  true  "Operator password"
// @Success      200      {object}  domain.TokenResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "password is required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Subscription endpoints

// handleSubscribe godoc
// @Summary      Subscribe to a repository
// @Description  Follow a GitHub repository's stargazer changes. Creates the user and repository on first use.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SubscriptionRequest  true  "Handle and repository URL"
// @Success      201      {object}  SubscriptionResponse  "Subscribed"
// @Success      200      {object}  SubscriptionResponse  "Already subscribed"
// @Failure      400      {object}  ErrorResponse  "Invalid handle or repository URL"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /subscriptions [post]
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.subscriptionService.Subscribe(r.Context(), req.Handle, req.RepoURL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid handle")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	switch result {
	case domain.SubscribeOK:
		writeJSON(w, http.StatusCreated, SubscriptionResponse{Result: string(result)})
	case domain.SubscribeInvalidRepo:
		writeError(w, http.StatusBadRequest, "invalid repository url")
	default:
		writeJSON(w, http.StatusOK, SubscriptionResponse{Result: string(result)})
	}
}

// handleUnsubscribe godoc
// @Summary      Unsubscribe from a repository
// @Description  Stop following a repository
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SubscriptionRequest  true  "Handle and repository URL"
// @Success      200      {object}  SubscriptionResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Not subscribed"
// @Router       /subscriptions [delete]
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.subscriptionService.Unsubscribe(r.Context(), req.Handle, req.RepoURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	if result == domain.UnsubscribeNotSubscribed {
		writeError(w, http.StatusNotFound, "not subscribed")
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{Result: string(result)})
}

// handleListUserRepos godoc
// @Summary      List a user's repositories
// @Description  Repositories the handle is subscribed to
// @Tags         Subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        handle  path      string  true  "Subscriber handle"
// @Success      200     {array}   domain.Repository
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Failure      500     {object}  ErrorResponse  "Internal server error"
// @Router       /users/{handle}/repos [get]
func (s *Server) handleListUserRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.subscriptionService.ListUserRepos(r.Context(), r.PathValue("handle"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list repositories")
		return
	}

	writeJSON(w, http.StatusOK, repos)
}

// Repository endpoints

// handleListRepos godoc
// @Summary      List repositories
// @Description  Sync state summary of every known repository
// @Tags         Repositories
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.RepoStateSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /repos [get]
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.subscriptionService.ListRepos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list repositories")
		return
	}

	writeJSON(w, http.StatusOK, repos)
}

// handleGetRepoState godoc
// @Summary      Get repository state
// @Description  Stored stargazer snapshot and last reconciliation time
// @Tags         Repositories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Repository ID"
// @Success      200  {object}  domain.RepoSyncState
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Repository not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /repos/{id}/state [get]
func (s *Server) handleGetRepoState(w http.ResponseWriter, r *http.Request) {
	state, err := s.reconciler.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get repository state")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// handleTriggerReconcile godoc
// @Summary      Queue a reconciliation
// @Description  Enqueue a reconcile_repo task. The run is still throttled by the minimum interval.
// @Tags         Repositories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Repository ID"
// @Success      202  {object}  domain.Task
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Repository not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /repos/{id}/reconcile [post]
func (s *Server) handleTriggerReconcile(w http.ResponseWriter, r *http.Request) {
	task, err := s.scheduler.EnqueueRepo(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to queue reconciliation")
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

// Queue endpoints

// handleQueueStats godoc
// @Summary      Task queue statistics
// @Description  Counts of pending, processing, completed and failed tasks
// @Tags         Queue
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driven.QueueStats
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      503  {object}  ErrorResponse  "Queue unavailable"
// @Router       /queue/stats [get]
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.taskQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue not configured")
		return
	}

	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to read queue stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
