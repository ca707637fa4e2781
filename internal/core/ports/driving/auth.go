package driving

import (
	"context"

	"github.com/custodia-labs/starwatch/internal/core/domain"
)

// AuthService issues and validates operator API tokens
type AuthService interface {
	// IssueToken checks the operator password and returns a signed token
	IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error)

	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
