package driven

import "github.com/custodia-labs/starwatch/internal/core/domain"

// AuthAdapter handles the cryptography behind operator API tokens.
type AuthAdapter interface {
	// HashPassword produces the value stored in STARWATCH_AUTH_ADMIN_PASSWORD_HASH
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
