package domain

import "time"

// TokenClaims represents the operator API token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired checks the claims against the current time
func (c *TokenClaims) IsExpired() bool {
	return time.Now().Unix() >= c.ExpiresAt
}

// AuthContext identifies the caller of an authenticated request
type AuthContext struct {
	Subject string `json:"subject"`
}

// TokenRequest exchanges the operator password for an API token
type TokenRequest struct {
	Password string `json:"password"`
}

// TokenResponse is returned after a successful token exchange
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
