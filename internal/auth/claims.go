package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: ClientID must be present for all non-admin activity;
// agency admins carry their own client scope and get cross-client rights via
// role checks, never via a blank client_id.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
