package auth

import (
	"testing"
	"time"

	"engagement-platform/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	token, err := m.IssueAccess(now, "user-1", "client-1", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token string")
	}

	claims, err := m.Verify(token, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.ClientID != "client-1" || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	token, err := m.IssueAccess(now, "u", "c", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token, TokenTypeAccess, now.Add(10*time.Minute)); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, _ := NewManager(config.AuthConfig{JWTSecret: "secret-a", AccessTokenTTL: time.Minute})
	m2, _ := NewManager(config.AuthConfig{JWTSecret: "secret-b", AccessTokenTTL: time.Minute})

	now := time.Unix(1700000000, 0).UTC()
	token, err := m1.IssueAccess(now, "u", "c", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m2.Verify(token, TokenTypeAccess, now); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
