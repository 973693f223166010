package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("User@Example.com "))
	assert.Equal(t, "user@example.com", NormalizeEmail(" user@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestUser_NameOrEmail(t *testing.T) {
	assert.Equal(t, "Alice", (&User{Email: "a@x.io", DisplayName: "Alice"}).NameOrEmail())
	assert.Equal(t, "a@x.io", (&User{Email: "a@x.io", DisplayName: "  "}).NameOrEmail())
}

func TestRefreshToken_States(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)
	next := "abc"

	tests := []struct {
		name    string
		token   RefreshToken
		active  bool
		revoked bool
		rotated bool
	}{
		{name: "active", token: RefreshToken{ExpiresAt: now.Add(time.Hour)}, active: true},
		{name: "expires exactly now", token: RefreshToken{ExpiresAt: now}, active: true},
		{name: "expired", token: RefreshToken{ExpiresAt: now.Add(-time.Nanosecond)}},
		{name: "revoked", token: RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, revoked: true},
		{name: "rotated", token: RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt, ReplacedByTokenHash: &next}, revoked: true, rotated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.token.IsActive(now))
			assert.Equal(t, tt.revoked, tt.token.IsRevoked())
			assert.Equal(t, tt.rotated, tt.token.IsRotated())
		})
	}
}
