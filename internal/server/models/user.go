// Package models holds the persistent records and transient values of the
// authentication subsystem.
package models

import (
	"strings"
	"time"
)

// User is an account. Email is stored normalized and is unique;
// PasswordHash is a self-describing hash string, never the raw password.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NameOrEmail is the value used for the name claim.
func (u *User) NameOrEmail() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	return u.Email
}
