package models

import "time"

// RefreshToken is the server-side record of an issued refresh secret. Only
// the hash of the secret is kept. Records are never deleted: rotation and
// revocation set RevokedAt, and rotation also links the successor through
// ReplacedByTokenHash.
type RefreshToken struct {
	ID                  string
	UserID              string
	TokenHash           string
	ExpiresAt           time.Time
	CreatedAt           time.Time
	RevokedAt           *time.Time
	ReplacedByTokenHash *string
}

// IsActive reports whether the record can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !now.After(t.ExpiresAt)
}

// IsRevoked reports whether the record was revoked or rotated.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsRotated reports whether the record was replaced by a successor.
// Presenting a rotated secret again is the reuse signal.
func (t *RefreshToken) IsRotated() bool {
	return t.RevokedAt != nil && t.ReplacedByTokenHash != nil
}
