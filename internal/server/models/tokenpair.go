package models

import "time"

// TokenPair is returned to the client after register, login and refresh.
// RefreshToken is the raw secret; it is handed out exactly once and never
// stored.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
