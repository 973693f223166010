package config

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
)

// MinSigningKeyBytes is the shortest accepted HS256 key (256 bits).
const MinSigningKeyBytes = 32

// Upper bounds on token lifetimes. They keep the duration conversions far
// from overflowing int64 nanoseconds.
const (
	MaxAccessTokenMinutes = 24 * 60
	MaxRefreshTokenDays   = 3650
)

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	problems := &common.ConfigurationError{}

	key, err := c.SigningKeyBytes()
	switch {
	case err != nil:
		problems.Add("signing key: invalid base64")
	case len(key) == 0:
		problems.Add("signing key is required")
	case len(key) < MinSigningKeyBytes:
		problems.Add(fmt.Sprintf("signing key must be at least %d bytes, got %d", MinSigningKeyBytes, len(key)))
	}

	if strings.TrimSpace(c.Issuer) == "" {
		problems.Add("issuer is required")
	}
	if strings.TrimSpace(c.Audience) == "" {
		problems.Add("audience is required")
	}
	switch {
	case c.AccessTokenMinutes <= 0:
		problems.Add("access token minutes must be a positive integer")
	case c.AccessTokenMinutes > MaxAccessTokenMinutes:
		problems.Add(fmt.Sprintf("access token minutes must be at most %d", MaxAccessTokenMinutes))
	}
	switch {
	case c.RefreshTokenDays <= 0:
		problems.Add("refresh token days must be a positive integer")
	case c.RefreshTokenDays > MaxRefreshTokenDays:
		problems.Add(fmt.Sprintf("refresh token days must be at most %d", MaxRefreshTokenDays))
	}

	if _, err := dbx.ParseDialect(c.DatabaseDriver); err != nil {
		problems.Add(err.Error())
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		problems.Add("database DSN is required")
	}

	switch c.TokenStore {
	case TokenStoreSQL, TokenStoreRedis:
	default:
		problems.Add(fmt.Sprintf("token store must be %q or %q, got %q", TokenStoreSQL, TokenStoreRedis, c.TokenStore))
	}
	if (c.TokenStore == TokenStoreRedis || c.RateLimitPerMinute > 0) && c.RedisAddr == "" {
		problems.Add("redis address is required for the redis token store and rate limiting")
	}
	if c.RateLimitPerMinute < 0 {
		problems.Add("rate limit must not be negative")
	}
	if c.AMQPURL != "" && c.AuditQueue == "" {
		problems.Add("audit queue is required when an AMQP URL is set")
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		problems.Add(fmt.Sprintf("log format must be json or text, got %q", c.LogFormat))
	}
	if c.ShutdownTimeout <= 0 {
		problems.Add("shutdown timeout must be positive")
	}

	return problems.OrNil()
}
