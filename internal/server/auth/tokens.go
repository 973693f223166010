// Package auth contains the credential primitives of the service: password
// hashing and the issuer of access and refresh tokens.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/clock"
	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/randx"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshSecretBytes is the entropy of an opaque refresh secret.
const RefreshSecretBytes = 64

// MinSigningKeyBytes is the shortest accepted HS256 key.
const MinSigningKeyBytes = 32

// TokenOptions configures a TokenIssuer.
type TokenOptions struct {
	SigningKey      []byte
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Claims are the access token claims: the registered set plus email and
// name. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenIssuer signs access tokens and mints refresh secrets. It holds no
// state besides its options, the clock and the random source.
type TokenIssuer struct {
	opts   TokenOptions
	clock  clock.Clock
	random randx.SecureRandom
	parser *jwt.Parser
}

// NewTokenIssuer validates opts and returns an issuer. Bad options yield a
// *common.ConfigurationError.
func NewTokenIssuer(opts TokenOptions, clk clock.Clock, rnd randx.SecureRandom) (*TokenIssuer, error) {
	problems := &common.ConfigurationError{}
	if len(opts.SigningKey) < MinSigningKeyBytes {
		problems.Add(fmt.Sprintf("signing key must be at least %d bytes", MinSigningKeyBytes))
	}
	if opts.Issuer == "" {
		problems.Add("issuer is required")
	}
	if opts.Audience == "" {
		problems.Add("audience is required")
	}
	if opts.AccessTokenTTL <= 0 {
		problems.Add("access token lifetime must be positive")
	}
	if opts.RefreshTokenTTL <= 0 {
		problems.Add("refresh token lifetime must be positive")
	}
	if clk == nil || rnd == nil {
		problems.Add("clock and random source are required")
	}
	if err := problems.OrNil(); err != nil {
		return nil, err
	}

	return &TokenIssuer{
		opts:   opts,
		clock:  clk,
		random: rnd,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithAudience(opts.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// CreateTokens issues a signed access token for user and a fresh refresh
// secret.
func (i *TokenIssuer) CreateTokens(user *models.User) (*models.TokenPair, error) {
	now := i.clock.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.opts.Issuer,
			Audience:  jwt.ClaimStrings{i.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.opts.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
		Name:  user.NameOrEmail(),
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.opts.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := randx.Base64(i.random, RefreshSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(i.opts.RefreshTokenTTL),
	}, nil
}

// HashToken returns the lookup key stored for a refresh secret.
func (i *TokenIssuer) HashToken(secret string) string {
	return HashToken(secret)
}

// ParseAccessToken verifies signature, algorithm, issuer, audience and time
// claims. Every failure is reported as common.ErrInvalidToken.
func (i *TokenIssuer) ParseAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.opts.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// HashToken is SHA-256 of the secret as lowercase hex, the key refresh-token
// records are stored and looked up under.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
