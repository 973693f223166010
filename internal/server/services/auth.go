// Package services contains server-side business logic. AuthService handles
// registration, login, refresh-token rotation and revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskboard/internal/clock"
	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/logging"
	"github.com/dmitrijs2005/taskboard/internal/server/audit"
	"github.com/dmitrijs2005/taskboard/internal/server/auth"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/dmitrijs2005/taskboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskboard/internal/server/tokenstore"
	"github.com/google/uuid"
)

// PasswordHasher is satisfied by *auth.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
	NeedsRehash(encoded string) bool
}

// TokenIssuer is satisfied by *auth.TokenIssuer.
type TokenIssuer interface {
	CreateTokens(user *models.User) (*models.TokenPair, error)
	HashToken(secret string) string
	ParseAccessToken(token string) (*auth.Claims, error)
}

// AuthDeps are the collaborators of AuthService. Audit and Logger may be
// nil.
type AuthDeps struct {
	DB     *sql.DB
	Repos  repomanager.RepositoryManager
	Tokens tokenstore.RefreshTokenStore
	Hasher PasswordHasher
	Issuer TokenIssuer
	Clock  clock.Clock
	Audit  audit.Recorder
	Logger logging.Logger
}

// AuthService implements the account and refresh-token lifecycle. It keeps
// no state between calls.
type AuthService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	tokens    tokenstore.RefreshTokenStore
	hasher    PasswordHasher
	issuer    TokenIssuer
	clock     clock.Clock
	audit     audit.Recorder
	log       logging.Logger
	dummyHash string
}

// NewAuthService checks deps and precomputes the hash used to equalise the
// cost of logins for unknown accounts.
func NewAuthService(d AuthDeps) (*AuthService, error) {
	if d.DB == nil || d.Repos == nil || d.Tokens == nil || d.Hasher == nil || d.Issuer == nil || d.Clock == nil {
		return nil, errors.New("auth service: missing dependency")
	}
	if d.Audit == nil {
		d.Audit = audit.Nop()
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}

	dummy, err := d.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}

	return &AuthService{
		db:        d.DB,
		repos:     d.Repos,
		tokens:    d.Tokens,
		hasher:    d.Hasher,
		issuer:    d.Issuer,
		clock:     d.Clock,
		audit:     d.Audit,
		log:       d.Logger.With("module", "auth"),
		dummyHash: dummy,
	}, nil
}

func internal(err error) error {
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}

// hashPrefix is the only part of a token hash that goes into logs.
func hashPrefix(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*models.TokenPair, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	users := s.repos.Users(s.db)

	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrConflict
	case !errors.Is(err, common.ErrorNotFound):
		return nil, internal(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal(err)
	}

	now := s.clock.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    now,
	}
	pair, err := s.createAccount(ctx, user)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorInternal):
		return nil, err
	case errors.Is(err, common.ErrConflict):
		return nil, common.ErrConflict
	default:
		return nil, internal(err)
	}

	s.audit.Record(ctx, audit.UserRegistered(user.ID, now))
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return pair, nil
}

// Login checks credentials. Unknown email and wrong password fail the same
// way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	email = models.NormalizeEmail(email)

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, internal(err)
		}
		_, _ = s.hasher.Verify(s.dummyHash, password)
		s.loginFailed(ctx, email)
		return nil, common.ErrorUnauthorized
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		s.loginFailed(ctx, email)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		s.loginFailed(ctx, email)
		return nil, common.ErrorUnauthorized
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.log.Info(ctx, "password hash needs upgrade", "user_id", user.ID)
	}

	return s.issue(ctx, user)
}

func (s *AuthService) loginFailed(ctx context.Context, email string) {
	s.audit.Record(ctx, audit.LoginFailed(email, s.clock.Now()))
}

// issue mints a pair for user and stores the refresh record.
func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	pair, rec, err := s.mint(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, rec); err != nil {
		return nil, internal(err)
	}
	return pair, nil
}

// mint signs a pair for user and builds the record for its refresh secret.
func (s *AuthService) mint(user *models.User) (*models.TokenPair, *models.RefreshToken, error) {
	pair, err := s.issuer.CreateTokens(user)
	if err != nil {
		return nil, nil, internal(err)
	}
	rec := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: s.issuer.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: s.clock.Now(),
	}
	return pair, rec, nil
}

// createAccount inserts user together with its first refresh record. When
// the token store lives in the same database both rows commit or roll back
// together. Other stores save the record after the user row is written.
func (s *AuthService) createAccount(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	txs, ok := s.tokens.(tokenstore.TxSaver)
	if !ok {
		created, err := s.repos.Users(s.db).Create(ctx, user)
		if err != nil {
			return nil, err
		}
		return s.issue(ctx, created)
	}

	var pair *models.TokenPair
	err := dbx.WithTx(ctx, s.db, s.repos.Dialect().TxOptions(), func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		p, rec, err := s.mint(created)
		if err != nil {
			return err
		}
		if err := txs.SaveTx(ctx, tx, rec); err != nil {
			return internal(err)
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh exchanges an active refresh secret for a new pair. The old record
// is rotated in the same atomic step that stores the successor.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*models.TokenPair, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrValidation)
	}

	hash := s.issuer.HashToken(raw)
	rec, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, internal(err)
	}

	now := s.clock.Now()
	if !rec.IsActive(now) {
		if rec.IsRotated() {
			s.log.Warn(ctx, "rotated refresh token presented again", "user_id", rec.UserID, "token", hashPrefix(hash))
			s.audit.Record(ctx, audit.TokenReuseDetected(rec.UserID, rec.ID, now))
		}
		return nil, common.ErrorUnauthorized
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, internal(err)
	}

	pair, err := s.issuer.CreateTokens(user)
	if err != nil {
		return nil, internal(err)
	}

	successor := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: s.issuer.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: now,
	}
	if err := s.tokens.Rotate(ctx, hash, successor, now); err != nil {
		if errors.Is(err, tokenstore.ErrInactive) {
			s.log.Info(ctx, "refresh lost rotation race", "user_id", user.ID, "token", hashPrefix(hash))
			return nil, common.ErrorUnauthorized
		}
		return nil, internal(err)
	}

	s.audit.Record(ctx, audit.TokenRotated(user.ID, rec.ID, now))
	s.log.Debug(ctx, "refresh token rotated", "user_id", user.ID, "token", hashPrefix(hash))
	return pair, nil
}

// Revoke invalidates a refresh secret. Revoking twice succeeds; a secret
// that was never issued, the empty one included, is ErrorNotFound.
func (s *AuthService) Revoke(ctx context.Context, raw string) error {
	hash := s.issuer.HashToken(raw)
	rec, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return internal(err)
	}

	now := s.clock.Now()
	if err := s.tokens.Revoke(ctx, hash, now); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return internal(err)
	}

	if !rec.IsRevoked() {
		s.audit.Record(ctx, audit.TokenRevoked(rec.UserID, rec.ID, now))
	}
	return nil
}

// Authenticate validates an access token and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	if accessToken == "" {
		return nil, common.ErrorUnauthorized
	}
	claims, err := s.issuer.ParseAccessToken(accessToken)
	if err != nil {
		s.log.Debug(ctx, "access token rejected", "error", err)
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}
