package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB
// or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts token as an active record.
func (r *SQLRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := r.dialect.Rebind(`
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByHash returns the record stored under tokenHash.
// If not found, it returns common.ErrorNotFound.
func (r *SQLRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := r.dialect.Rebind(`
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by_token_hash
		FROM refresh_tokens
		WHERE token_hash = $1
	`)

	t := &models.RefreshToken{}
	var revokedAt sql.NullTime
	var replacedBy sql.NullString

	err := r.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &revokedAt, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if revokedAt.Valid {
		at := revokedAt.Time.UTC()
		t.RevokedAt = &at
	}
	if replacedBy.Valid {
		t.ReplacedByTokenHash = &replacedBy.String
	}
	return t, nil
}

// Revoke marks the record revoked unless it already is.
func (r *SQLRepository) Revoke(ctx context.Context, tokenHash string, now time.Time) (int64, error) {
	query := r.dialect.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE token_hash = $2 AND revoked_at IS NULL
	`)
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, query, now, tokenHash))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// MarkReplaced is the compare-and-set half of rotation.
func (r *SQLRepository) MarkReplaced(ctx context.Context, userID, oldHash, newHash string, now time.Time) (int64, error) {
	query := r.dialect.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = $1, replaced_by_token_hash = $2
		WHERE token_hash = $3 AND user_id = $4 AND revoked_at IS NULL AND expires_at >= $5
	`)
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, query, now, newHash, oldHash, userID, now))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
