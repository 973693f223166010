package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/dmitrijs2005/taskboard/internal/server/repositories/repomanager"
)

// SQLStore keeps records in the refresh_tokens table.
type SQLStore struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// NewSQLStore returns a store over db using repositories from rm.
func NewSQLStore(db *sql.DB, rm repomanager.RepositoryManager) *SQLStore {
	return &SQLStore{db: db, rm: rm}
}

func (s *SQLStore) Save(ctx context.Context, token *models.RefreshToken) error {
	return s.SaveTx(ctx, s.db, token)
}

// SaveTx inserts token using tx, which may be an open *sql.Tx.
func (s *SQLStore) SaveTx(ctx context.Context, tx dbx.DBTX, token *models.RefreshToken) error {
	return s.rm.RefreshTokens(tx).Create(ctx, token)
}

func (s *SQLStore) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return s.rm.RefreshTokens(s.db).FindByHash(ctx, tokenHash)
}

func (s *SQLStore) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	repo := s.rm.RefreshTokens(s.db)

	n, err := repo.Revoke(ctx, tokenHash, now)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Either already revoked (fine) or absent.
	_, err = repo.FindByHash(ctx, tokenHash)
	return err
}

// Rotate runs the conditional update and the insert in one transaction.
// A row count other than 1 aborts it with ErrInactive.
func (s *SQLStore) Rotate(ctx context.Context, oldHash string, successor *models.RefreshToken, now time.Time) error {
	return dbx.WithTx(ctx, s.db, s.rm.Dialect().TxOptions(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.RefreshTokens(tx)

		n, err := repo.MarkReplaced(ctx, successor.UserID, oldHash, successor.TokenHash, now)
		if err != nil {
			return err
		}
		if n != 1 {
			return ErrInactive
		}

		if err := repo.Create(ctx, successor); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return ErrInactive
			}
			return err
		}
		return nil
	})
}
