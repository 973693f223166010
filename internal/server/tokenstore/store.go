// Package tokenstore holds refresh-token records behind a storage-neutral
// contract. Rotation is a single compare-and-set: of any number of
// concurrent rotations of the same record, at most one succeeds.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
)

// ErrInactive is returned by Rotate when the presented record is unknown,
// revoked, rotated, expired or owned by another user. Nothing is changed.
var ErrInactive = errors.New("refresh token is not active")

// RefreshTokenStore is implemented by SQLStore and RedisStore.
type RefreshTokenStore interface {
	// Save persists a new active record.
	Save(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the record for tokenHash, including revoked and
	// rotated ones, or common.ErrorNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke sets RevokedAt to now unless it is already set. It returns
	// common.ErrorNotFound if there is no such record.
	Revoke(ctx context.Context, tokenHash string, now time.Time) error

	// Rotate revokes the active record oldHash of successor.UserID, links it
	// to successor.TokenHash and saves successor, all or nothing.
	Rotate(ctx context.Context, oldHash string, successor *models.RefreshToken, now time.Time) error
}

// TxSaver is implemented by stores kept in the application database. SaveTx
// writes a new record through the caller's transaction.
type TxSaver interface {
	SaveTx(ctx context.Context, tx dbx.DBTX, token *models.RefreshToken) error
}
