// Package refreshtokens persists refresh-token records keyed by the hash of
// the secret. Records are never deleted; revocation and rotation are
// conditional updates so concurrent callers cannot both win.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/server/models"
)

// Repository defines the record operations. Implementations are bound to a
// dbx.DBTX, so the same methods run inside or outside a transaction.
type Repository interface {
	// Create inserts a new record. A duplicate hash yields common.ErrConflict.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the record for tokenHash or common.ErrorNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke sets revoked_at=now on a record that is not revoked yet and
	// returns the number of rows changed (0 or 1).
	Revoke(ctx context.Context, tokenHash string, now time.Time) (int64, error)

	// MarkReplaced revokes the record for (userID, oldHash) and links it to
	// newHash, but only while it is active at now. It returns the number of
	// rows changed; 0 means another caller rotated or revoked it first, or
	// it expired.
	MarkReplaced(ctx context.Context, userID, oldHash, newHash string, now time.Time) (int64, error)
}
