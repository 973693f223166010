// Package users stores user accounts keyed by normalized email.
package users

import (
	"context"

	"github.com/dmitrijs2005/taskboard/internal/server/models"
)

// Repository is the user store.
type Repository interface {
	// Create inserts user. A duplicate email yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail looks up a user by normalized email, common.ErrorNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID looks up a user by id, common.ErrorNotFound if absent.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
