// Package users declares the user store contract and its backends.
package users

import (
	"context"

	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

// Repository persists user accounts. Emails are stored exactly as given;
// normalization is the caller's job.
type Repository interface {
	// Create inserts user and returns it. A duplicate email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail and GetByID return common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// LockByID is GetByID that also holds a shared lock on the user row until
	// the enclosing unit of work ends, where the store has row locks. A
	// concurrent Delete waits for that unit of work, and a lock taken after
	// a committed Delete finds nothing.
	LockByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword replaces the stored hash; common.ErrorNotFound when the
	// user does not exist.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// Delete removes the user; common.ErrorNotFound when absent.
	Delete(ctx context.Context, id string) error
}
