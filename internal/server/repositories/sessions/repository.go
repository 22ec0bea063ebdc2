// Package sessions declares the session store contract and its backends.
//
// A session only ever moves from valid to expired. Expired records are kept
// for audit and are never returned by a lookup for valid sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

type Repository interface {
	// Create stores a new valid session. The token, CSRF secret and status
	// are written in one step. A reused token yields common.ErrorAlreadyExists.
	Create(ctx context.Context, session *models.Session) error

	// FindByToken returns the session only if its status equals status,
	// otherwise common.ErrorNotFound.
	FindByToken(ctx context.Context, token string, status models.SessionStatus) (*models.Session, error)

	// Expire marks the session expired. Unknown or already expired tokens
	// are not an error.
	Expire(ctx context.Context, token string) error

	// ExpireAllForUser expires every valid session of the user except
	// keepToken (pass "" to expire all) and returns how many changed.
	// Sessions created concurrently either end up expired or were created
	// after the snapshot; none is left half-processed.
	ExpireAllForUser(ctx context.Context, userID string, keepToken string) (int64, error)

	// ListByUser returns all sessions of the user, any status, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
}
