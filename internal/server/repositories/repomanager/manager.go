// Package repomanager assembles the user and session repositories of one
// storage backend behind a single RepositoryManager.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/users"
)

// Repositories is the set handed to a unit of work.
type Repositories struct {
	Users    users.Repository
	Sessions sessions.Repository
}

type RepositoryManager interface {
	Users() users.Repository
	Sessions() sessions.Repository

	// InTx runs fn with repositories that share one unit of work. Backends
	// with transactions commit on nil and roll back on error; the others
	// run the steps in order and stop at the first error.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
