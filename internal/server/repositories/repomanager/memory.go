package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. Units of work
// are serialized against each other but are not rolled back on error.
type MemoryRepositoryManager struct {
	mu       sync.Mutex
	users    *users.MemoryRepository
	sessions *sessions.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:    users.NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Users() users.Repository       { return m.users }
func (m *MemoryRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *MemoryRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, Repositories{Users: m.users, Sessions: m.sessions})
}

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error  { return nil }
func (m *MemoryRepositoryManager) Close(ctx context.Context) error { return nil }
