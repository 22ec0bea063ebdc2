package repomanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
)

// redisSessions keeps users in the wrapped manager and sessions in Redis.
type redisSessions struct {
	RepositoryManager
	rdb      redis.UniversalClient
	sessions *sessions.RedisRepository
}

// WithRedisSessions moves session storage of m to Redis. Units of work still
// open a unit on m; session writes inside it go to Redis immediately and are
// not rolled back with it.
func WithRedisSessions(m RepositoryManager, rdb redis.UniversalClient) RepositoryManager {
	return &redisSessions{
		RepositoryManager: m,
		rdb:               rdb,
		sessions:          sessions.NewRedisRepository(rdb, sessions.DefaultRedisPrefix),
	}
}

// NewRedisClient parses url (redis://...) and checks the server responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (m *redisSessions) Sessions() sessions.Repository { return m.sessions }

func (m *redisSessions) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return m.RepositoryManager.InTx(ctx, func(ctx context.Context, r Repositories) error {
		r.Sessions = m.sessions
		return fn(ctx, r)
	})
}

func (m *redisSessions) Ping(ctx context.Context) error {
	if err := m.RepositoryManager.Ping(ctx); err != nil {
		return err
	}
	return m.rdb.Ping(ctx).Err()
}

func (m *redisSessions) Close(ctx context.Context) error {
	return errors.Join(m.rdb.Close(), m.RepositoryManager.Close(ctx))
}
