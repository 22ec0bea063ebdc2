// Package services contains server-side business logic. SessionService owns
// the session lifecycle; UserService implements the account flows on top of it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/logging"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
	"github.com/dmitrijs2005/sessionguard/internal/server/metrics"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
)

// maxTokenAttempts bounds retries when a freshly generated token collides
// with a stored one.
const maxTokenAttempts = 3

// SessionService creates, validates and expires sessions.
type SessionService struct {
	repomanager repomanager.RepositoryManager
	tokens      auth.TokenGenerator
	ttl         time.Duration
	log         logging.Logger
	now         func() time.Time
}

// NewSessionService builds a SessionService. A zero ttl gives sessions no
// wall-clock horizon.
func NewSessionService(m repomanager.RepositoryManager, tokens auth.TokenGenerator, ttl time.Duration, log logging.Logger) *SessionService {
	return &SessionService{
		repomanager: m,
		tokens:      tokens,
		ttl:         ttl,
		log:         log.With("module", "sessions"),
		now:         time.Now,
	}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreFailure, err)
}

// InitSession issues a new valid session for userID.
func (s *SessionService) InitSession(ctx context.Context, userID string) (*models.Session, error) {
	return s.initSession(ctx, s.repomanager.Sessions(), userID)
}

func (s *SessionService) initSession(ctx context.Context, repo sessions.Repository, userID string) (*models.Session, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}
		secret, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		session := &models.Session{
			Token:      token,
			UserID:     userID,
			CSRFSecret: secret,
			CreatedAt:  now,
		}
		if s.ttl > 0 {
			session.ExpiresAt = now.Add(s.ttl)
		}

		err = repo.Create(ctx, session)
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.log.Warn(ctx, "session token collision, regenerating")
			continue
		}
		if err != nil {
			return nil, storeFailure("create session", err)
		}

		metrics.SessionsCreatedTotal.Inc()
		s.log.Debug(ctx, "session created", "user_id", userID)
		return session, nil
	}
	return nil, storeFailure("create session", common.ErrorAlreadyExists)
}

// Authenticate is the auth gate. On success the returned context carries the
// session; see auth.SessionFromContext. Every rejection is ErrUnauthenticated.
func (s *SessionService) Authenticate(ctx context.Context, token string) (context.Context, error) {
	if token == "" {
		metrics.GateRejectionsTotal.WithLabelValues(metrics.RejectNoToken).Inc()
		return ctx, common.ErrUnauthenticated
	}

	repo := s.repomanager.Sessions()
	session, err := repo.FindByToken(ctx, token, models.SessionValid)
	if errors.Is(err, common.ErrorNotFound) {
		metrics.GateRejectionsTotal.WithLabelValues(metrics.RejectInvalid).Inc()
		return ctx, common.ErrUnauthenticated
	}
	if err != nil {
		return ctx, storeFailure("find session", err)
	}

	if session.PastHorizon(s.now()) {
		if err := repo.Expire(ctx, token); err != nil {
			return ctx, storeFailure("expire session", err)
		}
		metrics.SessionsExpiredTotal.WithLabelValues(metrics.ExpiredHorizon).Inc()
		metrics.GateRejectionsTotal.WithLabelValues(metrics.RejectInvalid).Inc()
		s.log.Info(ctx, "session reached its horizon", "user_id", session.UserID)
		return ctx, common.ErrUnauthenticated
	}

	return auth.WithSession(ctx, auth.NewSessionInfo(session)), nil
}

// Terminate expires the session. Unknown and already expired tokens succeed.
func (s *SessionService) Terminate(ctx context.Context, token string) error {
	return s.terminate(ctx, s.repomanager.Sessions(), token, metrics.ExpiredLogout)
}

func (s *SessionService) terminate(ctx context.Context, repo sessions.Repository, token string, reason string) error {
	if err := repo.Expire(ctx, token); err != nil {
		return storeFailure("expire session", err)
	}
	metrics.SessionsExpiredTotal.WithLabelValues(reason).Inc()
	return nil
}

// TerminateAll expires every valid session of userID and reports how many.
func (s *SessionService) TerminateAll(ctx context.Context, userID string) (int64, error) {
	return s.terminateAll(ctx, s.repomanager.Sessions(), userID, "")
}

func (s *SessionService) terminateAll(ctx context.Context, repo sessions.Repository, userID string, keepToken string) (int64, error) {
	n, err := repo.ExpireAllForUser(ctx, userID, keepToken)
	if err != nil {
		return 0, storeFailure("expire sessions", err)
	}
	metrics.SessionsExpiredTotal.WithLabelValues(metrics.ExpiredRevoked).Add(float64(n))
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// List returns every session of userID, any status, oldest first.
func (s *SessionService) List(ctx context.Context, userID string) ([]*models.Session, error) {
	list, err := s.repomanager.Sessions().ListByUser(ctx, userID)
	if err != nil {
		return nil, storeFailure("list sessions", err)
	}
	return list, nil
}
