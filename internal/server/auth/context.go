package auth

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

// SessionInfo is the read-only view of an authenticated session attached to
// a request context. It is a value: handlers cannot mutate the stored session
// through it.
type SessionInfo struct {
	Token      string
	UserID     string
	csrfSecret string
	CreatedAt  time.Time
}

// NewSessionInfo copies the fields of s needed downstream.
func NewSessionInfo(s *models.Session) SessionInfo {
	return SessionInfo{
		Token:      s.Token,
		UserID:     s.UserID,
		csrfSecret: s.CSRFSecret,
		CreatedAt:  s.CreatedAt,
	}
}

type ctxKey struct{}

// WithSession returns a child context carrying info.
func WithSession(ctx context.Context, info SessionInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(ctxKey{}).(SessionInfo)
	return info, ok
}
