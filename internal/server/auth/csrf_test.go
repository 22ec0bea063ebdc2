package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

func sessionCtx(secret string) context.Context {
	s := &models.Session{
		Token:      "tok",
		UserID:     "u1",
		CSRFSecret: secret,
		Status:     models.SessionValid,
		CreatedAt:  time.Now(),
	}
	return WithSession(context.Background(), NewSessionInfo(s))
}

func TestCheckCSRF(t *testing.T) {
	ctx := sessionCtx("s3cret")

	assert.NoError(t, CheckCSRF(ctx, "s3cret"))
	assert.ErrorIs(t, CheckCSRF(ctx, ""), common.ErrCSRFViolation)
	assert.ErrorIs(t, CheckCSRF(ctx, "s3cre"), common.ErrCSRFViolation)
	assert.ErrorIs(t, CheckCSRF(ctx, "S3CRET"), common.ErrCSRFViolation)
}

func TestCheckCSRF_EmptyBoundSecretNeverMatches(t *testing.T) {
	assert.ErrorIs(t, CheckCSRF(sessionCtx(""), ""), common.ErrCSRFViolation)
}

func TestCheckCSRF_NoSession(t *testing.T) {
	assert.ErrorIs(t, CheckCSRF(context.Background(), "x"), common.ErrUnauthenticated)
}

func TestSessionFromContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	info, ok := SessionFromContext(sessionCtx("s"))
	assert.True(t, ok)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "tok", info.Token)
}
