package httpserver

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
	"github.com/dmitrijs2005/sessionguard/internal/server/metrics"
)

// authenticate runs the auth gate on the session cookie. On failure the
// response is written and ok is false; an unauthenticated caller also loses
// the cookie.
func (s *HTTPServer) authenticate(c *gin.Context) (context.Context, bool) {
	token, _ := c.Cookie(common.SessionCookieName)

	ctx, err := s.sessions.Authenticate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			s.clearSessionCookie(c)
		}
		s.writeError(c, err)
		return nil, false
	}
	return ctx, true
}

// checkCSRF runs the CSRF guard for a mutating request. A violation leaves
// the cookie and the bound secret untouched.
func (s *HTTPServer) checkCSRF(ctx context.Context, c *gin.Context) bool {
	if err := auth.CheckCSRF(ctx, c.GetHeader(common.CSRFHeaderName)); err != nil {
		metrics.GateRejectionsTotal.WithLabelValues(metrics.RejectCSRF).Inc()
		s.logger.Warn(ctx, "csrf check failed", "path", c.FullPath())
		s.writeError(c, err)
		return false
	}
	return true
}

// authenticateMutation is the gate followed by the CSRF guard.
func (s *HTTPServer) authenticateMutation(c *gin.Context) (context.Context, bool) {
	ctx, ok := s.authenticate(c)
	if !ok {
		return nil, false
	}
	if !s.checkCSRF(ctx, c) {
		return nil, false
	}
	return ctx, true
}
