package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type sessionView struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Current   bool       `json:"current"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c)
		return
	}

	user, session, err := s.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "Registered", "user_id", user.ID)
	s.setSessionCookie(c, session.Token)
	c.JSON(http.StatusCreated, success("User Registration Successful", "Successfully registered new user",
		gin.H{"csrfToken": session.CSRFSecret}))
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c)
		return
	}

	_, session, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setSessionCookie(c, session.Token)
	c.JSON(http.StatusOK, success("Login Successful", "Successfully validated user credentials",
		gin.H{"csrfToken": session.CSRFSecret}))
}

func (s *HTTPServer) me(c *gin.Context) {
	ctx, ok := s.authenticate(c)
	if !ok {
		return
	}

	user, err := s.users.Me(ctx)
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			s.clearSessionCookie(c)
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, success("Authentication successful", "Successfully authenticated user",
		gin.H{"user": gin.H{"email": user.Email}}))
}

func (s *HTTPServer) logout(c *gin.Context) {
	ctx, ok := s.authenticateMutation(c)
	if !ok {
		return
	}

	if err := s.users.Logout(ctx); err != nil {
		s.writeError(c, err)
		return
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, success("Logout Successful", "Successfully expired login session", nil))
}

func (s *HTTPServer) deleteAccount(c *gin.Context) {
	ctx, ok := s.authenticateMutation(c)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c)
		return
	}

	if err := s.users.DeleteAccount(ctx, req.Password, req.Email); err != nil {
		if errors.Is(err, common.ErrSessionTerminated) {
			s.clearSessionCookie(c)
		}
		s.writeError(c, err)
		return
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, success("Account Deleted", "Account removed and all sessions expired", nil))
}

func (s *HTTPServer) changePassword(c *gin.Context) {
	ctx, ok := s.authenticateMutation(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c)
		return
	}

	n, err := s.users.ChangePassword(ctx, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, success("Password Changed", "Password updated and other sessions expired",
		gin.H{"sessionsExpired": n}))
}

func (s *HTTPServer) listSessions(c *gin.Context) {
	ctx, ok := s.authenticate(c)
	if !ok {
		return
	}

	list, err := s.users.ListSessions(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}

	info, _ := auth.SessionFromContext(ctx)
	views := make([]sessionView, 0, len(list))
	for _, item := range list {
		v := sessionView{
			ID:        item.Fingerprint(),
			Status:    string(item.Status),
			Current:   item.Token == info.Token,
			CreatedAt: item.CreatedAt,
		}
		if !item.ExpiresAt.IsZero() {
			t := item.ExpiresAt
			v.ExpiresAt = &t
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, success("Sessions", "Sessions of the current user", gin.H{"sessions": views}))
}

func (s *HTTPServer) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Error(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
