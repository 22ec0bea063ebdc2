package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func errorBody(title, detail string) gin.H {
	return gin.H{"errors": []problem{{Title: title, Detail: detail}}}
}

func success(title, detail string, extra gin.H) gin.H {
	body := gin.H{"title": title, "detail": detail}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

// problemFor maps a service error to a status and a fixed message. Internal
// error text never reaches the client.
func problemFor(err error) (int, problem) {
	var ve *common.ValidationError
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, problem{"Registration Error", "Email is already registered"}
	case errors.As(err, &ve):
		return http.StatusBadRequest, problem{"Validation Error", ve.Error()}
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, problem{"Validation Error", "Request contains invalid fields"}
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, problem{"Invalid credentials", "Check email and password combination"}
	case errors.Is(err, common.ErrCSRFViolation):
		return http.StatusUnauthorized, problem{"Unauthorized", "Missing or invalid CSRF token"}
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, problem{"Unauthorized", "Not authorized to access this route"}
	default:
		return http.StatusInternalServerError, problem{"Server Error", "Something went wrong with your request"}
	}
}

func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status, p := problemFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"errors": []problem{p}})
}

func (s *HTTPServer) badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("Bad Request", "Request body must be JSON with the required fields"))
}

func (s *HTTPServer) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.SessionCookieName, token, s.cookieMaxAge, "/", "", s.cookieSecure, true)
}

func (s *HTTPServer) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.SessionCookieName, "", -1, "/", "", s.cookieSecure, true)
}
