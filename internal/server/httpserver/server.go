// Package httpserver exposes the account API over HTTP with gin.
//
// Handlers compose the auth gate and the CSRF guard explicitly; there is no
// authentication middleware in the router.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/logging"
	"github.com/dmitrijs2005/sessionguard/internal/server/config"
	"github.com/dmitrijs2005/sessionguard/internal/server/metrics"
	"github.com/dmitrijs2005/sessionguard/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	address  string
	users    *services.UserService
	sessions *services.SessionService
	store    Pinger
	logger   logging.Logger

	cookieSecure bool
	cookieMaxAge int
	origins      []string

	engine *gin.Engine
}

func NewHTTPServer(cfg *config.Config, l logging.Logger, us *services.UserService, ss *services.SessionService, store Pinger) *HTTPServer {
	s := &HTTPServer{
		address:      cfg.EndpointAddrHTTP,
		users:        us,
		sessions:     ss,
		store:        store,
		logger:       l.With("module", "http_server"),
		cookieSecure: cfg.CookieSecure,
		cookieMaxAge: int(cfg.CookieMaxAge / time.Second),
		origins:      cfg.CORSAllowedOrigins,
	}
	s.engine = s.newRouter()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), metrics.Middleware())

	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", common.CSRFHeaderName},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := r.Group("/api/users")
	{
		users.POST("/register", s.register)
		users.POST("/login", s.login)
		users.GET("/me", s.me)
		users.POST("/logout", s.logout)
		users.DELETE("/me", s.deleteAccount)
		users.PUT("/me/password", s.changePassword)
		users.GET("/me/sessions", s.listSessions)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Not Found", "No such route"))
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
