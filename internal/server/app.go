// Package server wires configuration, storage, services and the HTTP API
// into a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/sessionguard/internal/logging"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
	"github.com/dmitrijs2005/sessionguard/internal/server/config"
	"github.com/dmitrijs2005/sessionguard/internal/server/httpserver"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionguard/internal/server/services"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	repomanager    repomanager.RepositoryManager
	userService    *services.UserService
	sessionService *services.SessionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	gin.SetMode(c.GinMode)

	rm, err := newRepositoryManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	hasher, err := auth.NewHasher(c.BcryptCost)
	if err != nil {
		_ = rm.Close(ctx)
		return nil, err
	}

	ss := services.NewSessionService(rm, auth.RandomTokens{}, c.SessionTTL, logger)
	us := services.NewUserService(rm, ss, hasher, logger)

	return &App{
		config:         c,
		logger:         logger,
		repomanager:    rm,
		userService:    us,
		sessionService: ss,
	}, nil
}

// newRepositoryManager opens the configured backend and, when a Redis URL is
// set, moves session storage to Redis.
func newRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	var (
		rm  repomanager.RepositoryManager
		err error
	)

	switch c.StorageBackend {
	case config.StoragePostgres:
		rm, err = repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
	case config.StorageMongo:
		rm, err = repomanager.NewMongoRepositoryManager(ctx, c.MongoURI, c.MongoDatabase)
	case config.StorageMemory:
		rm = repomanager.NewMemoryRepositoryManager()
	default:
		err = fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if err != nil {
		return nil, err
	}

	if c.RedisURL == "" {
		return rm, nil
	}

	rdb, err := repomanager.NewRedisClient(ctx, c.RedisURL)
	if err != nil {
		_ = rm.Close(ctx)
		return nil, err
	}
	return repomanager.WithRedisSessions(rm, rdb), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpserver.NewHTTPServer(app.config, app.logger, app.userService, app.sessionService, app.repomanager)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the storage backend.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend, "redis_sessions", app.config.RedisURL != "")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repomanager.Close(context.Background()); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
