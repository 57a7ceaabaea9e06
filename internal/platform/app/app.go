package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/campusware/campus/internal/platform/http"
	"github.com/campusware/campus/internal/platform/service"
	"github.com/campusware/campus/internal/platform/store"
	"github.com/campusware/campus/internal/platform/store/drivers/sqlite"
	"github.com/campusware/campus/pkg/httpx"
	"github.com/campusware/campus/pkg/jwtx"
	"github.com/campusware/campus/pkg/passwd"
	"github.com/campusware/campus/pkg/slogx"
	"github.com/campusware/campus/pkg/ttlstore"

	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via
// -ldflags "-X .../internal/platform/app.BuildVersion=<version>".
var BuildVersion = "v0.1.0"

// Application encapsulates the campus auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	csrfStore   ttlstore.Store[httpx.CsrfRecord]
	csrfSweeper *ttlstore.Sweeper
	redis       *redis.Client

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// Config validation happens first: identical or missing signing secrets must
// kill the process before anything is listening.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "campus-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initCsrfStore()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.csrfSweeper.Start()

	app.logger.Info("campus auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down campus auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the background workers
	app.housekeepingService.Stop()
	app.csrfSweeper.Stop()

	// Close external connections
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("campus auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCsrfStore picks the CSRF token store driver. In-memory by default;
// setting REDIS_ADDR shares the store across instances without touching any
// call site.
func (app *Application) initCsrfStore() {
	if app.cfg.RedisAddr == "" {
		app.csrfStore = ttlstore.NewMemory[httpx.CsrfRecord]()
		return
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	app.csrfStore = ttlstore.NewRedis[httpx.CsrfRecord](app.redis, "csrf")
	app.logger.Info("csrf store backed by redis", "addr", app.cfg.RedisAddr)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Access:     jwtx.NewHS256([]byte(app.cfg.AccessSecret)),
		Refresh:    jwtx.NewHS256([]byte(app.cfg.RefreshSecret)),
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.userService = &service.UserService{
		Store:  app.db,
		Hasher: passwd.NewHasher(passwd.DefaultMaxConcurrent),
	}

	app.housekeepingService = service.NewHousekeepingService(app.logger, app.cfg.SweepInterval)
	app.housekeepingService.Register("refresh_tokens", app.tokenService.SweepExpired)

	// The CSRF store sweeps on its own loop; for the Redis driver this is a
	// no-op since keys expire server-side.
	app.csrfSweeper = ttlstore.NewSweeper("csrf_tokens", app.cfg.SweepInterval,
		app.csrfStore.Sweep, app.logger)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	csrf := httpx.NewCsrfGuard(app.csrfStore, app.cfg.CsrfTokenTTL, app.cfg.Env == "prod")

	router := httpapi.NewRouter(
		app.tokenService.Access,
		csrf,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
