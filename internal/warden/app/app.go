package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/warden/internal/warden/http"
	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/internal/warden/identity/lookup"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the warden service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	hasher   service.Hasher
	resolver *identity.Resolver

	// Services
	authService         *service.AuthenticationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "warden",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = &cryptox.LegacyHasher{Primary: cryptox.NewArgon2Hasher(pepper)}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initIdentity(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("warden starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close()
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
	app.logger.Info("shutting down warden...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("warden stopped")
	return nil
}

// Handler exposes the routed handler, mostly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// initDatabase opens the user store and applies migrations
func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg.Database)
	if err != nil {
		return err
	}
	app.db = db

	driver := "sqlite"
	if IsPostgres(app.cfg.Database) {
		driver = "postgres"
	}
	app.logger.Info("database migrations applied successfully", "driver", driver)
	return nil
}

// initIdentity builds the resolver and registers the lookup strategies in
// the order they are consulted within each source.
func (app *Application) initIdentity() error {
	resolver, err := identity.NewResolver(identity.Config{
		StrategyTimeout: app.cfg.StrategyTimeout,
		GlobalOverride:  app.cfg.IdentityOverride,
	})
	if err != nil {
		return fmt.Errorf("failed to create identity resolver: %w", err)
	}

	var strategies []identity.Strategy
	if len(app.cfg.TrustedProxyHeaders) > 0 {
		strategies = append(strategies, lookup.ProxyHeader{Headers: app.cfg.TrustedProxyHeaders})
	}
	strategies = append(strategies, lookup.PeerAddress{}, lookup.BrowserReported{})
	for _, u := range app.cfg.IdentityLookupURLs {
		strategies = append(strategies, lookup.NewExternalHTTP(u, app.cfg.StrategyTimeout))
	}
	for _, s := range strategies {
		if err := resolver.Register(s); err != nil {
			return err
		}
	}

	if app.cfg.IdentityOverride != "" {
		app.logger.Warn("global identity override active", "address", app.cfg.IdentityOverride)
	}
	app.logger.Info("identity resolver ready",
		"strategies", len(strategies),
		"external_lookups", len(app.cfg.IdentityLookupURLs),
	)

	app.resolver = resolver
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authService = &service.AuthenticationService{
		Store:   app.db,
		Hasher:  app.hasher,
		Lockout: app.cfg.LockoutPolicy(),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.resolver,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
		app.cfg.SessionTTL,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.AuthService = app.authService
	router.Resolver = app.resolver
	router.TrustedHeaders = app.cfg.TrustedProxyHeaders
	router.OperatorToken = app.cfg.OperatorToken
	router.LoginLimit = app.cfg.LoginLimit
	router.IdentityLimit = app.cfg.IdentityLimit
	router.ApplyRoutes()

	if app.cfg.OperatorToken == "" {
		app.logger.Info("operator override endpoints disabled, WARDEN_OPERATOR_TOKEN not set")
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
