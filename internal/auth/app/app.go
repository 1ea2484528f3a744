package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrum0/scrum0/internal/auth/gateway"
	"github.com/scrum0/scrum0/internal/auth/health"
	"github.com/scrum0/scrum0/internal/auth/housekeeping"
	httpapi "github.com/scrum0/scrum0/internal/auth/http"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/internal/auth/store"
	"github.com/scrum0/scrum0/internal/auth/store/drivers/sqlite"
	"github.com/scrum0/scrum0/pkg/cryptox"
	"github.com/scrum0/scrum0/pkg/slogx"
	"github.com/scrum0/scrum0/pkg/supabase"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the dashboard's session stack and its HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db           store.Store
	gateway      *gateway.Supabase
	controller   *session.Controller
	housekeeping *housekeeping.Service

	// baseCtx is the parent of every request context. Cancelling it ends
	// long-lived event streams, which Server.Shutdown does not track.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	server *http.Server
	router *httpapi.Router
}

// New wires every dependency. It does not contact the backend; see Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "scrum0-dashboard",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSession(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run initializes the session and serves until a signal or a server error.
func (app *Application) Run() error {
	app.gateway.Start()
	app.housekeeping.Start()

	ctx, cancel := context.WithTimeout(app.baseCtx, app.cfg.BackendTimeout+5*time.Second)
	if err := app.controller.Init(ctx); err != nil {
		// A backend that is down at startup is not fatal; the state carries
		// the error and the next operation checks again.
		app.logger.Warn("session initialization incomplete", "error", err)
	}
	cancel()

	app.logger.Info("dashboard starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"demo_mode", app.controller.DemoMode(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
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

// Shutdown stops the server, the controller, the backend connection and the
// database, in that order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dashboard...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	app.cancelBase()
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.controller.Close()
	app.gateway.Close()
	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("dashboard stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initSession builds the backend client, the gateway, the connection monitor
// and the controller. Sessions are persisted only for a configured backend.
func (app *Application) initSession() error {
	client := supabase.NewClient(app.cfg.SupabaseURL, app.cfg.SupabaseAnonKey)

	gwCfg := gateway.Config{
		Timeout:         app.cfg.BackendTimeout,
		EventsPerSecond: app.cfg.RealtimeEventsPerSecond,
	}
	if client.Configured() {
		sealer, err := cryptox.NewSealer(app.cfg.SupabaseAnonKey, app.cfg.SessionSecret)
		if err != nil {
			return fmt.Errorf("failed to initialize token sealer: %w", err)
		}
		gwCfg.Storage = store.NewSessionStorageAdapter(app.db, sealer, client.BaseURL)
		if app.cfg.SessionSecret == "" {
			app.logger.Warn("SESSION_SECRET not set, stored tokens are sealed with the public key only")
		}
	}

	app.gateway = gateway.NewSupabase(client, gwCfg, app.logger.With("component", "gateway"))
	monitor := health.NewMonitor(app.gateway, app.logger.With("component", "health"))
	app.controller = session.NewController(app.gateway, monitor, app.logger.With("component", "session"))

	app.housekeeping = housekeeping.New(
		app.db,
		app.logger.With("component", "housekeeping"),
		app.cfg.HousekeepingInterval,
		app.cfg.SessionRetention,
	)
	return nil
}

func (app *Application) initHTTP() {
	app.baseCtx, app.cancelBase = context.WithCancel(context.Background())

	router := httpapi.NewRouter(app.controller, app.db, httpapi.RouterConfig{
		BuildVersion:   BuildVersion,
		AllowedOrigins: app.cfg.AllowedOrigins,
	}, app.logger)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return app.baseCtx },
	}
}
