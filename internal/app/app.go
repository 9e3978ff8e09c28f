package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/config"
	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/aliuyar1234/nr01desk/internal/telemetry"
	"github.com/aliuyar1234/nr01desk/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the application state
type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Services *Services
	Router   http.Handler

	server        *http.Server
	stopTelemetry telemetry.Shutdown
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	SetupLogger(cfg.LogLevel)

	log.Info().Msg("Initializing nr01desk")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	stopTelemetry, err := telemetry.Init(ctx, cfg.Tracing, cfg.Env)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		_ = stopTelemetry(ctx)
		return nil, err
	}
	if err := metrics.RegisterPool(pool); err != nil {
		log.Warn().Err(err).Msg("Failed to register pool metrics")
	}

	log.Info().Msg("Initializing templates")
	if err := web.InitTemplates(); err != nil {
		pool.Close()
		_ = stopTelemetry(ctx)
		return nil, fmt.Errorf("failed to initialize templates: %w", err)
	}

	services, err := NewServices(pool, cfg)
	if err != nil {
		pool.Close()
		_ = stopTelemetry(ctx)
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       pool,
		Services: services,
		Router:   NewRouter(pool, cfg, services),

		stopTelemetry: stopTelemetry,
	}

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// Connect opens the database pool. In dev mode pending migrations are applied.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	log.Info().Msg("Connecting to database...")
	pool, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.IsDev() {
		log.Info().Msg("Development mode: running migrations automatically")
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		pending, err := db.PendingMigrations(ctx, pool)
		if err != nil {
			log.Warn().Err(err).Msg("Could not check pending migrations")
		} else if len(pending) > 0 {
			log.Warn().Strs("pending", pending).Msg("Production mode: run `nr01desk migrate` to apply pending migrations")
		}
	}
	return pool, nil
}

// Start starts the HTTP server and blocks until it stops.
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones and flushes
// pending spans.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	if a.stopTelemetry != nil {
		if terr := a.stopTelemetry(ctx); terr != nil {
			log.Warn().Err(terr).Msg("Failed to flush traces")
		}
	}
	return err
}

// Close gracefully shuts down the application
func (a *App) Close() {
	log.Info().Msg("Shutting down application")
	if a.DB != nil {
		log.Info().Msg("Closing database connection")
		a.DB.Close()
	}
}

// SetupLogger configures the global logger
func SetupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", level).Msg("Logger configured")
}
