package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/health"
	pkgkafka "github.com/prakulphogat2922-ctrl/AleartECO/pkg/kafka"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/config"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/event"
	handler "github.com/prakulphogat2922-ctrl/AleartECO/internal/handler/http"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/service"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/store"
	filestore "github.com/prakulphogat2922-ctrl/AleartECO/internal/store/file"
	pgstore "github.com/prakulphogat2922-ctrl/AleartECO/internal/store/postgres"
	"github.com/prakulphogat2922-ctrl/AleartECO/migrations"
)

// App wires together all dependencies and runs the backend.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	producer   *pkgkafka.Producer
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// The storage backend is decided here, once, from configuration; nothing
// downstream ever re-checks it.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler()

	var userStore store.Store
	switch cfg.StorageMode() {
	case config.StorageManaged:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL", slog.String("database", cfg.PostgresDB))

		if err := pgstore.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		a.pool = pool
		userStore = pgstore.NewStore(pool)
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

	case config.StorageFile:
		fs := filestore.NewStore(cfg.UsersFilePath)
		if err := fs.Init(); err != nil {
			return nil, fmt.Errorf("init file store: %w", err)
		}
		logger.Warn("no database configured, using flat-file user store",
			slog.String("path", cfg.UsersFilePath),
		)

		userStore = fs
		healthHandler.RegisterCritical("file-store", func(ctx context.Context) error {
			return fs.Ping(ctx)
		})
	}

	// Kafka is optional; without brokers the backend runs event-less and
	// the publisher stays nil.
	var eventProducer service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	userService := service.NewUserService(userStore, tokens, eventProducer, logger)

	router := handler.NewRouter(cfg, userService, tokens, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage_mode", a.cfg.StorageMode()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server first so
// in-flight requests drain, then the Kafka producer, then the database pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
