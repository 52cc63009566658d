// Command server runs the wanderplan API: the HTTP surface, the job
// worker pool and the background sweeps.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wanderplan/wanderplan-api/internal/config"
	"github.com/wanderplan/wanderplan-api/internal/events"
	"github.com/wanderplan/wanderplan-api/internal/generation"
	"github.com/wanderplan/wanderplan-api/internal/job"
	"github.com/wanderplan/wanderplan-api/internal/platform/gemini"
	"github.com/wanderplan/wanderplan-api/internal/platform/geo"
	"github.com/wanderplan/wanderplan-api/internal/platform/logger"
	"github.com/wanderplan/wanderplan-api/internal/platform/postgres"
	platformredis "github.com/wanderplan/wanderplan-api/internal/platform/redis"
	"github.com/wanderplan/wanderplan-api/internal/platform/weather"
	"github.com/wanderplan/wanderplan-api/internal/recommendation"
	"github.com/wanderplan/wanderplan-api/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "reason", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("starting wanderplan API", "port", cfg.Server.Port)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if err := migrate(db); err != nil {
		return err
	}

	app, err := buildApp(cfg, db, log)
	if err != nil {
		return err
	}

	return serve(cfg, app, log)
}

// openDatabase opens and pings the Postgres pool through the pgx stdlib
// driver.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// migrate applies the embedded goose migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// app bundles the long-running components main has to start and stop.
type app struct {
	router    http.Handler
	runner    *job.Runner
	sweeper   *job.Sweeper
	lifecycle *job.LifecycleManager
}

// buildApp wires stores, backends and services together.
func buildApp(cfg *config.Config, db *sql.DB, log *slog.Logger) (*app, error) {
	jobStore := postgres.NewPostgresJobStore(db)
	scheduleStore := postgres.NewPostgresScheduleStore(db)
	recommendationStore := postgres.NewPostgresRecommendationStore(db)

	backend, err := gemini.NewGeminiBackend(context.Background(), log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation backend: %w", err)
	}

	selector := generation.NewModelSelector(cfg.LLM.DefaultModel, cfg.LLM.HighPerformanceModel)
	location := geo.NewClient(cfg.Location, log)
	forecasts := weather.NewClient(cfg.Weather, log)
	publisher := events.NewInMemoryPublisher(log)

	var statusCache platformredis.StatusCache
	if cfg.Redis.URL != "" {
		cache, err := platformredis.NewRedisStatusCache(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create status cache: %w", err)
		}
		statusCache = cache
	} else {
		log.Info("no redis configured, status snapshots disabled")
	}

	lifecycle := job.NewLifecycleManager(jobStore, cfg.Job.MaxRetry, log)
	pipeline := job.NewPipelineOrchestrator(
		lifecycle,
		job.NewTxScheduleRepository(db, scheduleStore),
		location, forecasts, backend, publisher,
		cfg.Job.StageTimeout, log)
	runner := job.NewRunner(lifecycle, pipeline, job.RunnerConfig{
		WorkerCount: cfg.Job.WorkerCount,
		QueueSize:   cfg.Job.QueueSize,
	}, log)
	sweeper := job.NewSweeper(lifecycle, runner, recommendationStore, job.SweeperConfig{
		SweepSchedule:           cfg.Job.SweepSchedule,
		RetryBackoff:            cfg.Job.RetryBackoff,
		CleanupAge:              cfg.Job.CleanupAge,
		CacheCleanupSchedule:    cfg.Cache.CleanupSchedule,
		CacheTTL:                cfg.Cache.TTL,
		CacheLowAccessThreshold: cfg.Cache.LowAccessThreshold,
	}, log)

	jobService := job.NewService(lifecycle, runner, selector, statusCache, cfg.Redis.StatusTTL, log)
	recommendationService := recommendation.NewService(
		recommendationStore, backend, selector, cfg.Cache.TTL, log)

	return &app{
		router:    newRouter(jobService, recommendationService, statusCache, db, log),
		runner:    runner,
		sweeper:   sweeper,
		lifecycle: lifecycle,
	}, nil
}

// serve runs the HTTP server, the worker pool and the sweeps until a
// shutdown signal arrives, then drains them.
func serve(cfg *config.Config, app *app, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.runner.Start(ctx); err != nil {
		return err
	}
	if err := app.runner.Recover(ctx); err != nil {
		log.Error("job recovery failed, continuing with empty queue", "error", err)
	}
	if err := app.sweeper.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}

		app.sweeper.Stop()
		app.runner.Stop()
		return nil
	})

	return group.Wait()
}
