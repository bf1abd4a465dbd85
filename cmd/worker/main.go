// Package main - точка входа для фонового процесса (Worker) academy core.
//
// Worker отвечает за периодические задачи:
// - Привязка пробных сессий к заявкам и синхронизация статусов заявок
// - Прогрев кеша курсов валют
// - Пересчёт устаревших снимков прогресса по курсам
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/academy-core/config"
	"github.com/alem-hub/academy-core/internal/application/service"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/internal/infrastructure/external/exchangerate"
	"github.com/alem-hub/academy-core/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/academy-core/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/academy-core/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/academy-core/internal/infrastructure/scheduler"
	"github.com/alem-hub/academy-core/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE"), ".env"); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting academy worker",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("timezone", cfg.App.Timezone),
	)

	clock := timeutil.System()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. БАЗА ДАННЫХ И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	pool := postgres.DefaultPoolConfig()
	pool.MaxConns = int32(cfg.Database.MaxConns)
	pool.MinConns = int32(cfg.Database.MinConns)
	pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	db, err := postgres.NewConnection(ctx, cfg.Database.URL, pool)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. КЕШ (Redis или in-process)
	// ─────────────────────────────────────────────────────────────────────────
	cache, closeCache := setupCache(cfg, clock, log)
	defer closeCache()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	fallback, err := config.LoadFallbackTable(cfg.ExchangeRate.FallbackFile)
	if err != nil {
		return fmt.Errorf("failed to load fallback rates: %w", err)
	}

	rateClientCfg := exchangerate.DefaultClientConfig(cfg.ExchangeRate.BaseURL)
	rateClientCfg.Timeout = cfg.ExchangeRate.RequestTimeout
	rateClientCfg.MaxAttempts = cfg.ExchangeRate.MaxRetries
	rateClientCfg.BreakerThreshold = cfg.ExchangeRate.CircuitBreakerThreshold
	rateClientCfg.BreakerTimeout = cfg.ExchangeRate.CircuitBreakerTimeout
	rateClientCfg.Logger = log

	rates := service.NewExchangeRateService(
		exchangerate.NewClient(rateClientCfg),
		cache,
		clock,
		log,
		service.ExchangeRateConfig{
			CacheTTL:       cfg.Cache.RateTTL,
			RequestTimeout: cfg.ExchangeRate.RequestTimeout,
			Fallback:       fallback,
		},
	)

	sessions := postgres.NewSessionRepository(db)
	settings := service.NewSessionSettingsService(postgres.NewSettingsRepository(db), cache, log, cfg.Cache.SettingsTTL)
	trialSync := service.NewTrialRequestSyncService(postgres.NewTrialRepository(db), sessions, settings, clock, log)

	snapshots := postgres.NewSnapshotRepository(db)
	courseProgress := service.NewCourseProgressService(
		postgres.NewCourseRepository(db),
		snapshots,
		cache,
		clock,
		log,
		cfg.Cache.ProgressTTL,
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	schedCfg.Clock = clock
	schedCfg.Timezone = cfg.App.Location
	schedCfg.RunOnStart = cfg.Scheduler.RunOnStart
	sched := scheduler.New(schedCfg)

	syncCfg := jobs.DefaultSyncTrialSessionsConfig()
	syncCfg.Lookback = cfg.Scheduler.TrialSyncLookback
	syncCfg.BatchSize = cfg.Scheduler.TrialSyncBatchSize
	syncCfg.Timeout = cfg.Scheduler.JobTimeout

	if err := register(sched,
		jobs.NewSyncTrialSessionsJob(sessions, trialSync, clock, log, syncCfg),
		cfg.Scheduler.TrialSyncSchedule,
	); err != nil {
		return err
	}
	if err := register(sched,
		jobs.NewRefreshExchangeRatesJob(rates, cfg.ExchangeRate.WarmBase, cfg.ExchangeRate.WarmTargets, log),
		cfg.Scheduler.RateRefreshSchedule,
	); err != nil {
		return err
	}

	if err := register(sched,
		jobs.NewRefreshCourseProgressJob(snapshots, courseProgress, cfg.Scheduler.ProgressRefreshLimit, log),
		cfg.Scheduler.ProgressRefreshSchedule,
	); err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("academy worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal", slog.String("timeout", cfg.App.ShutdownTimeout.String()))

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			return fmt.Errorf("scheduler stop: %w", err)
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		return errors.New("shutdown timed out waiting for running jobs")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	opts.AddSource = cfg.Observability.AddSource

	log := logger.New(opts).With(slog.String("app", cfg.App.Name))
	slog.SetDefault(log)
	return log
}

// setupCache connects to Redis unless disabled. A failed connection degrades
// to the in-process cache rather than aborting startup.
func setupCache(cfg *config.Config, clock timeutil.Clock, log *slog.Logger) (shared.Cache, func()) {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, using in-process cache")
		return memory.NewCache(clock), func() {}
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		log.Warn("failed to connect to redis, using in-process cache", logger.Err(err))
		return memory.NewCache(clock), func() {}
	}

	log.Info("redis connection established", slog.String("addr", redisCfg.Addr()))
	return cache, func() { _ = cache.Close() }
}

func register(sched *scheduler.Scheduler, job scheduler.Job, spec string) error {
	schedule, err := scheduler.ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("schedule for %s: %w", job.Name(), err)
	}
	return sched.Register(job, schedule)
}
