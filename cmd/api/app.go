package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	adapterHTTP "github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/cache"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/notifier"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/config"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/workers"
)

const tokenTTL = 30 * 24 * time.Hour

// app holds the wired object graph shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	habits       domain.HabitRepository
	completions  domain.CompletionRepository
	settingsRepo domain.UserSettingsRepository
	redis        *redis.Client
	notifier     domain.Notifier

	settings *services.SettingsService
	tokens   *services.TokenService
	verifier *services.SecretVerifier
	auth     *services.AuthService
	habitSvc *services.HabitService
	stats    *services.StatsService

	repairWorker *workers.StreakRepairWorker
	sweeper      *workers.ReminderSweeper

	healthChecks map[string]adapterHTTP.HealthCheck
	closers      []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:          cfg,
		logger:       logger,
		healthChecks: make(map[string]adapterHTTP.HealthCheck),
	}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.settings = services.NewSettingsService(a.settingsRepo, cfg.Timezone, cfg.DefaultReminderTime)
	a.tokens = services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, tokenTTL, a.settingsRepo)
	a.verifier = services.NewSecretVerifier(cfg.CronSecretHash)
	a.auth = services.NewAuthService(a.verifier, a.settings, a.tokens)

	a.repairWorker = workers.NewStreakRepairWorker(a.habits, a.completions, logger)
	a.habitSvc = services.NewHabitService(a.habits, a.completions, a.settings, a.repairWorker)
	a.stats = services.NewStatsService(a.habits, a.completions)

	a.sweeper = workers.NewReminderSweeper(a.habits, a.completions, a.settings, a.notifier, workers.ReminderSweeperConfig{
		Interval:            cfg.ReminderInterval,
		Location:            cfg.Location,
		DefaultReminderTime: cfg.DefaultReminderTime,
	}, logger)

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	switch a.cfg.DBDriver {
	case config.DriverPostgres:
		a.logger.Info("connecting to postgres", zap.String("host", a.cfg.DBHost), zap.String("database", a.cfg.DBName))
		db, err := sqlx.ConnectContext(ctx, "pgx", a.cfg.PostgresDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := repository.EnsurePostgresSchema(ctx, db); err != nil {
			return err
		}

		a.habits = repository.NewPostgresHabitRepository(db)
		a.completions = repository.NewPostgresCompletionRepository(db)
		a.settingsRepo = repository.NewPostgresUserSettingsRepository(db)
		a.healthChecks["database"] = db.PingContext

	case config.DriverMongo:
		a.logger.Info("connecting to mongo", zap.String("database", a.cfg.MongoDB))
		client, err := repository.ConnectMongo(ctx, a.cfg.MongoURI)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

		db := client.Database(a.cfg.MongoDB)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			return err
		}

		a.habits = repository.NewMongoHabitRepository(db)
		a.completions = repository.NewMongoCompletionRepository(db)
		a.settingsRepo = repository.NewMongoUserSettingsRepository(db)
		a.healthChecks["database"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }

	case config.DriverMemory:
		a.logger.Warn("using in-memory storage, data is lost on exit")
		a.habits = repository.NewInMemoryHabitRepository()
		a.completions = repository.NewInMemoryCompletionRepository()
		a.settingsRepo = repository.NewInMemoryUserSettingsRepository()

	default:
		return fmt.Errorf("unknown storage driver %q", a.cfg.DBDriver)
	}
	return nil
}

// openRedis enables the list cache, the rate limiter and the outbox notifier
// when REDIS_ADDR is set. Only the outbox makes Redis mandatory.
func (a *app) openRedis(ctx context.Context) error {
	a.notifier = notifier.NewLogNotifier(a.logger)

	if a.cfg.RedisAddr == "" {
		return nil
	}

	rdb, err := cache.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, 0)
	if err != nil {
		if a.cfg.Notifier == config.NotifierRedis {
			return err
		}
		a.logger.Warn("redis unavailable, running without cache and rate limiting", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, rdb.Close)
	a.redis = rdb

	a.habits = repository.NewCachedHabitRepository(a.habits, rdb, a.logger)
	a.healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	if a.cfg.Notifier == config.NotifierRedis {
		a.notifier = notifier.NewRedisOutbox(rdb, notifier.DefaultOutboxKey)
	}
	return nil
}

func (a *app) routerDependencies(startTime time.Time) adapterHTTP.RouterDependencies {
	return adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(a.auth),
		HabitHandler:    adapterHTTP.NewHabitHandler(a.habitSvc, a.settings),
		SettingsHandler: adapterHTTP.NewSettingsHandler(a.settings),
		StatsHandler:    adapterHTTP.NewStatsHandler(a.stats, a.settings),
		CronHandler:     adapterHTTP.NewCronHandler(a.sweeper),
		TokenService:    a.tokens,
		SecretVerifier:  a.verifier,
		Redis:           a.redis,
		HealthChecks:    a.healthChecks,
		Logger:          a.logger,
		StartTime:       startTime,
	}
}

// Close releases connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
