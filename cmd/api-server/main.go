package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("locks", cfg.LockBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   appointment.Repository
		pgPool *pgxpool.Pool
		rdb    *redis.Client
	)

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		if err := db.Migrate(rootCtx, pgPool, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		repo = appointment.NewPgRepository(pgPool)

	case config.StoreBackendMemory:
		store := memstore.New()
		ds, err := seed.Generate(seed.DefaultOptions())
		if err != nil {
			logger.Fatal().Err(err).Msg("generate demo clinic")
		}
		if err := seed.LoadInto(rootCtx, store, ds); err != nil {
			logger.Fatal().Err(err).Msg("load demo clinic")
		}
		logger.Warn().
			Int("employees", len(ds.Employees)).
			Int("patients", len(ds.Patients)).
			Msg("using in-memory store with a generated clinic, nothing is persisted")
		repo = store
	}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		locker = redisclient.NewRedisResourceLocker(rdb, cfg.LockTTL)
	case config.LockBackendLocal:
		locker = redisclient.NewLocalResourceLocker(cfg.LockTTL)
	}

	rules := dependency.NewEngine(repo, logger)
	validator := constraint.NewValidator(repo, cfg.HistoryLimit, logger)
	resolver := availability.NewResolver(repo, repo, conflict.NewDetector(repo), logger)
	svc := appointment.NewService(repo, locker, validator, rules, cfg, logger)
	publisher := newPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event publisher")
		}
	}()
	svc.WithPublisher(publisher)

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Resolver:     resolver,
		Rules:        rules,
		Health:       api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	logger.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newPublisher(cfg config.Config, logger zerolog.Logger) notify.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info().Msg("KAFKA_BROKERS not set, appointment events are not published")
		return notify.Nop{}
	}
	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing appointment events")
	return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}
