package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/fitlog/internal/api"
	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/cache"
	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/logging"
	"example.com/fitlog/internal/persistence/memory"
	"example.com/fitlog/internal/persistence/postgres"
	"example.com/fitlog/internal/persistence/sqlite"
	httptransport "example.com/fitlog/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat, "fitlog-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	statsCache, closeCache, err := openStatsCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	service := domain.NewService(repo,
		domain.WithStatsCache(statsCache),
		domain.WithBcryptCost(cfg.BcryptCost),
	)

	handler := api.NewHandler(service, auth.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTTL,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, router)

	logger.Info().
		Str("storage", cfg.StorageDriver).
		Str("cache", cfg.CacheDriver).
		Msg("fitlog api starting")
	return httptransport.Run(ctx, server, cfg.ShutdownTimeout)
}

func openRepository(ctx context.Context, cfg config.Config) (domain.Repository, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.NewRepository(), func() {}, nil
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewRepository(pool), pool.Close, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return sqlite.NewRepository(db), closeDB, nil
	}
}

func openStatsCache(ctx context.Context, cfg config.Config) (domain.StatsCache, func(), error) {
	switch cfg.CacheDriver {
	case config.CacheLocal:
		store, err := cache.NewLocalStore(cache.LocalConfig{
			MaxSizeMB:   cfg.CacheMaxSizeMB,
			CounterSize: cfg.CacheCounterSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("local cache: %w", err)
		}
		return cache.NewStatsCache(store, cfg.CacheTTL), store.Close, nil
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache.NewStatsCache(cache.NewRedisStore(client), cfg.CacheTTL), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
