package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/sendfleet/campaignsync/config"
	"github.com/sendfleet/campaignsync/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(&cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close archive database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return services.Run(ctx)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting campaignsync service",
		"channel_url", cfg.Channel.URL,
		"http_addr", cfg.HTTP.Addr,
		"archive_enabled", cfg.Archive.Enabled,
		"cache_enabled", cfg.Cache.Enabled)
}

// initInfrastructure connects the optional archive database and snapshot
// cache. Both are nil when disabled via config.
func initInfrastructure(cfg *config.AppConfig) (*sql.DB, *redis.Client, error) {
	var db *sql.DB
	if cfg.Archive.Enabled {
		conn, err := bootstrap.ConnectArchiveDB(cfg.Archive)
		if err != nil {
			return nil, nil, fmt.Errorf("connect archive db: %w", err)
		}
		db = conn
	}

	if !cfg.Cache.Enabled {
		return db, nil, nil
	}
	redisClient, err := bootstrap.ConnectCacheRedis(cfg.Cache)
	if err != nil {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close archive db: %w", cerr)))
			}
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return db, redisClient, nil
}
