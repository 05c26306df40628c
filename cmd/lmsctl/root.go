package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/database"
	"github.com/somosuni/lms-backend/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "lmsctl",
	Short:         "Operator tooling for the LMS backend",
	Long:          "lmsctl runs schema migrations, bootstraps admins and demo data, and inspects student progress.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(syncPermissionsCmd)
	rootCmd.AddCommand(seedCatalogCmd)
	rootCmd.AddCommand(seedStudentsCmd)
	rootCmd.AddCommand(progressCmd)
}

// env bundles what most subcommands need. Redis is only dialed on request.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	e.pool.Close()
}

func connect(ctx context.Context, withRedis bool) (*env, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	e := &env{cfg: cfg, log: log, pool: pool}

	if withRedis {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.rdb = rdb
	}
	return e, nil
}
