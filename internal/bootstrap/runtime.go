// Package bootstrap wires the process-wide dependencies shared by the
// commands.
package bootstrap

import (
	"fmt"
	"log/slog"

	"yatube/internal/cache"
	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/middleware"
	"yatube/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedGroups upserts the built-in groups after the schema is applied.
	SeedGroups bool
}

// InitRuntime connects to the database and Redis and optionally seeds the
// built-in groups. The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if opts.SeedGroups {
		groups, err := seed.Groups(db, seed.DefaultGroups())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in groups: %w", err)
		}
		middleware.Logger.Info("built-in groups ensured", slog.Int("count", len(groups)))
	}

	return db, rdb, nil
}
