package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"storefront/internal/config"
	"storefront/internal/database"
)

// Open builds the backend named by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (Storage, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "file":
		return NewFileStorage(cfg.Storage.Path, log)
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(ctx, cfg.Storage.Path)
	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStorage(client, cfg.Storage.Prefix), nil
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStorage(pool, cfg.Storage.Prefix), nil
	case "s3":
		return NewObjectStorage(ctx, cfg.ObjectStore, cfg.Storage.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
