package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SWAYAM31220/lootspy/internal/config"
	"github.com/SWAYAM31220/lootspy/internal/id"
	"github.com/SWAYAM31220/lootspy/internal/log"
	"github.com/SWAYAM31220/lootspy/internal/store"

	"github.com/redis/go-redis/v9"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

func openSQL(cfg *config.Config) (*sql.DB, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("store driver %s has no SQL schema", cfg.StoreDriver)
}

// openStore connects the configured store, applying pending migrations for SQL drivers.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Reservations, func(), error) {
	if cfg.StoreDriver == config.DriverRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		node, err := id.NewNode(cfg.NodeID)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store.NewRedisStore(client, node, logger), func() { client.Close() }, nil
	}

	db, err := openSQL(cfg)
	if err != nil {
		return nil, nil, err
	}
	n, err := store.Migrate(db, cfg.StoreDriver, migrate.Up)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Schema up to date", zap.Int("applied", n), zap.String("driver", cfg.StoreDriver))

	closeDB := func() { db.Close() }
	if cfg.StoreDriver == config.DriverPostgres {
		return store.NewPGStore(db, logger), closeDB, nil
	}
	return store.NewSQLiteStore(db, logger), closeDB, nil
}
