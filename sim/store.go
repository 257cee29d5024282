package sim

import (
	"context"
	"fmt"
	"strings"

	"verification/config"
	"verification/registry"
	"verification/store/memory"
	"verification/store/postgres"
	"verification/store/redis"
	"verification/store/sqlite"
)

// OpenStore opens the backend selected by cfg. The returned close function releases its
// connections.
func OpenStore(ctx context.Context, cfg config.Simulator) (registry.Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Store) {
	case config.StoreMemory:
		return memory.New(), noop, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	case config.StoreRedis:
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redis.New(client, cfg.RedisPrefix), client.Close, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store '%s'", cfg.Store)
	}
}
