package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"taxigrid/internal/config"
	"taxigrid/internal/dispatch"
)

// Backend is an opened position store plus whatever else the backend offers.
type Backend struct {
	Name        string
	Positions   dispatch.PositionStore
	Events      dispatch.EventLogger      // nil for file and redis
	Idempotency dispatch.IdempotencyStore // postgres only
	Ping        func(context.Context) error
	closers     []func()
}

func (b *Backend) Close() {
	for _, c := range b.closers {
		c()
	}
}

// Open connects the configured backend. When a remote backend cannot be
// reached it logs a warning and falls back to the flat file store.
func Open(ctx context.Context, cfg config.StoreConfig, idemTTL time.Duration, log *slog.Logger) *Backend {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		b   *Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		b, err = openSQLite(cfg)
	case config.BackendPostgres:
		b, err = openPostgres(ctx, cfg, idemTTL)
	case config.BackendRedis:
		b, err = openRedis(ctx, cfg)
	}
	if err != nil {
		log.Warn("store_unavailable_fallback_file", "backend", cfg.Backend, "err", err)
	}
	if b == nil {
		b = fileBackend(cfg)
	}
	if fs, ok := b.Positions.(*FileStore); ok {
		log.Info("store_opened", "backend", b.Name, "path", fs.Path())
	} else {
		log.Info("store_opened", "backend", b.Name)
	}
	return b
}

func fileBackend(cfg config.StoreConfig) *Backend {
	return &Backend{
		Name:      config.BackendFile,
		Positions: NewFileStore(cfg.StatePath),
		Ping:      func(context.Context) error { return nil },
	}
}

func openSQLite(cfg config.StoreConfig) (*Backend, error) {
	db, err := OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Name:      config.BackendSQLite,
		Positions: db,
		Events:    db,
		Ping:      db.Ping,
		closers:   []func(){func() { db.Close() }},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.StoreConfig, idemTTL time.Duration) (*Backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := DefaultPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("schema init failed: %w", err)
	}
	pg := NewPostgres(pool)
	return &Backend{
		Name:        config.BackendPostgres,
		Positions:   pg,
		Events:      pg,
		Idempotency: NewIdempotencyStore(pool, idemTTL),
		Ping:        pg.Ping,
		closers:     []func(){pg.Close},
	}, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis URL parse error: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	r := NewRedis(client, cfg.RedisKey)
	return &Backend{
		Name:      config.BackendRedis,
		Positions: r,
		Ping:      r.Ping,
		closers:   []func(){func() { client.Close() }},
	}, nil
}
