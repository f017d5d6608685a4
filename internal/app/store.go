package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/forgo/docrepo/internal/config"
	"github.com/forgo/docrepo/internal/database"
	"github.com/forgo/docrepo/internal/docstore"
)

// Backend is an opened store together with the connections behind it.
type Backend struct {
	Store docstore.Store
	Name  string

	pings   []func(context.Context) error
	closers []func() error
}

// Ping checks every connection the store depends on.
func (b *Backend) Ping(ctx context.Context) error {
	for _, ping := range b.pings {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// OpenStore connects the configured backend. A nil reg skips instrumentation.
func OpenStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{Name: cfg.Store.Backend}

	store, err := b.openBase(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	logger.Info("document store opened",
		slog.String("backend", cfg.Store.Backend),
		slog.String("prefix", cfg.Store.Prefix),
	)

	if reg != nil {
		store = docstore.Instrument(store, reg)
	}

	if cfg.Cache.Enabled {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Cache.Addr},
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: redis %s: %v", database.ErrConnection, cfg.Cache.Addr, err)
		}
		b.pings = append(b.pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		store = docstore.NewCachedStore(store, docstore.NewRedisCache(client, cfg.Cache.Prefix), cfg.Cache.TTL, logger)
		logger.Info("document cache enabled",
			slog.String("addr", cfg.Cache.Addr),
			slog.Duration("ttl", cfg.Cache.TTL),
		)
	}

	b.Store = store
	return b, nil
}

func (b *Backend) openBase(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(), nil

	case config.BackendSurreal:
		db := database.NewSurrealDB(database.Config{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			Namespace: cfg.Database.Namespace,
			Database:  cfg.Database.Database,
		})
		if err := db.Connect(ctx); err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.pings = append(b.pings, db.Ping)
		return docstore.NewSurrealStore(db, cfg.Store.Prefix), nil

	case config.BackendPostgres:
		pool, err := docstore.NewPostgresPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrConnection, err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		b.pings = append(b.pings, pool.Ping)
		return docstore.NewPostgresStore(pool, cfg.Store.Prefix), nil

	case config.BackendSQLite:
		db, err := docstore.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrConnection, err)
		}
		b.closers = append(b.closers, db.Close)
		b.pings = append(b.pings, db.PingContext)
		return docstore.NewSQLiteStore(db, cfg.Store.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
