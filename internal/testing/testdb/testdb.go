// Package testdb provides isolated backend connections for integration tests.
//
// Each helper skips the calling test unless its environment variable names a
// reachable server, so the default `go test ./...` run needs no services:
//
//	TEST_DB_HOST     SurrealDB (TEST_DB_PORT, TEST_DB_USER, TEST_DB_PASSWORD)
//	TEST_PG_DSN      PostgreSQL
//	TEST_REDIS_ADDR  Redis
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.Surreal(t)  // unique namespace, removed on cleanup
//	    store := docstore.NewSurrealStore(db, "doc_")
//	}
package testdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/forgo/docrepo/internal/database"
)

var (
	// counterMu protects the namespace counter
	counterMu sync.Mutex
	counter   int64
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// surrealConfig returns database config from environment or defaults
func surrealConfig() database.Config {
	return database.Config{
		Host:     os.Getenv("TEST_DB_HOST"),
		Port:     envOr("TEST_DB_PORT", "8000"),
		User:     envOr("TEST_DB_USER", "root"),
		Password: envOr("TEST_DB_PASSWORD", "root"),
	}
}

// uniqueNamespace generates a unique namespace for test isolation
func uniqueNamespace() string {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter)
}

// UniquePrefix returns a table or key prefix no other test uses.
func UniquePrefix() string {
	return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "_"
}

// Ctx returns a context that is cancelled when the test ends.
func Ctx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Surreal connects to SurrealDB in a fresh namespace. The namespace is
// removed when the test ends.
func Surreal(t *testing.T) database.Database {
	t.Helper()

	cfg := surrealConfig()
	if cfg.Host == "" {
		t.Skip("testdb: TEST_DB_HOST not set")
	}
	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", cfg.Namespace), nil)
		_ = db.Close()
	})
	return db
}

// Postgres opens a small pool on TEST_PG_DSN. Callers isolate their tables
// with UniquePrefix.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("testdb: TEST_PG_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("testdb: invalid TEST_PG_DSN: %v", err)
	}
	config.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("testdb: failed to open pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("testdb: failed to ping postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// Redis connects to TEST_REDIS_ADDR. Callers isolate their keys with
// UniquePrefix.
func Redis(t *testing.T) redis.UniversalClient {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("testdb: TEST_REDIS_ADDR not set")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("testdb: failed to ping redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
