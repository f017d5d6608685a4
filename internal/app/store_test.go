package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/docrepo/internal/config"
	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/testing/testdb"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		Store:  config.StoreConfig{Backend: backend, Prefix: "doc_"},
		SQLite: config.SQLiteConfig{Path: ":memory:"},
		Cache:  config.CacheConfig{TTL: time.Minute, Prefix: "docrepo_test:"},
	}
}

func TestOpenStore_Memory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, err := OpenStore(ctx, testConfig(config.BackendMemory), nil, quietLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	assert.IsType(t, &docstore.MemoryStore{}, b.Store)
	assert.NoError(t, b.Ping(ctx))
}

func TestOpenStore_SQLiteInstrumented(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	b, err := OpenStore(ctx, testConfig(config.BackendSQLite), reg, quietLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	require.IsType(t, &docstore.InstrumentedStore{}, b.Store)
	require.NoError(t, b.Ping(ctx))

	require.NoError(t, b.Store.AddCollection(ctx, "users"))
	require.NoError(t, b.Store.AddDoc(ctx, "users", "u1", docstore.Document{"state": map[string]any{"name": "Ann"}}))
	doc, err := b.Store.GetDoc(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, docstore.Document{"state": map[string]any{"name": "Ann"}}, doc)

	n, err := testutil.GatherAndCount(reg, "docstore_operations_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := OpenStore(context.Background(), testConfig("mongo"), nil, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "mongo"`)
}

func TestOpenStore_RedisCache(t *testing.T) {
	testdb.Redis(t)

	ctx := context.Background()
	cfg := testConfig(config.BackendMemory)
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = os.Getenv("TEST_REDIS_ADDR")
	cfg.Cache.Prefix = "docrepo_test:" + testdb.UniquePrefix()

	b, err := OpenStore(ctx, cfg, nil, quietLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	assert.IsType(t, &docstore.CachedStore{}, b.Store)
	assert.NoError(t, b.Ping(ctx))
}
