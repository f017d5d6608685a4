package provision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/docrepo/internal/docstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvisioner_EnsureIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.AddCollection(ctx, "audit"))
	require.NoError(t, store.AddDoc(ctx, "audit", "a1", docstore.Document{"event": "boot"}))

	m, err := ParseManifest(strings.NewReader(usersManifest))
	require.NoError(t, err)
	p := NewProvisioner(store, discardLogger())

	res, err := p.Ensure(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, res.Created)
	assert.Equal(t, []string{"audit"}, res.Skipped)

	doc, err := store.GetDoc(ctx, "audit", "a1")
	require.NoError(t, err)
	assert.NotNil(t, doc, "existing collections keep their documents")

	res, err = p.Ensure(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"users", "audit"}, res.Skipped)
}

func TestProvisioner_EnsureAppliesIndexes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m, err := ParseManifest(strings.NewReader(usersManifest))
	require.NoError(t, err)

	_, err = NewProvisioner(store, discardLogger()).Ensure(ctx, m)
	require.NoError(t, err)

	require.NoError(t, store.AddDoc(ctx, "users", "u1", docstore.Document{"state": map[string]any{"email": "ann@example.com"}}))
	err = store.AddDoc(ctx, "users", "u2", docstore.Document{"state": map[string]any{"email": "ann@example.com"}})
	assert.ErrorIs(t, err, docstore.ErrDocumentExists)
}

func TestProvisioner_Drop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.AddCollection(ctx, "users"))

	res, err := NewProvisioner(store, nil).Drop(ctx, "users", "ghosts")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, res.Dropped)
	assert.Equal(t, []string{"ghosts"}, res.Skipped)

	has, err := store.HasCollection(ctx, "users")
	require.NoError(t, err)
	assert.False(t, has)
}

type brokenStore struct {
	docstore.Store
}

func (brokenStore) HasCollection(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestProvisioner_StoreFailure(t *testing.T) {
	t.Parallel()

	m := &Manifest{Collections: []Collection{{Name: "users"}}}
	_, err := NewProvisioner(brokenStore{}, discardLogger()).Ensure(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check collection users")
}
