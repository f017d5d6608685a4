package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db, "doc_")
}

func TestSQLiteStore_Contract(t *testing.T) {
	t.Parallel()

	runStoreContract(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

func TestSQLiteStore_PrefixScopesCollections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteStore(t)

	_, err := s.db.ExecContext(ctx, `CREATE TABLE unrelated (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, s.AddCollection(ctx, "users"))

	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, list)
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	s := NewSQLiteStore(db, "")
	require.NoError(t, s.AddCollection(ctx, "notes"))
	require.NoError(t, s.AddDoc(ctx, "notes", "n1", Document{"state": map[string]any{"text": "hello"}}))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	s = NewSQLiteStore(db, "")

	doc, err := s.GetDoc(ctx, "notes", "n1")
	require.NoError(t, err)
	assert.Equal(t, Document{"state": map[string]any{"text": "hello"}}, doc)
}

func TestSQLiteStore_CompositeEquality(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.AddCollection(ctx, "shapes"))
	require.NoError(t, s.AddDoc(ctx, "shapes", "s1", Document{"point": map[string]any{"y": 2, "x": 1}, "flags": []any{true, nil}}))
	require.NoError(t, s.AddDoc(ctx, "shapes", "s2", Document{"point": map[string]any{"x": 1}, "flags": []any{false}}))

	docs, err := Collect(s.FindDocs(ctx, "shapes", Eq("point", map[string]any{"x": 1, "y": 2})))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2)}, docs[0]["point"])

	docs, err = Collect(s.FindDocs(ctx, "shapes", InArray("flags", nil)))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = Collect(s.FindDocs(ctx, "shapes", InArray("flags", false)))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = Collect(s.FindDocs(ctx, "shapes", Eq("flags", []any{false})))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
