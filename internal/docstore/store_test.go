package docstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns an empty store for one subtest.
type storeFactory func(t *testing.T) Store

// runStoreContract exercises the behavior every Store implementation shares.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("collections", func(t *testing.T) { testCollections(t, newStore(t)) })
	t.Run("crud", func(t *testing.T) { testCRUD(t, newStore(t)) })
	t.Run("unknown collection", func(t *testing.T) { testUnknownCollection(t, newStore(t)) })
	t.Run("find", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("find partial", func(t *testing.T) { testFindPartial(t, newStore(t)) })
	t.Run("count", func(t *testing.T) { testCount(t, newStore(t)) })
	t.Run("unique index", func(t *testing.T) { testUniqueIndex(t, newStore(t)) })
	t.Run("early break", func(t *testing.T) { testEarlyBreak(t, newStore(t)) })
	t.Run("invalid query", func(t *testing.T) { testInvalidQuery(t, newStore(t)) })
}

func person(name string, age int, tags ...string) Document {
	state := map[string]any{"name": name, "age": age}
	if len(tags) > 0 {
		state["tags"] = tags
	}
	return Document{"state": state}
}

func seedPeople(t *testing.T, s Store, collection string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddCollection(ctx, collection))
	require.NoError(t, s.AddDoc(ctx, collection, "p3", person("Carol", 41, "ops")))
	require.NoError(t, s.AddDoc(ctx, collection, "p1", person("Alice", 29, "dev", "ops")))
	require.NoError(t, s.AddDoc(ctx, collection, "p4", Document{"state": map[string]any{"name": "Dan"}}))
	require.NoError(t, s.AddDoc(ctx, collection, "p2", person("Bob", 35, "dev")))
}

func names(t *testing.T, docs []Document) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		v, ok := d.Get("state.name")
		require.True(t, ok, "document without state.name: %v", d)
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func testCollections(t *testing.T, s Store) {
	ctx := context.Background()

	has, err := s.HasCollection(ctx, "things")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.AddCollection(ctx, "things"))
	require.NoError(t, s.AddCollection(ctx, "widgets", Index{Name: "by_name", Fields: []string{"state.name"}}))

	has, err = s.HasCollection(ctx, "things")
	require.NoError(t, err)
	assert.True(t, has)

	err = s.AddCollection(ctx, "things")
	assert.ErrorIs(t, err, ErrCollectionExists)

	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Subset(t, list, []string{"things", "widgets"})

	require.NoError(t, s.DropCollection(ctx, "things"))
	has, err = s.HasCollection(ctx, "things")
	require.NoError(t, err)
	assert.False(t, has)

	err = s.DropCollection(ctx, "things")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	err = s.AddCollection(ctx, "bad-name")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func testCRUD(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.AddCollection(ctx, "users"))

	require.NoError(t, s.AddDoc(ctx, "users", "u1", Document{"state": map[string]any{"name": "Ann", "age": 30}}))

	doc, err := s.GetDoc(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, Document{"state": map[string]any{"name": "Ann", "age": float64(30)}}, doc)

	err = s.AddDoc(ctx, "users", "u1", Document{"state": map[string]any{}})
	assert.ErrorIs(t, err, ErrDocumentExists)

	missing, err := s.GetDoc(ctx, "users", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Top-level merge: "state" is replaced, "meta" is added.
	require.NoError(t, s.UpdateDoc(ctx, "users", "u1", Document{"meta": map[string]any{"v": 2}}))
	doc, err = s.GetDoc(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc["state"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"v": float64(2)}, doc["meta"])

	err = s.UpdateDoc(ctx, "users", "nope", Document{"a": 1})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, s.ReplaceDoc(ctx, "users", "u1", Document{"state": map[string]any{"name": "Anna"}}))
	doc, err = s.GetDoc(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, Document{"state": map[string]any{"name": "Anna"}}, doc)

	err = s.ReplaceDoc(ctx, "users", "nope", Document{"a": 1})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, s.UpsertDoc(ctx, "users", "u2", Document{"state": map[string]any{"name": "Ben"}}))
	require.NoError(t, s.UpsertDoc(ctx, "users", "u2", Document{"flag": true}))
	doc, err = s.GetDoc(ctx, "users", "u2")
	require.NoError(t, err)
	assert.Equal(t, Document{"state": map[string]any{"name": "Ben"}, "flag": true}, doc)

	require.NoError(t, s.DeleteDoc(ctx, "users", "u1"))
	doc, err = s.GetDoc(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, s.DeleteDoc(ctx, "users", "u1"))
}

func testUnknownCollection(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetDoc(ctx, "ghosts", "x")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	err = s.AddDoc(ctx, "ghosts", "x", Document{})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = Collect(s.FindDocs(ctx, "ghosts", nil))
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = s.CountDocs(ctx, "ghosts", nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func testFind(t *testing.T, s Store) {
	ctx := context.Background()
	seedPeople(t, s, "people")

	docs, err := Collect(s.FindDocs(ctx, "people", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dan"}, names(t, docs), "default order is by id")

	docs, err = Collect(s.FindDocs(ctx, "people", Gte("state.age", 35)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", Or(Eq("state.name", "Alice"), Not(Exists("state.age")))))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Dan"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", InArray("state.tags", "ops")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", In("state.name", "Bob", "Dan", "Zed")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Dan"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", DocID("p3")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", Gt("state.name", 10)))
	require.NoError(t, err)
	assert.Empty(t, docs, "range comparisons never match across types")

	docs, err = Collect(s.FindDocs(ctx, "people", nil, Skip(1), Limit(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", nil, Skip(3)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dan"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", nil, Skip(10)))
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = Collect(s.FindDocs(ctx, "people", nil, Limit(0)))
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = Collect(s.FindDocs(ctx, "people", Exists("state.age"), OrderBy("state.age", Desc)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "Bob", "Alice"}, names(t, docs))

	docs, err = Collect(s.FindDocs(ctx, "people", nil, OrderBy("state.name", Desc), Limit(1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dan"}, names(t, docs))
}

func testFindPartial(t *testing.T, s Store) {
	ctx := context.Background()
	seedPeople(t, s, "people")

	sel := Select("state.name").As("state.age", "age")
	docs, err := Collect(s.FindPartialDocs(ctx, "people", sel, Lte("state.age", 35)))
	require.NoError(t, err)
	assert.Equal(t, []Document{
		{"state.name": "Alice", "age": float64(29)},
		{"state.name": "Bob", "age": float64(35)},
	}, docs)

	docs, err = Collect(s.FindPartialDocs(ctx, "people", Select("state.age"), DocID("p4")))
	require.NoError(t, err)
	assert.Equal(t, []Document{{"state.age": nil}}, docs)

	_, err = Collect(s.FindPartialDocs(ctx, "people", PartialSelect{}, nil))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func testCount(t *testing.T, s Store) {
	ctx := context.Background()
	seedPeople(t, s, "people")

	n, err := s.CountDocs(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.CountDocs(ctx, "people", Lt("state.age", 40))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountDocs(ctx, "people", Eq("state.name", "Nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testUniqueIndex(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.AddCollection(ctx, "accounts", Index{Name: "email", Fields: []string{"state.email"}, Unique: true}))

	require.NoError(t, s.AddDoc(ctx, "accounts", "a1", Document{"state": map[string]any{"email": "a@example.com"}}))
	err := s.AddDoc(ctx, "accounts", "a2", Document{"state": map[string]any{"email": "a@example.com"}})
	assert.ErrorIs(t, err, ErrDocumentExists)

	require.NoError(t, s.AddDoc(ctx, "accounts", "a3", Document{"state": map[string]any{"email": "b@example.com"}}))
	require.NoError(t, s.ReplaceDoc(ctx, "accounts", "a1", Document{"state": map[string]any{"email": "a@example.com", "v": 2}}))
}

func testEarlyBreak(t *testing.T, s Store) {
	ctx := context.Background()
	seedPeople(t, s, "people")

	seen := 0
	for doc, err := range s.FindDocs(ctx, "people", nil) {
		require.NoError(t, err)
		require.NotNil(t, doc)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	n, err := s.CountDocs(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func testInvalidQuery(t *testing.T, s Store) {
	ctx := context.Background()
	seedPeople(t, s, "people")

	_, err := Collect(s.FindDocs(ctx, "people", Eq("state..name", "x")))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = Collect(s.FindDocs(ctx, "people", nil, Skip(-1)))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = Collect(s.FindDocs(ctx, "people", nil, Limit(-5)))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.CountDocs(ctx, "people", Or())
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
