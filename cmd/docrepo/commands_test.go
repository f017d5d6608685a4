package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/repository"
)

// memoryOpener hands every command the same in-memory store.
func memoryOpener(store docstore.Store) opener {
	return func(context.Context, string) (*session, error) {
		return &session{store: store, logger: nil}, nil
	}
}

func seededStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.AddCollection(ctx, "users"))
	people := []struct {
		id   string
		name string
		age  int
	}{{"u1", "Ann", 34}, {"u2", "Bob", 27}, {"u3", "Cid", 41}}
	for _, p := range people {
		require.NoError(t, store.AddDoc(ctx, "users", p.id, docstore.Document{
			"id":    p.id,
			"state": map[string]any{"name": p.name, "age": p.age},
		}))
	}
	return store
}

func run(t *testing.T, store docstore.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(memoryOpener(store))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGet(t *testing.T) {
	t.Parallel()
	store := seededStore(t)

	out, err := run(t, store, "get", "users", "u1")
	require.NoError(t, err)

	var resp struct {
		ID       string         `json:"id"`
		Document map[string]any `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "u1", resp.ID)
	assert.Equal(t, "Ann", resp.Document["state"].(map[string]any)["name"])
}

func TestGet_State(t *testing.T) {
	t.Parallel()

	out, err := run(t, seededStore(t), "get", "users", "u2", "--state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bob","age":27}`, out)
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	_, err := run(t, seededStore(t), "get", "users", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGet_YAML(t *testing.T) {
	t.Parallel()

	out, err := run(t, seededStore(t), "-o", "yaml", "get", "users", "u3")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "u3", resp["id"])
}

func TestUnknownOutputFormat(t *testing.T) {
	t.Parallel()

	_, err := run(t, seededStore(t), "-o", "xml", "collections")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestFind(t *testing.T) {
	t.Parallel()
	store := seededStore(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"all by id", nil, []string{"u1", "u2", "u3"}},
		{"filter", []string{"--filter", `{"op":"gt","field":"state.age","value":30}`}, []string{"u1", "u3"}},
		{"descending", []string{"--order", "-state.age"}, []string{"u3", "u1", "u2"}},
		{"skip and limit", []string{"--order", "state.name", "--skip", "1", "--limit", "1"}, []string{"u2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := run(t, store, append([]string{"find", "users"}, tt.args...)...)
			require.NoError(t, err)

			var docs []map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &docs))
			ids := make([]string, 0, len(docs))
			for _, d := range docs {
				ids = append(ids, d["id"].(string))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFind_Select(t *testing.T) {
	t.Parallel()

	out, err := run(t, seededStore(t), "find", "users", "--select", "state.name:name", "--limit", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Ann"}]`, out)
}

func TestFind_States(t *testing.T) {
	t.Parallel()

	out, err := run(t, seededStore(t), "find", "users", "--states", "--filter", `{"op":"id","id":"u2"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Bob","age":27}]`, out)
}

func TestFind_InvalidArgs(t *testing.T) {
	t.Parallel()
	store := seededStore(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad filter", []string{"--filter", `{"op":"nope"}`}},
		{"bad order", []string{"--order", "-"}},
		{"negative limit", []string{"--limit", "-5"}},
		{"negative skip", []string{"--skip", "-5"}},
		{"states with select", []string{"--states", "--select", "id"}},
		{"unknown collection", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			collection := "users"
			if tt.args == nil {
				collection = "ghosts"
			}
			_, err := run(t, store, append([]string{"find", collection}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	out, err := run(t, seededStore(t), "count", "users", "--filter", `{"op":"lt","field":"state.age","value":40}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, out)
}

func TestPut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("upsert merges", func(t *testing.T) {
		t.Parallel()
		store := seededStore(t)
		_, err := run(t, store, "put", "users", "u1", "--doc", `{"role":"admin"}`)
		require.NoError(t, err)

		doc, err := store.GetDoc(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "admin", doc["role"])
		assert.Contains(t, doc, "state")
	})

	t.Run("replace overwrites", func(t *testing.T) {
		t.Parallel()
		store := seededStore(t)
		_, err := run(t, store, "put", "users", "u1", "--replace", "--doc", `{"role":"admin"}`)
		require.NoError(t, err)

		doc, err := store.GetDoc(ctx, "users", "u1")
		require.NoError(t, err)
		assert.NotContains(t, doc, "state")
	})

	t.Run("replace missing", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, seededStore(t), "put", "users", "u9", "--replace", "--doc", `{}`)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("create taken", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, seededStore(t), "put", "users", "u1", "--create", "--doc", `{}`)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("generated id", func(t *testing.T) {
		t.Parallel()
		store := seededStore(t)
		out, err := run(t, store, "put", "users", "--doc", `{"state":{"name":"Dee"}}`)
		require.NoError(t, err)

		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		id, _ := resp["id"].(string)
		require.NotEmpty(t, id)

		n, err := store.CountDocs(ctx, "users", docstore.Any())
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("stamps id", func(t *testing.T) {
		t.Parallel()
		store := seededStore(t)
		_, err := run(t, store, "put", "users", "u7", "--doc", `{"state":{"name":"Eve"}}`)
		require.NoError(t, err)

		out, err := run(t, store, "find", "users", "--filter", `{"op":"eq","field":"id","value":"u7"}`)
		require.NoError(t, err)
		var docs []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, "u7", docs[0]["id"])
	})

	t.Run("not an object", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, seededStore(t), "put", "users", "u1", "--doc", `[1,2]`)
		assert.Error(t, err)
	})

	t.Run("bad id", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, seededStore(t), "put", "users", "a b", "--doc", `{}`)
		assert.Error(t, err)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore(t)

	_, err := run(t, store, "delete", "users", "u2")
	require.NoError(t, err)

	doc, err := store.GetDoc(ctx, "users", "u2")
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = run(t, store, "delete", "users", "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = run(t, store, "delete", "users", "u2", "--missing-ok")
	assert.NoError(t, err)
}

func TestProvisionAndDrop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	path := filepath.Join(t.TempDir(), "collections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`collections:
  - name: users
    indexes:
      - name: by_email
        fields: [state.email]
        unique: true
  - name: audit
`), 0o600))

	out, err := run(t, store, "-o", "yaml", "provision", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created:")

	out, err = run(t, store, "collections")
	require.NoError(t, err)
	assert.JSONEq(t, `["audit","users"]`, out)

	out, err = run(t, store, "provision", "--file", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"skipped":["users","audit"]}`, out)

	_, err = run(t, store, "drop", "audit", "missing")
	require.NoError(t, err)
	ok, err := store.HasCollection(ctx, "audit")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvision_RequiresFile(t *testing.T) {
	t.Parallel()

	_, err := run(t, docstore.NewMemoryStore(), "provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
}
