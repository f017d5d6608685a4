package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/forgo/docrepo/internal/testing/testdb"
)

func TestSurrealStore_Contract(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	runStoreContract(t, func(t *testing.T) Store {
		return NewSurrealStore(testdb.Surreal(t), "doc_")
	})
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := testdb.Postgres(t)
	ctx := context.Background()

	runStoreContract(t, func(t *testing.T) Store {
		s := NewPostgresStore(pool, testdb.UniquePrefix())
		t.Cleanup(func() {
			names, err := s.ListCollections(ctx)
			if err != nil {
				return
			}
			for _, name := range names {
				_ = s.DropCollection(ctx, name)
			}
		})
		return s
	})
}
