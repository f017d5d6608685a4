package repository_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/model"
	"github.com/forgo/docrepo/internal/repository"
)

func ExampleWithFailure() {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	_ = store.AddCollection(ctx, "users")
	_ = store.AddDoc(ctx, "users", "u1", docstore.Document{"state": map[string]any{"name": "Ann"}})

	repo := repository.NewDocumentRepository[map[string]any](store, "users", repository.StateMap)

	conflict := func(msg string) error { return model.NewConflictError(msg) }
	err := repo.DontNeedDocument(ctx, "u1", repository.WithFailure(conflict))

	var pd *model.ProblemDetails
	fmt.Println(errors.As(err, &pd), pd.Status)
	fmt.Println(pd.Detail)
	// Output:
	// true 409
	// Resource with id 'u1' already exists in document store 'users'
}
