package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/forgo/docrepo/internal/database"
	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/model"
	"github.com/forgo/docrepo/internal/repository"
)

// MapError converts a repository or store error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	// Guards configured with WithFailure already carry a response
	var pd *model.ProblemDetails
	if errors.As(err, &pd) {
		return pd
	}

	switch {
	// ===== Guard Errors → 404 / 409 =====
	case errors.Is(err, repository.ErrNotFound):
		return model.NewNotFoundError(err.Error())
	case errors.Is(err, repository.ErrConflict):
		return model.NewConflictError(err.Error())

	// ===== Store Errors =====
	case errors.Is(err, docstore.ErrInvalidQuery):
		return model.NewInvalidQueryError(err.Error())
	case errors.Is(err, docstore.ErrCollectionNotFound),
		errors.Is(err, docstore.ErrDocumentNotFound):
		return model.NewNotFoundError(err.Error())
	case errors.Is(err, docstore.ErrDocumentExists):
		return model.NewConflictError(err.Error())
	case errors.Is(err, docstore.ErrCollectionExists):
		return model.NewAlreadyExistsError(err.Error())

	// ===== Backend Errors → 502 / 503 =====
	case errors.Is(err, database.ErrConnection),
		errors.Is(err, context.DeadlineExceeded):
		return model.NewServiceUnavailableError("document store unavailable")
	case errors.Is(err, database.ErrQuery):
		return model.NewStoreError("document store query failed")

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapErrorWithContext converts an error to a ProblemDetails response
// with additional context about the operation that failed.
func MapErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapError(err)
	if pd != nil && pd.Status == http.StatusInternalServerError {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
