package repository

import (
	"context"
	"iter"
	"log/slog"

	"github.com/forgo/docrepo/internal/docstore"
)

// DocumentRepository gives typed access to one collection of a docstore.Store.
type DocumentRepository[T any] struct {
	store      docstore.Store
	collection string
	decode     Decoder[T]
}

// NewDocumentRepository creates a repository over collection.
func NewDocumentRepository[T any](store docstore.Store, collection string, decode Decoder[T]) *DocumentRepository[T] {
	return &DocumentRepository[T]{store: store, collection: collection, decode: decode}
}

// Collection returns the collection name.
func (r *DocumentRepository[T]) Collection() string {
	return r.collection
}

// Store returns the underlying store.
func (r *DocumentRepository[T]) Store() docstore.Store {
	return r.store
}

// FindDocuments returns the documents matching filter. A nil filter matches all.
func (r *DocumentRepository[T]) FindDocuments(ctx context.Context, filter docstore.Filter, opts ...docstore.FindOption) iter.Seq2[docstore.Document, error] {
	return r.store.FindDocs(ctx, r.collection, docstore.OrAny(filter), opts...)
}

// FindPartialDocuments returns the projection sel of the documents matching filter.
func (r *DocumentRepository[T]) FindPartialDocuments(ctx context.Context, sel docstore.PartialSelect, filter docstore.Filter, opts ...docstore.FindOption) iter.Seq2[docstore.Document, error] {
	return r.store.FindPartialDocs(ctx, r.collection, sel, docstore.OrAny(filter), opts...)
}

// FindDocumentStates decodes the matching documents, skipping those without a record.
func (r *DocumentRepository[T]) FindDocumentStates(ctx context.Context, filter docstore.Filter, opts ...docstore.FindOption) ([]*T, error) {
	states := make([]*T, 0)
	for doc, err := range r.FindDocuments(ctx, filter, opts...) {
		if err != nil {
			return nil, err
		}
		if state := r.StateFromDocument(doc); state != nil {
			states = append(states, state)
		}
	}
	return states, nil
}

// FindDocument returns the document, or nil if it does not exist.
func (r *DocumentRepository[T]) FindDocument(ctx context.Context, id string) (docstore.Document, error) {
	return r.store.GetDoc(ctx, r.collection, id)
}

// FindDocumentState returns the decoded record, or nil.
func (r *DocumentRepository[T]) FindDocumentState(ctx context.Context, id string) (*T, error) {
	doc, err := r.FindDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.StateFromDocument(doc), nil
}

// StateFromDocument decodes the state field of doc. It returns nil for a nil
// document, a missing or non-object state, or a failed decode.
func (r *DocumentRepository[T]) StateFromDocument(doc docstore.Document) *T {
	if doc == nil {
		return nil
	}
	var state map[string]any
	switch v := doc[StateField].(type) {
	case map[string]any:
		state = v
	case docstore.Document:
		state = v
	}
	if state == nil {
		slog.Debug("document has no state", "collection", r.collection)
		return nil
	}
	record, err := r.decode(state)
	if err != nil {
		slog.Debug("document state not decodable", "collection", r.collection, "error", err)
		return nil
	}
	return record
}

// HasDocument reports whether the document exists.
func (r *DocumentRepository[T]) HasDocument(ctx context.Context, id string) (bool, error) {
	doc, err := r.FindDocument(ctx, id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// HasNoDocument reports whether the document is absent.
func (r *DocumentRepository[T]) HasNoDocument(ctx context.Context, id string) (bool, error) {
	has, err := r.HasDocument(ctx, id)
	return !has, err
}

// NeedDocument returns the document or a NotFound failure. The returned
// document is never nil when err is nil.
func (r *DocumentRepository[T]) NeedDocument(ctx context.Context, id string, opts ...GuardOption) (docstore.Document, error) {
	doc, err := r.FindDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, guardFailure(r.collection, id, KindNotFound, notFoundMessage(r.collection, id), opts)
	}
	return doc, nil
}

// NeedDocumentState is NeedDocument followed by StateFromDocument. The record
// is nil if the document exists but cannot be decoded.
func (r *DocumentRepository[T]) NeedDocumentState(ctx context.Context, id string, opts ...GuardOption) (*T, error) {
	doc, err := r.NeedDocument(ctx, id, opts...)
	if err != nil {
		return nil, err
	}
	return r.StateFromDocument(doc), nil
}

// DontNeedDocument fails with a Conflict failure if the document exists.
func (r *DocumentRepository[T]) DontNeedDocument(ctx context.Context, id string, opts ...GuardOption) error {
	doc, err := r.FindDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc != nil {
		return guardFailure(r.collection, id, KindConflict, conflictMessage(r.collection, id), opts)
	}
	return nil
}
