package docstore

import (
	"context"
	"errors"
	"iter"
)

// Standard errors for document store operations.
var (
	// ErrCollectionNotFound indicates the collection has not been provisioned.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates AddCollection was called for an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDocumentExists indicates an add or a unique index hit an existing document.
	ErrDocumentExists = errors.New("document already exists")

	// ErrDocumentNotFound indicates an update targeted a missing document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidQuery indicates a malformed filter, projection, field path or pagination bound.
	ErrInvalidQuery = errors.New("invalid query")
)

// Index describes a secondary index created with a collection.
type Index struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
	Unique bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Validate checks the index definition.
func (ix Index) Validate() error {
	if err := ValidateCollection(ix.Name); err != nil {
		return err
	}
	if len(ix.Fields) == 0 {
		return errorf("index %s has no fields", ix.Name)
	}
	for _, f := range ix.Fields {
		if err := ValidateField(f); err != nil {
			return err
		}
	}
	return nil
}

// Store is a collection-oriented document store.
//
// Lookups of missing documents return (nil, nil). FindDocs and FindPartialDocs
// are lazy: the query runs when the sequence is ranged over, and any error is
// yielded as the last element.
type Store interface {
	// Collection management
	AddCollection(ctx context.Context, name string, indexes ...Index) error
	HasCollection(ctx context.Context, name string) (bool, error)
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)

	// Writes
	AddDoc(ctx context.Context, collection, id string, doc Document) error
	UpdateDoc(ctx context.Context, collection, id string, doc Document) error
	UpsertDoc(ctx context.Context, collection, id string, doc Document) error
	ReplaceDoc(ctx context.Context, collection, id string, doc Document) error
	DeleteDoc(ctx context.Context, collection, id string) error

	// Reads
	GetDoc(ctx context.Context, collection, id string) (Document, error)
	FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error]
	FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error]
	CountDocs(ctx context.Context, collection string, filter Filter) (int, error)
}

// Collect drains a document sequence into a slice.
func Collect(seq iter.Seq2[Document, error]) ([]Document, error) {
	docs := make([]Document, 0)
	for doc, err := range seq {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// failed returns a sequence that yields err once.
func failed(err error) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		yield(nil, err)
	}
}
