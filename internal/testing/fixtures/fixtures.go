// Package fixtures provides document factories for tests.
//
// Each factory method creates documents with sensible defaults while allowing
// customization via option functions. Factories write through the
// docstore.Store they were created with and return what was stored.
//
// Usage:
//
//	f := fixtures.New(store)
//	f.Collection(t, "users")
//	id, doc := f.CreateDocument(t, "users", fixtures.WithState(map[string]any{"name": "Ann"}))
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/docrepo/internal/docstore"
)

// Factory creates test documents in a store
type Factory struct {
	store docstore.Store
}

// New creates a new fixture factory
func New(store docstore.Store) *Factory {
	return &Factory{store: store}
}

// Store returns the store the factory writes to.
func (f *Factory) Store() docstore.Store {
	return f.store
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ctx returns a context with timeout
func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// Collection Fixtures
// ============================================================================

// Collection creates the named collection, or a randomly named one when name
// is empty, and returns its name.
func (f *Factory) Collection(t *testing.T, name string, indexes ...docstore.Index) string {
	t.Helper()

	if name == "" {
		name = "c_" + randomID()
	}
	if err := f.store.AddCollection(ctx(t), name, indexes...); err != nil {
		t.Fatalf("fixtures: failed to create collection %s: %v", name, err)
	}
	return name
}

// ============================================================================
// Document Fixtures
// ============================================================================

// DocumentOpts customizes document creation
type DocumentOpts struct {
	ID     string
	State  map[string]any
	Fields map[string]any
	// EmbedID copies the id into the document body, as the HTTP API does.
	EmbedID bool
}

// WithID sets the document id.
func WithID(id string) func(*DocumentOpts) {
	return func(o *DocumentOpts) { o.ID = id }
}

// WithState sets the "state" member.
func WithState(state map[string]any) func(*DocumentOpts) {
	return func(o *DocumentOpts) { o.State = state }
}

// WithField sets a top-level member.
func WithField(key string, value any) func(*DocumentOpts) {
	return func(o *DocumentOpts) { o.Fields[key] = value }
}

// WithoutState stores a document that has no "state" member.
func WithoutState() func(*DocumentOpts) {
	return func(o *DocumentOpts) { o.State = nil }
}

// CreateDocument stores a document and returns its id and body.
func (f *Factory) CreateDocument(t *testing.T, collection string, opts ...func(*DocumentOpts)) (string, docstore.Document) {
	t.Helper()

	o := &DocumentOpts{
		ID:      "doc_" + randomID(),
		State:   map[string]any{"name": fmt.Sprintf("name_%s", randomID())},
		Fields:  map[string]any{},
		EmbedID: true,
	}
	for _, fn := range opts {
		fn(o)
	}

	doc := docstore.Document{}
	for k, v := range o.Fields {
		doc[k] = v
	}
	if o.State != nil {
		doc["state"] = o.State
	}
	if o.EmbedID {
		doc["id"] = o.ID
	}

	if err := f.store.AddDoc(ctx(t), collection, o.ID, doc); err != nil {
		t.Fatalf("fixtures: failed to create document %s in %s: %v", o.ID, collection, err)
	}
	return o.ID, doc
}

// ============================================================================
// Scenario Fixtures
// ============================================================================

// Person is one row of the People scenario.
type Person struct {
	ID   string
	Name string
	Age  int
}

// People is the users collection most tests share.
var People = []Person{
	{ID: "u1", Name: "Ann", Age: 34},
	{ID: "u2", Name: "Bob", Age: 27},
	{ID: "u3", Name: "Cid", Age: 41},
}

// Users creates a "users" collection holding the first n People, each as
// {"id": ..., "state": {"name": ..., "age": ...}}.
func (f *Factory) Users(t *testing.T, n int) []string {
	t.Helper()

	f.Collection(t, "users")
	if n > len(People) {
		n = len(People)
	}
	ids := make([]string, 0, n)
	for _, p := range People[:n] {
		id, _ := f.CreateDocument(t, "users",
			WithID(p.ID),
			WithState(map[string]any{"name": p.Name, "age": p.Age}),
		)
		ids = append(ids, id)
	}
	return ids
}
