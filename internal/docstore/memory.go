package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory.
// Documents are normalized through JSON on write and deep copied on read, so
// callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	docs    map[string]Document
	indexes []Index
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// AddCollection creates a collection. Unique indexes are enforced on write.
func (s *MemoryStore) AddCollection(ctx context.Context, name string, indexes ...Index) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	for _, ix := range indexes {
		if err := ix.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	s.collections[name] = &memCollection{
		docs:    make(map[string]Document),
		indexes: append([]Index(nil), indexes...),
	}
	return nil
}

// HasCollection reports whether the collection exists.
func (s *MemoryStore) HasCollection(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// DropCollection removes a collection and its documents.
func (s *MemoryStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(s.collections, name)
	return nil
}

// ListCollections returns collection names in sorted order.
func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AddDoc stores a new document.
func (s *MemoryStore) AddDoc(ctx context.Context, collection, id string, doc Document) error {
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDocumentExists, id, collection)
	}
	return c.put(id, norm)
}

// UpdateDoc merges doc into the stored document at the top level.
func (s *MemoryStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) error {
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	existing, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	return c.put(id, mergeShallow(existing, norm))
}

// UpsertDoc merges into an existing document or adds a new one.
func (s *MemoryStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) error {
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if existing, ok := c.docs[id]; ok {
		norm = mergeShallow(existing, norm)
	}
	return c.put(id, norm)
}

// ReplaceDoc overwrites an existing document.
func (s *MemoryStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) error {
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	return c.put(id, norm)
}

// DeleteDoc removes a document. Deleting a missing document is not an error.
func (s *MemoryStore) DeleteDoc(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	delete(c.docs, id)
	return nil
}

// GetDoc returns a copy of the document, or nil when it does not exist.
func (s *MemoryStore) GetDoc(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

// FindDocs returns matching documents ordered by id unless OrderBy is given.
func (s *MemoryStore) FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.find(ctx, collection, filter, nil, opts)
}

// FindPartialDocs returns projections of matching documents.
func (s *MemoryStore) FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	if err := sel.Validate(); err != nil {
		return failed(err)
	}
	return s.find(ctx, collection, filter, &sel, opts)
}

// CountDocs counts matching documents.
func (s *MemoryStore) CountDocs(ctx context.Context, collection string, filter Filter) (int, error) {
	filter = OrAny(filter)
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, doc := range c.docs {
		if filter.Match(id, doc) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) find(ctx context.Context, collection string, filter Filter, sel *PartialSelect, opts []FindOption) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		filter := OrAny(filter)
		if err := filter.Validate(); err != nil {
			yield(nil, err)
			return
		}
		o, err := ResolveFindOptions(opts...)
		if err != nil {
			yield(nil, err)
			return
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		matches, err := s.snapshot(collection, filter)
		if err != nil {
			yield(nil, err)
			return
		}
		sortMatches(matches, o.Sort)

		matches = paginate(matches, o)
		for _, m := range matches {
			doc := m.doc
			if sel != nil {
				doc = sel.Project(doc)
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

type memMatch struct {
	id  string
	doc Document
}

// snapshot copies matching documents out from under the lock so iteration
// never holds it.
func (s *MemoryStore) snapshot(collection string, filter Filter) ([]memMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	matches := make([]memMatch, 0)
	for id, doc := range c.docs {
		if filter.Match(id, doc) {
			matches = append(matches, memMatch{id: id, doc: doc.Clone()})
		}
	}
	return matches, nil
}

func (s *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// put stores doc under id after checking unique indexes.
func (c *memCollection) put(id string, doc Document) error {
	for _, ix := range c.indexes {
		if !ix.Unique {
			continue
		}
		key, ok := indexKey(ix, doc)
		if !ok {
			continue
		}
		for otherID, other := range c.docs {
			if otherID == id {
				continue
			}
			if otherKey, ok := indexKey(ix, other); ok && otherKey == key {
				return fmt.Errorf("%w: unique index %s violated by %s", ErrDocumentExists, ix.Name, id)
			}
		}
	}
	c.docs[id] = doc
	return nil
}

// indexKey encodes the indexed values; documents missing a field are not indexed.
func indexKey(ix Index, doc Document) (string, bool) {
	values := make([]any, 0, len(ix.Fields))
	for _, f := range ix.Fields {
		v, ok := doc.Get(f)
		if !ok || v == nil {
			return "", false
		}
		values = append(values, v)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func paginate(matches []memMatch, o FindOptions) []memMatch {
	if o.Skip >= len(matches) {
		return nil
	}
	matches = matches[o.Skip:]
	if o.Limit != nil && *o.Limit < len(matches) {
		matches = matches[:*o.Limit]
	}
	return matches
}

func sortMatches(matches []memMatch, sorts []Sort) {
	sort.SliceStable(matches, func(i, j int) bool {
		for _, s := range sorts {
			a, aok := matches[i].doc.Get(s.Field)
			b, bok := matches[j].doc.Get(s.Field)
			c := orderValues(a, aok, b, bok)
			if c == 0 {
				continue
			}
			if s.Order == Desc {
				return c > 0
			}
			return c < 0
		}
		return matches[i].id < matches[j].id
	})
}

// orderValues sorts missing values first, then by JSON type, then by value.
func orderValues(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	case []any:
		return 4
	case map[string]any:
		return 5
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 6
}
