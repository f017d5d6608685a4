package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/forgo/docrepo/internal/database"
)

// SurrealStore implements Store on SurrealDB. Each collection is a table of
// {doc_id, doc} records keyed by the document id.
type SurrealStore struct {
	db     database.Database
	prefix string
	known  sync.Map
}

// NewSurrealStore creates a store over an already connected database.
// Table names are the collection names with prefix prepended.
func NewSurrealStore(db database.Database, prefix string) *SurrealStore {
	return &SurrealStore{db: db, prefix: prefix}
}

type surrealRow struct {
	DocID string   `json:"doc_id"`
	Doc   Document `json:"doc"`
}

func (s *SurrealStore) table(collection string) string {
	return s.prefix + collection
}

// AddCollection defines the table, a unique doc_id index and the given indexes
// in one transaction.
func (s *SurrealStore) AddCollection(ctx context.Context, name string, indexes ...Index) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	for _, ix := range indexes {
		if err := ix.Validate(); err != nil {
			return err
		}
	}
	exists, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	tb := s.table(name)
	batch := database.NewAtomicBatch()
	batch.Add(fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", tb), nil)
	batch.Add(fmt.Sprintf("DEFINE INDEX IF NOT EXISTS %s_doc_id ON TABLE %s FIELDS doc_id UNIQUE", tb, tb), nil)
	for _, ix := range indexes {
		batch.Add(surrealDefineIndex(tb, Index{Name: tb + "_" + ix.Name, Fields: ix.Fields, Unique: ix.Unique}), nil)
	}
	if err := batch.Execute(ctx, s.db); err != nil {
		return fmt.Errorf("define collection %s: %w", name, err)
	}
	s.known.Store(name, true)
	return nil
}

// HasCollection reports whether the table is defined.
func (s *SurrealStore) HasCollection(ctx context.Context, name string) (bool, error) {
	tables, err := s.tables(ctx)
	if err != nil {
		return false, err
	}
	_, ok := tables[s.table(name)]
	return ok, nil
}

// DropCollection removes the table and its records.
func (s *SurrealStore) DropCollection(ctx context.Context, name string) error {
	if err := s.ensure(ctx, name); err != nil {
		return err
	}
	s.known.Delete(name)
	if err := s.db.Execute(ctx, fmt.Sprintf("REMOVE TABLE %s", s.table(name)), nil); err != nil {
		return fmt.Errorf("remove collection %s: %w", name, err)
	}
	return nil
}

// ListCollections returns the prefixed tables, without the prefix, sorted.
func (s *SurrealStore) ListCollections(ctx context.Context) ([]string, error) {
	tables, err := s.tables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tables))
	for tb := range tables {
		if name, ok := strings.CutPrefix(tb, s.prefix); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *SurrealStore) tables(ctx context.Context) (map[string]any, error) {
	result, err := s.db.QueryOne(ctx, "INFO FOR DB", nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var info struct {
		Tables map[string]any `json:"tables"`
	}
	if err := remarshal(result, &info); err != nil {
		return nil, fmt.Errorf("%w: decode db info: %v", database.ErrQuery, err)
	}
	if info.Tables == nil {
		info.Tables = map[string]any{}
	}
	return info.Tables, nil
}

// ensure returns ErrCollectionNotFound unless the table is defined.
func (s *SurrealStore) ensure(ctx context.Context, name string) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	if _, ok := s.known.Load(name); ok {
		return nil
	}
	exists, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	s.known.Store(name, true)
	return nil
}

func (s *SurrealStore) recordVars(collection, id string) map[string]interface{} {
	return map[string]interface{}{"tb": s.table(collection), "id": id}
}

// AddDoc creates the record; an existing id or unique index hit is ErrDocumentExists.
func (s *SurrealStore) AddDoc(ctx context.Context, collection, id string, doc Document) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}
	vars := s.recordVars(collection, id)
	vars["doc"] = map[string]any(norm)
	err = s.db.Execute(ctx, `CREATE type::thing($tb, $id) CONTENT { doc_id: $id, doc: $doc }`, vars)
	return s.writeErr(err, collection, id)
}

// UpdateDoc merges doc into the stored document at the top level.
func (s *SurrealStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) error {
	existing, err := s.GetDoc(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}
	return s.write(ctx, "UPDATE", collection, id, mergeShallow(existing, norm))
}

// UpsertDoc merges into an existing document or creates it.
func (s *SurrealStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) error {
	existing, err := s.GetDoc(ctx, collection, id)
	if err != nil {
		return err
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}
	if existing != nil {
		norm = mergeShallow(existing, norm)
	}
	return s.write(ctx, "UPSERT", collection, id, norm)
}

// ReplaceDoc overwrites an existing document.
func (s *SurrealStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) error {
	existing, err := s.GetDoc(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}
	return s.write(ctx, "UPDATE", collection, id, norm)
}

func (s *SurrealStore) write(ctx context.Context, verb, collection, id string, doc Document) error {
	vars := s.recordVars(collection, id)
	vars["doc"] = map[string]any(doc)
	err := s.db.Execute(ctx, verb+` type::thing($tb, $id) CONTENT { doc_id: $id, doc: $doc }`, vars)
	return s.writeErr(err, collection, id)
}

func (s *SurrealStore) writeErr(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, database.ErrDuplicate) {
		return fmt.Errorf("%w: %s in %s: %v", ErrDocumentExists, id, collection, err)
	}
	return err
}

// DeleteDoc removes the record if present.
func (s *SurrealStore) DeleteDoc(ctx context.Context, collection, id string) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	return s.db.Execute(ctx, `DELETE type::thing($tb, $id)`, s.recordVars(collection, id))
}

// GetDoc returns the document, or nil when the record does not exist.
func (s *SurrealStore) GetDoc(ctx context.Context, collection, id string) (Document, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}
	result, err := s.db.QueryOne(ctx, `SELECT doc_id, doc FROM type::thing($tb, $id)`, s.recordVars(collection, id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var row surrealRow
	if err := remarshal(result, &row); err != nil {
		return nil, fmt.Errorf("%w: decode %s in %s: %v", database.ErrQuery, id, collection, err)
	}
	if row.Doc == nil {
		row.Doc = Document{}
	}
	return row.Doc, nil
}

// FindDocs returns matching documents ordered by id unless OrderBy is given.
func (s *SurrealStore) FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.find(ctx, collection, filter, nil, opts)
}

// FindPartialDocs returns projections of matching documents.
func (s *SurrealStore) FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	if err := sel.Validate(); err != nil {
		return failed(err)
	}
	return s.find(ctx, collection, filter, &sel, opts)
}

func (s *SurrealStore) find(ctx context.Context, collection string, filter Filter, sel *PartialSelect, opts []FindOption) iter.Seq2[Document, error] {
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
		if err := s.ensure(ctx, collection); err != nil {
			yield(nil, err)
			return
		}
		query, vars, err := surrealSelect(filter, o)
		if err != nil {
			yield(nil, err)
			return
		}
		vars["tb"] = s.table(collection)

		results, err := s.db.Query(ctx, query, vars)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, raw := range resultRows(results) {
			var row surrealRow
			if err := remarshal(raw, &row); err != nil {
				yield(nil, fmt.Errorf("%w: decode row in %s: %v", database.ErrQuery, collection, err))
				return
			}
			doc := row.Doc
			if doc == nil {
				doc = Document{}
			}
			if sel != nil {
				doc = sel.Project(doc)
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// CountDocs counts matching documents.
func (s *SurrealStore) CountDocs(ctx context.Context, collection string, filter Filter) (int, error) {
	filter = OrAny(filter)
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if err := s.ensure(ctx, collection); err != nil {
		return 0, err
	}
	query, vars, err := surrealCount(filter)
	if err != nil {
		return 0, err
	}
	vars["tb"] = s.table(collection)

	result, err := s.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var row struct {
		Count int `json:"count"`
	}
	if err := remarshal(result, &row); err != nil {
		return 0, fmt.Errorf("%w: decode count: %v", database.ErrQuery, err)
	}
	return row.Count, nil
}

// resultRows unwraps the {status, result} envelope of the last statement.
func resultRows(results []interface{}) []interface{} {
	if len(results) == 0 {
		return nil
	}
	last := results[len(results)-1]
	if resp, ok := last.(map[string]interface{}); ok {
		if rows, ok := resp["result"].([]interface{}); ok {
			return rows
		}
	}
	return nil
}

// remarshal converts a decoded query value into out through JSON.
func remarshal(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
