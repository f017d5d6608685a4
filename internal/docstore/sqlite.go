package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on SQLite. Each collection is a table
// (id TEXT PRIMARY KEY, doc TEXT) holding JSON text.
type SQLiteStore struct {
	db     *sqlx.DB
	prefix string
}

// OpenSQLite opens a SQLite database. ":memory:" databases are pinned to a
// single connection so every query sees the same data; with such a handle a
// FindDocs sequence must be drained before the next store call.
func OpenSQLite(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewSQLiteStore creates a store over db. The handle is owned by the caller.
func NewSQLiteStore(db *sqlx.DB, prefix string) *SQLiteStore {
	return &SQLiteStore{db: db, prefix: prefix}
}

func (s *SQLiteStore) tableName(collection string) string {
	return s.prefix + collection
}

func (s *SQLiteStore) table(collection string) string {
	return `"` + s.tableName(collection) + `"`
}

// AddCollection creates the table and expression indexes in one transaction.
func (s *SQLiteStore) AddCollection(ctx context.Context, name string, indexes ...Index) error {
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

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tb := s.table(name)
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+tb+" (id TEXT PRIMARY KEY, doc TEXT NOT NULL)"); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	for _, ix := range indexes {
		exprs := make([]string, len(ix.Fields))
		for i, f := range ix.Fields {
			exprs[i] = "json_extract(doc, " + sqlitePath(f) + ")"
		}
		unique := ""
		if ix.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf(`CREATE %sINDEX "%s_%s" ON %s (%s)`, unique, s.tableName(name), ix.Name, tb, strings.Join(exprs, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s on %s: %w", ix.Name, name, err)
		}
	}
	return tx.Commit()
}

// HasCollection reports whether the table exists.
func (s *SQLiteStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, s.tableName(name))
	return n > 0, err
}

// DropCollection drops the table.
func (s *SQLiteStore) DropCollection(ctx context.Context, name string) error {
	if err := s.ensure(ctx, name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DROP TABLE "+s.table(name))
	return err
}

// ListCollections returns prefixed tables without the prefix.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
	var tables []string
	if err := s.db.SelectContext(ctx, &tables, `SELECT name FROM sqlite_master WHERE type = 'table'`); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tables))
	for _, tb := range tables {
		if strings.HasPrefix(tb, "sqlite_") {
			continue
		}
		if name, ok := strings.CutPrefix(tb, s.prefix); ok && ValidateCollection(name) == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *SQLiteStore) ensure(ctx context.Context, name string) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	exists, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

// AddDoc inserts a document.
func (s *SQLiteStore) AddDoc(ctx context.Context, collection, id string, doc Document) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO "+s.table(collection)+" (id, doc) VALUES (?, ?)", id, data)
	return s.mapErr(err, collection, id)
}

// UpdateDoc merges doc into the stored document at the top level.
func (s *SQLiteStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) error {
	return s.modify(ctx, collection, id, doc, true)
}

// ReplaceDoc overwrites an existing document.
func (s *SQLiteStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) error {
	return s.modify(ctx, collection, id, doc, false)
}

// modify reads and rewrites the document in one transaction.
func (s *SQLiteStore) modify(ctx context.Context, collection, id string, doc Document, merge bool) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tb := s.table(collection)
	var data string
	if err := tx.GetContext(ctx, &data, "SELECT doc FROM "+tb+" WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
		}
		return err
	}
	if merge {
		existing, err := decodeDocument([]byte(data))
		if err != nil {
			return err
		}
		norm = mergeShallow(existing, norm)
	}
	encoded, err := encodeJSON(map[string]any(norm))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE "+tb+" SET doc = ? WHERE id = ?", encoded, id); err != nil {
		return s.mapErr(err, collection, id)
	}
	return tx.Commit()
}

// UpsertDoc merges into an existing document or inserts it.
func (s *SQLiteStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	norm, err := normalize(doc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tb := s.table(collection)
	var data string
	err = tx.GetContext(ctx, &data, "SELECT doc FROM "+tb+" WHERE id = ?", id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		encoded, err := encodeJSON(map[string]any(norm))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+tb+" (id, doc) VALUES (?, ?)", id, encoded); err != nil {
			return s.mapErr(err, collection, id)
		}
	case err != nil:
		return err
	default:
		existing, err := decodeDocument([]byte(data))
		if err != nil {
			return err
		}
		encoded, err := encodeJSON(map[string]any(mergeShallow(existing, norm)))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE "+tb+" SET doc = ? WHERE id = ?", encoded, id); err != nil {
			return s.mapErr(err, collection, id)
		}
	}
	return tx.Commit()
}

// DeleteDoc deletes a document if present.
func (s *SQLiteStore) DeleteDoc(ctx context.Context, collection, id string) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table(collection)+" WHERE id = ?", id)
	return err
}

// GetDoc returns the document, or nil when it does not exist.
func (s *SQLiteStore) GetDoc(ctx context.Context, collection, id string) (Document, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}
	var data string
	err := s.db.GetContext(ctx, &data, "SELECT doc FROM "+s.table(collection)+" WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDocument([]byte(data))
}

// FindDocs returns matching documents ordered by id unless OrderBy is given.
func (s *SQLiteStore) FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.find(ctx, collection, filter, nil, opts)
}

// FindPartialDocs returns projections of matching documents.
func (s *SQLiteStore) FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	if err := sel.Validate(); err != nil {
		return failed(err)
	}
	return s.find(ctx, collection, filter, &sel, opts)
}

type sqliteRow struct {
	ID  string `db:"id"`
	Doc string `db:"doc"`
}

func (s *SQLiteStore) find(ctx context.Context, collection string, filter Filter, sel *PartialSelect, opts []FindOption) iter.Seq2[Document, error] {
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
		d := &sqliteDialect{}
		query, err := selectQuery(s.table(collection), filter, o, d)
		if err != nil {
			yield(nil, err)
			return
		}

		rows, err := s.db.QueryxContext(ctx, query, d.args...)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row sqliteRow
			if err := rows.StructScan(&row); err != nil {
				yield(nil, err)
				return
			}
			doc, err := decodeDocument([]byte(row.Doc))
			if err != nil {
				yield(nil, err)
				return
			}
			if sel != nil {
				doc = sel.Project(doc)
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// CountDocs counts matching documents.
func (s *SQLiteStore) CountDocs(ctx context.Context, collection string, filter Filter) (int, error) {
	filter = OrAny(filter)
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if err := s.ensure(ctx, collection); err != nil {
		return 0, err
	}
	d := &sqliteDialect{}
	where, err := compileWhere(filter, d)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT count(*) FROM "+s.table(collection)+" WHERE "+where, d.args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) mapErr(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s in %s", ErrDocumentExists, id, collection)
	}
	return err
}
