package docstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL. Each collection is a table
// (id TEXT PRIMARY KEY, doc JSONB).
type PostgresStore struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPostgresPool parses dsn and opens a pool, pinging once.
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a store over pool. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, prefix string) *PostgresStore {
	return &PostgresStore{pool: pool, prefix: prefix}
}

func (s *PostgresStore) tableName(collection string) string {
	return s.prefix + collection
}

func (s *PostgresStore) table(collection string) string {
	return pgx.Identifier{s.tableName(collection)}.Sanitize()
}

// AddCollection creates the table and expression indexes in one transaction.
func (s *PostgresStore) AddCollection(ctx context.Context, name string, indexes ...Index) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	for _, ix := range indexes {
		if err := ix.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tb := s.table(name)
	if _, err := tx.Exec(ctx, "CREATE TABLE "+tb+" (id TEXT PRIMARY KEY, doc JSONB NOT NULL)"); err != nil {
		if isPgCode(err, "42P07") {
			return fmt.Errorf("%w: %s", ErrCollectionExists, name)
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	for _, ix := range indexes {
		exprs := make([]string, len(ix.Fields))
		for i, f := range ix.Fields {
			exprs[i] = "(" + pgPath(f) + ")"
		}
		unique := ""
		if ix.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique,
			pgx.Identifier{s.tableName(name) + "_" + ix.Name}.Sanitize(), tb, strings.Join(exprs, ", "))
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s on %s: %w", ix.Name, name, err)
		}
	}
	return tx.Commit(ctx)
}

// HasCollection reports whether the table exists in the current schema.
func (s *PostgresStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		s.tableName(name),
	).Scan(&exists)
	return exists, err
}

// DropCollection drops the table.
func (s *PostgresStore) DropCollection(ctx context.Context, name string) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, "DROP TABLE "+s.table(name))
	return s.mapErr(err, name)
}

// ListCollections returns prefixed tables of the current schema, without the prefix.
func (s *PostgresStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name LIKE $1`,
		likePrefix(s.prefix),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var tb string
		if err := rows.Scan(&tb); err != nil {
			return nil, err
		}
		if name, ok := strings.CutPrefix(tb, s.prefix); ok && ValidateCollection(name) == nil {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// AddDoc inserts a document.
func (s *PostgresStore) AddDoc(ctx context.Context, collection, id string, doc Document) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "INSERT INTO "+s.table(collection)+" (id, doc) VALUES ($1, $2::jsonb)", id, data)
	return s.mapErr(err, collection)
}

// UpdateDoc merges doc into the stored document with the jsonb || operator.
func (s *PostgresStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "UPDATE "+s.table(collection)+" SET doc = doc || $2::jsonb WHERE id = $1", id, data)
	if err != nil {
		return s.mapErr(err, collection)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	return nil
}

// UpsertDoc merges into an existing document or inserts it.
func (s *PostgresStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	tb := s.table(collection)
	_, err = s.pool.Exec(ctx,
		"INSERT INTO "+tb+" (id, doc) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO UPDATE SET doc = "+tb+".doc || EXCLUDED.doc",
		id, data,
	)
	return s.mapErr(err, collection)
}

// ReplaceDoc overwrites an existing document.
func (s *PostgresStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) error {
	data, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "UPDATE "+s.table(collection)+" SET doc = $2::jsonb WHERE id = $1", id, data)
	if err != nil {
		return s.mapErr(err, collection)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", ErrDocumentNotFound, id, collection)
	}
	return nil
}

// DeleteDoc deletes a document if present.
func (s *PostgresStore) DeleteDoc(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM "+s.table(collection)+" WHERE id = $1", id)
	return s.mapErr(err, collection)
}

// GetDoc returns the document, or nil when it does not exist.
func (s *PostgresStore) GetDoc(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT doc FROM "+s.table(collection)+" WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, s.mapErr(err, collection)
	}
	return decodeDocument(data)
}

// FindDocs returns matching documents ordered by id unless OrderBy is given.
func (s *PostgresStore) FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.find(ctx, collection, filter, nil, opts)
}

// FindPartialDocs returns projections of matching documents.
func (s *PostgresStore) FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	if err := sel.Validate(); err != nil {
		return failed(err)
	}
	return s.find(ctx, collection, filter, &sel, opts)
}

func (s *PostgresStore) find(ctx context.Context, collection string, filter Filter, sel *PartialSelect, opts []FindOption) iter.Seq2[Document, error] {
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
		if err := ValidateCollection(collection); err != nil {
			yield(nil, err)
			return
		}
		d := &pgDialect{}
		query, err := selectQuery(s.table(collection), filter, o, d)
		if err != nil {
			yield(nil, err)
			return
		}

		rows, err := s.pool.Query(ctx, query, d.args...)
		if err != nil {
			yield(nil, s.mapErr(err, collection))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				yield(nil, err)
				return
			}
			doc, err := decodeDocument(data)
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
			yield(nil, s.mapErr(err, collection))
		}
	}
}

// CountDocs counts matching documents.
func (s *PostgresStore) CountDocs(ctx context.Context, collection string, filter Filter) (int, error) {
	filter = OrAny(filter)
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if err := ValidateCollection(collection); err != nil {
		return 0, err
	}
	d := &pgDialect{}
	where, err := compileWhere(filter, d)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.pool.QueryRow(ctx, "SELECT count(*) FROM "+s.table(collection)+" WHERE "+where, d.args...).Scan(&n)
	if err != nil {
		return 0, s.mapErr(err, collection)
	}
	return n, nil
}

// mapErr translates undefined_table and unique_violation into store errors.
func (s *PostgresStore) mapErr(err error, collection string) error {
	switch {
	case err == nil:
		return nil
	case isPgCode(err, "42P01"):
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	case isPgCode(err, "23505"):
		return fmt.Errorf("%w: %v", ErrDocumentExists, err)
	}
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func encodeDoc(doc Document) (string, error) {
	norm, err := normalize(doc)
	if err != nil {
		return "", err
	}
	return encodeJSON(map[string]any(norm))
}
