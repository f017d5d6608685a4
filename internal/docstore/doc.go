// Package docstore defines the document store contract used by repositories
// and the backends that implement it.
//
// A document store keeps schemaless JSON documents in named collections.
// Each document is keyed by a string identifier that is unique within its
// collection. Queries are expressed as Filter trees and may project a subset
// of fields through a PartialSelect.
//
// # Backends
//
//   - MemoryStore: in-process maps, used by tests and local development
//   - SurrealStore: SurrealDB tables, one table per collection
//   - PostgresStore: one JSONB table per collection (pgx)
//   - SQLiteStore: one JSON text table per collection (sqlx + modernc sqlite)
//
// Decorators wrap any Store:
//
//   - Instrument: Prometheus counters and latency histograms
//   - NewCachedStore: read-through cache for GetDoc backed by Redis
//
// # Lazy Results
//
// FindDocs and FindPartialDocs return an iter.Seq2 that runs the query when
// ranged over. Sequences are single-pass; breaking out of the loop releases
// the underlying cursor.
//
//	for doc, err := range store.FindDocs(ctx, "users", docstore.Eq("state.active", true)) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(doc["id"])
//	}
//
// # Errors
//
// Use errors.Is with ErrCollectionNotFound, ErrDocumentExists,
// ErrDocumentNotFound and ErrInvalidQuery.
package docstore
