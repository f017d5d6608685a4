// Package database provides SurrealDB connectivity for the document store.
//
// The Database interface abstracts SurrealDB operations so that
// docstore.SurrealStore can be exercised against a fake in tests.
//
// # Interface Design
//
// The Database interface provides three query methods:
//   - Query: Returns the {status, result} envelope of every statement
//   - QueryOne: Returns the first record of the first statement
//   - Execute: No return value (for CREATE/UPDATE/DELETE/DEFINE)
//
// # Batches
//
// AtomicBatch and TxBuilder wrap several statements in
// BEGIN TRANSACTION / COMMIT TRANSACTION and send them as one query.
// See transaction.go.
//
// # Error Handling
//
// Standard errors are defined for common failure cases:
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: Record id or unique index conflict
//   - ErrConnection: Database connection issues
//   - ErrQuery: Query execution failures
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle missing record
//	}
//
// # Usage Example
//
//	db := database.NewSurrealDB(cfg)
//	if err := db.Connect(ctx); err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	result, err := db.QueryOne(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]interface{}{"tb": "users", "id": id})
package database
