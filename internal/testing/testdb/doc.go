// Package testdb provides backend connections for integration tests.
//
// # Skipping
//
// Surreal, Postgres and Redis skip the test when their environment
// variable is unset, so unit runs need no running services.
//
// # Isolation
//
// Surreal gets a unique namespace per call and removes it on cleanup:
//
//	func TestA(t *testing.T) {
//	    db := testdb.Surreal(t) // namespace: test_1712..._1
//	}
//
// Postgres and Redis are shared servers; use UniquePrefix for table and
// key names:
//
//	store := docstore.NewPostgresStore(testdb.Postgres(t), testdb.UniquePrefix())
//
// # Timeout Context
//
//	ctx := testdb.Ctx(t) // 30 second timeout, cancelled at cleanup
package testdb
