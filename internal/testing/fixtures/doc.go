// Package fixtures provides test data factories for document stores.
//
// # Factory Pattern
//
// Create a factory over any docstore.Store:
//
//	f := fixtures.New(docstore.NewMemoryStore())
//
// # Creating Test Data
//
//	f.Collection(t, "users")                     // named collection
//	name := f.Collection(t, "")                  // random name
//	id, doc := f.CreateDocument(t, "users")      // random id and state
//	f.Users(t, 2)                                // u1 Ann, u2 Bob
//
// # Customization
//
// Use option functions for customization:
//
//	f.CreateDocument(t, "users", fixtures.WithID("u9"), fixtures.WithoutState())
//	f.CreateDocument(t, "users", fixtures.WithField("tags", []any{"a"}))
package fixtures
