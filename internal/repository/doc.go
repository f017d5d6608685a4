// Package repository provides typed, guarded access to document collections.
//
// A DocumentRepository binds one docstore.Store collection to a record type
// and a Decoder that turns a document's state field into that type.
// Repositories are read-only: they never create or delete documents.
//
// # Lookups
//
// FindDocument and FindDocumentState return nil when the document is absent.
// FindDocuments and FindPartialDocuments are lazy, single-pass sequences:
//
//	for doc, err := range repo.FindDocuments(ctx, docstore.Eq("state.active", true), docstore.Limit(20)) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// # Guards
//
// NeedDocument fails with a NotFound GuardError when the document is
// absent. DontNeedDocument fails with a Conflict GuardError when it is
// present. The kind, message and error constructor can be overridden:
//
//	doc, err := repo.NeedDocument(ctx, id)
//	if errors.Is(err, repository.ErrNotFound) {
//	    // Handle missing document
//	}
//
//	conflict := func(msg string) error { return model.NewConflictError(msg) }
//	err := repo.DontNeedDocument(ctx, id, repository.WithFailure(conflict))
//
// # Decoding
//
// A document whose state cannot be decoded is not an error. It is dropped
// from FindDocumentStates and returned as a nil record by the single lookups.
package repository
