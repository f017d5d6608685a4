package model

import "regexp"

// Document limits
const (
	MaxDocumentIDLength = 128
	MaxPageLimit        = 500
	DefaultPageLimit    = 50
)

var documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]+$`)

// DocumentResponse is a stored document together with its identifier
type DocumentResponse struct {
	ID       string         `json:"id"`
	Document map[string]any `json:"document"`
}

// CreateDocumentRequest represents the request body for creating a document.
// A missing ID is generated by the server.
type CreateDocumentRequest struct {
	ID       string         `json:"id,omitempty"`
	Document map[string]any `json:"document"`
}

// Validate checks the request and returns field errors
func (r *CreateDocumentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ID != "" {
		errs = append(errs, ValidateDocumentID(r.ID)...)
	}
	if r.Document == nil {
		errs = append(errs, FieldError{Field: "document", Message: "document is required"})
	}
	return errs
}

// ValidateDocumentID checks an identifier supplied by a client
func ValidateDocumentID(id string) []FieldError {
	if len(id) > MaxDocumentIDLength {
		return []FieldError{{Field: "id", Message: "id must be at most 128 characters"}}
	}
	if !documentIDPattern.MatchString(id) {
		return []FieldError{{Field: "id", Message: "id may only contain letters, digits and _ . : @ -"}}
	}
	return nil
}
