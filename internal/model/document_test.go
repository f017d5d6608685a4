package model

import (
	"strings"
	"testing"
)

func TestCreateDocumentRequest_Validate_Valid(t *testing.T) {
	t.Parallel()

	req := &CreateDocumentRequest{
		ID:       "user:u1",
		Document: map[string]any{"state": map[string]any{"name": "Ann"}},
	}

	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("expected no errors, got %v", errors)
	}
}

func TestCreateDocumentRequest_Validate_GeneratedID(t *testing.T) {
	t.Parallel()

	req := &CreateDocumentRequest{Document: map[string]any{}}

	if errors := req.Validate(); len(errors) > 0 {
		t.Errorf("empty id should be allowed, got %v", errors)
	}
}

func TestCreateDocumentRequest_Validate_MissingDocument(t *testing.T) {
	t.Parallel()

	req := &CreateDocumentRequest{ID: "u1"}

	errors := req.Validate()
	if len(errors) != 1 || errors[0].Field != "document" {
		t.Errorf("expected document error, got %v", errors)
	}
}

func TestValidateDocumentID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"simple", "u1", true},
		{"uuid", "5f0c6d1e-8a7b-4c3d-9e2f-1a2b3c4d5e6f", true},
		{"email", "ann@example.com", true},
		{"space", "u 1", false},
		{"slash", "a/b", false},
		{"too_long", strings.Repeat("a", MaxDocumentIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := ValidateDocumentID(tt.id)
			if tt.valid && len(errs) > 0 {
				t.Errorf("expected %q to be valid, got %v", tt.id, errs)
			}
			if !tt.valid && len(errs) == 0 {
				t.Errorf("expected %q to be rejected", tt.id)
			}
		})
	}
}
