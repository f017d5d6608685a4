package docstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Document is a schemaless JSON object stored in a collection.
// A nil Document means "no document".
type Document map[string]any

// fieldPathPattern restricts field paths to dotted identifiers so they can be
// inlined safely into SurrealQL and SQL.
var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// collectionPattern restricts collection names to identifiers usable as table names.
var collectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Get returns the value at a dotted field path and whether it is present.
func (d Document) Get(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

// IDOf normalizes a value-object identifier (uuid.UUID, custom ID types) to
// the string form stores are keyed by.
func IDOf(id fmt.Stringer) string {
	return id.String()
}

// NewID generates a random document identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidateField reports whether path is an acceptable dotted field path.
func ValidateField(path string) error {
	if !fieldPathPattern.MatchString(path) {
		return fmt.Errorf("%w: invalid field path %q", ErrInvalidQuery, path)
	}
	return nil
}

// ValidateCollection reports whether name is an acceptable collection name.
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q", ErrInvalidQuery, name)
	}
	return nil
}

// normalize converts an arbitrary document into its JSON form so every backend
// hands back the same shapes (objects as map[string]any, numbers as float64).
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

// decodeDocument turns a raw JSON payload read from a backend into a Document.
func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// mergeShallow overlays patch onto base at the top level.
func mergeShallow(base, patch Document) Document {
	out := base.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
