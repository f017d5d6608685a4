package docstore

import (
	"fmt"
	"strings"
)

// SelectField projects the value at Path into the result under Alias.
type SelectField struct {
	Path  string
	Alias string
}

// PartialSelect lists the fields returned by FindPartialDocs.
// Fields missing from a document are projected as nil.
type PartialSelect struct {
	Fields []SelectField
}

// Select builds a projection whose aliases equal the paths.
func Select(paths ...string) PartialSelect {
	sel := PartialSelect{Fields: make([]SelectField, 0, len(paths))}
	for _, p := range paths {
		sel.Fields = append(sel.Fields, SelectField{Path: p, Alias: p})
	}
	return sel
}

// As adds a field projected under a different name.
func (s PartialSelect) As(path, alias string) PartialSelect {
	fields := make([]SelectField, len(s.Fields), len(s.Fields)+1)
	copy(fields, s.Fields)
	s.Fields = append(fields, SelectField{Path: path, Alias: alias})
	return s
}

// Validate checks paths and rejects empty or duplicate aliases.
func (s PartialSelect) Validate() error {
	if len(s.Fields) == 0 {
		return errorf("partial select needs at least one field")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if err := ValidateField(f.Path); err != nil {
			return err
		}
		if f.Alias == "" {
			return errorf("empty alias for %s", f.Path)
		}
		if seen[f.Alias] {
			return errorf("duplicate alias %q", f.Alias)
		}
		seen[f.Alias] = true
	}
	return nil
}

// Project applies the selection to a document.
func (s PartialSelect) Project(doc Document) Document {
	out := make(Document, len(s.Fields))
	for _, f := range s.Fields {
		v, _ := doc.Get(f.Path)
		out[f.Alias] = cloneValue(v)
	}
	return out
}

// ParseSelect parses "path" and "path:alias" items separated by commas.
func ParseSelect(raw string) (PartialSelect, error) {
	var sel PartialSelect
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		path, alias, found := strings.Cut(item, ":")
		if !found {
			alias = path
		}
		sel.Fields = append(sel.Fields, SelectField{Path: strings.TrimSpace(path), Alias: strings.TrimSpace(alias)})
	}
	if err := sel.Validate(); err != nil {
		return PartialSelect{}, fmt.Errorf("parse select %q: %w", raw, err)
	}
	return sel, nil
}
