package docstore

import (
	"fmt"
	"strings"
)

// SortOrder is the direction of an OrderBy clause.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort orders results by a document field.
type Sort struct {
	Field string
	Order SortOrder
}

// FindOption configures pagination and ordering of FindDocs queries.
type FindOption func(*FindOptions)

// FindOptions is the resolved form of a set of FindOption values.
// A nil Limit means "no limit". Without Sort, results are ordered by document id.
type FindOptions struct {
	Skip  int
	Limit *int
	Sort  []Sort
}

// Skip discards the first n matching documents.
func Skip(n int) FindOption {
	return func(o *FindOptions) { o.Skip = n }
}

// Limit caps the number of returned documents.
func Limit(n int) FindOption {
	return func(o *FindOptions) { o.Limit = &n }
}

// OrderBy appends a sort clause. Later clauses break ties of earlier ones.
func OrderBy(field string, order SortOrder) FindOption {
	return func(o *FindOptions) { o.Sort = append(o.Sort, Sort{Field: field, Order: order}) }
}

// ResolveFindOptions applies opts and validates the result.
func ResolveFindOptions(opts ...FindOption) (FindOptions, error) {
	var o FindOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Skip < 0 {
		return o, fmt.Errorf("%w: skip must not be negative, got %d", ErrInvalidQuery, o.Skip)
	}
	if o.Limit != nil && *o.Limit < 0 {
		return o, fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidQuery, *o.Limit)
	}
	for _, s := range o.Sort {
		if err := ValidateField(s.Field); err != nil {
			return o, err
		}
		if s.Order != Asc && s.Order != Desc {
			return o, fmt.Errorf("%w: unknown sort order %q", ErrInvalidQuery, s.Order)
		}
	}
	return o, nil
}

// ParseOrder parses "field" or "-field" (descending), comma separated.
func ParseOrder(raw string) ([]FindOption, error) {
	var opts []FindOption
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		order := Asc
		if strings.HasPrefix(part, "-") {
			order = Desc
			part = part[1:]
		}
		if err := ValidateField(part); err != nil {
			return nil, err
		}
		opts = append(opts, OrderBy(part, order))
	}
	return opts, nil
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidQuery}, args...)...)
}
