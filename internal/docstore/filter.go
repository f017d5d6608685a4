package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Filter is a predicate over documents. Backends compile filters into their
// native query language; MemoryStore evaluates them with Match.
type Filter interface {
	// Match reports whether the document stored under id satisfies the filter.
	Match(id string, doc Document) bool
	// Validate checks field paths and operand types.
	Validate() error
}

// CompareOp is the operator of a CompareFilter.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
)

// AnyFilter matches every document.
type AnyFilter struct{}

// DocIDFilter matches the document stored under ID.
type DocIDFilter struct{ ID string }

// CompareFilter compares a field against a value.
// Range operators only match when field and value have the same JSON type.
type CompareFilter struct {
	Op    CompareOp
	Field string
	Value any
}

// InFilter matches documents whose field equals one of Values.
type InFilter struct {
	Field  string
	Values []any
}

// InArrayFilter matches documents whose array field contains Value.
type InArrayFilter struct {
	Field string
	Value any
}

// ExistsFilter matches documents that have Field, even when it is null.
type ExistsFilter struct{ Field string }

// AndFilter matches when all sub-filters match.
type AndFilter struct{ Filters []Filter }

// OrFilter matches when at least one sub-filter matches.
type OrFilter struct{ Filters []Filter }

// NotFilter negates a filter.
type NotFilter struct{ Filter Filter }

func Any() Filter { return AnyFilter{} }
func DocID(id string) Filter { return DocIDFilter{ID: id} }
func Eq(field string, value any) Filter { return compare(OpEq, field, value) }
func Gt(field string, value any) Filter { return compare(OpGt, field, value) }
func Gte(field string, value any) Filter { return compare(OpGte, field, value) }
func Lt(field string, value any) Filter { return compare(OpLt, field, value) }
func Lte(field string, value any) Filter { return compare(OpLte, field, value) }
func Exists(field string) Filter { return ExistsFilter{Field: field} }
func Not(f Filter) Filter { return NotFilter{Filter: f} }
func And(filters ...Filter) Filter { return AndFilter{Filters: filters} }
func Or(filters ...Filter) Filter { return OrFilter{Filters: filters} }
func InArray(field string, value any) Filter {
	return InArrayFilter{Field: field, Value: normalizeValue(value)}
}

func In(field string, values ...any) Filter {
	norm := make([]any, len(values))
	for i, v := range values {
		norm[i] = normalizeValue(v)
	}
	return InFilter{Field: field, Values: norm}
}

func compare(op CompareOp, field string, value any) Filter {
	return CompareFilter{Op: op, Field: field, Value: normalizeValue(value)}
}

// OrAny returns f, or AnyFilter when f is nil.
func OrAny(f Filter) Filter {
	if f == nil {
		return AnyFilter{}
	}
	return f
}

func (AnyFilter) Match(string, Document) bool { return true }
func (AnyFilter) Validate() error { return nil }

func (f DocIDFilter) Match(id string, _ Document) bool { return id == f.ID }
func (f DocIDFilter) Validate() error {
	if f.ID == "" {
		return errorf("doc id filter requires an id")
	}
	return nil
}

func (f CompareFilter) Match(_ string, doc Document) bool {
	v, ok := doc.Get(f.Field)
	if !ok {
		return false
	}
	if f.Op == OpEq {
		return valuesEqual(v, f.Value)
	}
	c, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func (f CompareFilter) Validate() error {
	if err := ValidateField(f.Field); err != nil {
		return err
	}
	switch f.Op {
	case OpEq:
		return validateValue(f.Value)
	case OpGt, OpGte, OpLt, OpLte:
		if scalarKind(f.Value) == "" {
			return errorf("%s on %s needs a number, string or bool operand", f.Op, f.Field)
		}
		return nil
	}
	return errorf("unknown comparison %q", f.Op)
}

func (f InFilter) Match(_ string, doc Document) bool {
	v, ok := doc.Get(f.Field)
	if !ok {
		return false
	}
	for _, candidate := range f.Values {
		if valuesEqual(v, candidate) {
			return true
		}
	}
	return false
}

func (f InFilter) Validate() error {
	if err := ValidateField(f.Field); err != nil {
		return err
	}
	for _, v := range f.Values {
		if err := validateValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (f InArrayFilter) Match(_ string, doc Document) bool {
	v, ok := doc.Get(f.Field)
	if !ok {
		return false
	}
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range arr {
		if valuesEqual(item, f.Value) {
			return true
		}
	}
	return false
}

func (f InArrayFilter) Validate() error {
	if err := ValidateField(f.Field); err != nil {
		return err
	}
	return validateValue(f.Value)
}

func (f ExistsFilter) Match(_ string, doc Document) bool {
	_, ok := doc.Get(f.Field)
	return ok
}

func (f ExistsFilter) Validate() error { return ValidateField(f.Field) }

func (f AndFilter) Match(id string, doc Document) bool {
	for _, sub := range f.Filters {
		if !sub.Match(id, doc) {
			return false
		}
	}
	return true
}

func (f AndFilter) Validate() error { return validateAll(f.Filters) }

func (f OrFilter) Match(id string, doc Document) bool {
	for _, sub := range f.Filters {
		if sub.Match(id, doc) {
			return true
		}
	}
	return false
}

func (f OrFilter) Validate() error {
	if len(f.Filters) == 0 {
		return errorf("or filter needs at least one operand")
	}
	return validateAll(f.Filters)
}

func (f NotFilter) Match(id string, doc Document) bool { return !f.Filter.Match(id, doc) }

func (f NotFilter) Validate() error {
	if f.Filter == nil {
		return errorf("not filter needs an operand")
	}
	return f.Filter.Validate()
}

func validateAll(filters []Filter) error {
	for _, sub := range filters {
		if sub == nil {
			return errorf("nil sub-filter")
		}
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v any) error {
	if _, err := json.Marshal(v); err != nil {
		return errorf("operand is not JSON encodable: %v", err)
	}
	return nil
}

// normalizeValue converts filter operands to their JSON form so they compare
// equal to decoded document values. Unencodable values are kept and rejected
// by Validate.
func normalizeValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// scalarKind returns the JSON type name of a rangeable operand, or "".
func scalarKind(v any) string {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// compareValues orders two scalars of the same JSON type.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// filterJSON is the wire form accepted by ParseFilter.
type filterJSON struct {
	Op      string            `json:"op"`
	Field   string            `json:"field,omitempty"`
	Value   any               `json:"value,omitempty"`
	Values  []any             `json:"values,omitempty"`
	ID      string            `json:"id,omitempty"`
	Filters []json.RawMessage `json:"filters,omitempty"`
	Filter  json.RawMessage   `json:"filter,omitempty"`
}

// ParseFilter decodes the JSON form of a filter, for example
//
//	{"op":"and","filters":[{"op":"eq","field":"state.name","value":"Ann"},{"op":"exists","field":"state.email"}]}
//
// Empty input parses to AnyFilter.
func ParseFilter(data []byte) (Filter, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return AnyFilter{}, nil
	}
	var raw filterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode filter: %v", ErrInvalidQuery, err)
	}

	var f Filter
	switch raw.Op {
	case "any":
		f = AnyFilter{}
	case "id":
		f = DocIDFilter{ID: raw.ID}
	case string(OpEq), string(OpGt), string(OpGte), string(OpLt), string(OpLte):
		f = compare(CompareOp(raw.Op), raw.Field, raw.Value)
	case "in":
		f = In(raw.Field, raw.Values...)
	case "in_array":
		f = InArray(raw.Field, raw.Value)
	case "exists":
		f = Exists(raw.Field)
	case "and", "or":
		subs := make([]Filter, 0, len(raw.Filters))
		for _, item := range raw.Filters {
			sub, err := ParseFilter(item)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if raw.Op == "and" {
			f = AndFilter{Filters: subs}
		} else {
			f = OrFilter{Filters: subs}
		}
	case "not":
		if len(raw.Filter) == 0 {
			return nil, errorf("not filter needs an operand")
		}
		sub, err := ParseFilter(raw.Filter)
		if err != nil {
			return nil, err
		}
		f = NotFilter{Filter: sub}
	default:
		return nil, errorf("unknown filter op %q", raw.Op)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
