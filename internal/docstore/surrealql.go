package docstore

import (
	"fmt"
	"strings"
)

// surrealQuery accumulates a SurrealQL condition and its $pN variables.
type surrealQuery struct {
	vars map[string]interface{}
}

func newSurrealQuery() *surrealQuery {
	return &surrealQuery{vars: make(map[string]interface{})}
}

func (q *surrealQuery) bind(v any) string {
	name := fmt.Sprintf("p%d", len(q.vars))
	q.vars[name] = v
	return "$" + name
}

// surrealField renders doc.`a`.`b`. Segments are validated identifiers.
func surrealField(field string) string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return "doc." + strings.Join(parts, ".")
}

var surrealTypeCheck = map[string]string{
	"number":  "type::is::number",
	"string":  "type::is::string",
	"boolean": "type::is::bool",
}

// where compiles a filter to a SurrealQL condition over {doc_id, doc} records.
func (q *surrealQuery) where(f Filter) (string, error) {
	switch t := OrAny(f).(type) {
	case AnyFilter:
		return "true", nil
	case DocIDFilter:
		return "doc_id = " + q.bind(t.ID), nil
	case CompareFilter:
		field := surrealField(t.Field)
		if t.Op == OpEq {
			return "(" + field + " = " + q.bind(t.Value) + ")", nil
		}
		op, err := sqlOperator(t.Op)
		if err != nil {
			return "", err
		}
		check, ok := surrealTypeCheck[scalarKind(t.Value)]
		if !ok {
			return "", errorf("%s on %s needs a number, string or bool operand", t.Op, t.Field)
		}
		return fmt.Sprintf("(%s(%s) AND %s %s %s)", check, field, field, op, q.bind(t.Value)), nil
	case InFilter:
		if len(t.Values) == 0 {
			return "false", nil
		}
		return "(" + surrealField(t.Field) + " IN " + q.bind(t.Values) + ")", nil
	case InArrayFilter:
		field := surrealField(t.Field)
		return fmt.Sprintf("(type::is::array(%s) AND %s CONTAINS %s)", field, field, q.bind(t.Value)), nil
	case ExistsFilter:
		return "(" + surrealField(t.Field) + " != NONE)", nil
	case AndFilter:
		return q.join(t.Filters, " AND ", "true")
	case OrFilter:
		return q.join(t.Filters, " OR ", "false")
	case NotFilter:
		inner, err := q.where(t.Filter)
		if err != nil {
			return "", err
		}
		return "!(" + inner + ")", nil
	}
	return "", errorf("unsupported filter %T", f)
}

func (q *surrealQuery) join(filters []Filter, sep, empty string) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	for _, sub := range filters {
		part, err := q.where(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// surrealOrder renders ORDER BY terms. SurrealQL orders by selected fields, so
// each sort field is projected under an _o<i> alias by surrealSelectFields.
func surrealOrder(sorts []Sort) string {
	terms := make([]string, 0, len(sorts)+1)
	for i, s := range sorts {
		dir := "ASC"
		if s.Order == Desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf("_o%d %s", i, dir))
	}
	terms = append(terms, "doc_id ASC")
	return strings.Join(terms, ", ")
}

func surrealSelectFields(sorts []Sort) string {
	fields := []string{"doc_id", "doc"}
	for i, s := range sorts {
		fields = append(fields, fmt.Sprintf("%s AS _o%d", surrealField(s.Field), i))
	}
	return strings.Join(fields, ", ")
}

func surrealPage(o FindOptions) string {
	var sb strings.Builder
	if o.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *o.Limit)
	}
	if o.Skip > 0 {
		fmt.Fprintf(&sb, " START %d", o.Skip)
	}
	return sb.String()
}

// surrealSelect builds the SELECT statement used by FindDocs. The caller binds $tb.
func surrealSelect(filter Filter, o FindOptions) (string, map[string]interface{}, error) {
	q := newSurrealQuery()
	where, err := q.where(filter)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT " + surrealSelectFields(o.Sort) + " FROM type::table($tb) WHERE " + where +
		" ORDER BY " + surrealOrder(o.Sort) + surrealPage(o)
	return query, q.vars, nil
}

// surrealCount builds the count statement used by CountDocs.
func surrealCount(filter Filter) (string, map[string]interface{}, error) {
	q := newSurrealQuery()
	where, err := q.where(filter)
	if err != nil {
		return "", nil, err
	}
	return "SELECT count() AS count FROM type::table($tb) WHERE " + where + " GROUP ALL", q.vars, nil
}

// surrealDefineIndex renders DEFINE INDEX for a collection index.
func surrealDefineIndex(table string, ix Index) string {
	fields := make([]string, len(ix.Fields))
	for i, f := range ix.Fields {
		fields[i] = surrealField(f)
	}
	stmt := fmt.Sprintf("DEFINE INDEX IF NOT EXISTS %s ON TABLE %s FIELDS %s", ix.Name, table, strings.Join(fields, ", "))
	if ix.Unique {
		stmt += " UNIQUE"
	}
	return stmt
}
