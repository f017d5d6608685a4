package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// sqlDialect renders filter leaves for one SQL backend. Logical operators are
// shared by compileWhere.
type sqlDialect interface {
	// bind records a query argument and returns its placeholder.
	bind(v any) string
	docID(id string) string
	compare(f CompareFilter) (string, error)
	in(f InFilter) (string, error)
	inArray(f InArrayFilter) (string, error)
	exists(field string) string
	orderExpr(field string) string
	// unlimited is the LIMIT operand used when only OFFSET is requested.
	unlimited() string
}

// compileWhere renders a filter as a SQL boolean expression.
func compileWhere(f Filter, d sqlDialect) (string, error) {
	switch t := OrAny(f).(type) {
	case AnyFilter:
		return "TRUE", nil
	case DocIDFilter:
		return d.docID(t.ID), nil
	case CompareFilter:
		return d.compare(t)
	case InFilter:
		if len(t.Values) == 0 {
			return "FALSE", nil
		}
		return d.in(t)
	case InArrayFilter:
		return d.inArray(t)
	case ExistsFilter:
		return d.exists(t.Field), nil
	case AndFilter:
		return compileJoin(t.Filters, " AND ", "TRUE", d)
	case OrFilter:
		return compileJoin(t.Filters, " OR ", "FALSE", d)
	case NotFilter:
		inner, err := compileWhere(t.Filter, d)
		if err != nil {
			return "", err
		}
		// Missing fields yield NULL, which NOT would keep as NULL.
		return "NOT COALESCE(" + inner + ", FALSE)", nil
	}
	return "", errorf("unsupported filter %T", f)
}

func compileJoin(filters []Filter, sep, empty string, d sqlDialect) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	for _, sub := range filters {
		part, err := compileWhere(sub, d)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// compileOrder renders ORDER BY terms. Missing fields sort first ascending and
// last descending, matching MemoryStore. The id breaks ties.
func compileOrder(sorts []Sort, d sqlDialect) string {
	terms := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		if s.Order == Desc {
			terms = append(terms, d.orderExpr(s.Field)+" DESC NULLS LAST")
		} else {
			terms = append(terms, d.orderExpr(s.Field)+" ASC NULLS FIRST")
		}
	}
	terms = append(terms, "id ASC")
	return strings.Join(terms, ", ")
}

// compilePage renders LIMIT/OFFSET. Bounds are validated integers.
func compilePage(o FindOptions, d sqlDialect) string {
	var sb strings.Builder
	if o.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *o.Limit)
	} else if o.Skip > 0 {
		sb.WriteString(" LIMIT " + d.unlimited())
	}
	if o.Skip > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", o.Skip)
	}
	return sb.String()
}

// selectQuery builds the SELECT for FindDocs over a (id, doc) table.
func selectQuery(table string, filter Filter, o FindOptions, d sqlDialect) (string, error) {
	where, err := compileWhere(filter, d)
	if err != nil {
		return "", err
	}
	return "SELECT id, doc FROM " + table + " WHERE " + where + " ORDER BY " + compileOrder(o.Sort, d) + compilePage(o, d), nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errorf("encode operand: %v", err)
	}
	return string(data), nil
}

// pgDialect compiles filters to PostgreSQL JSONB expressions over a doc column.
type pgDialect struct {
	args []any
}

func (d *pgDialect) bind(v any) string {
	d.args = append(d.args, v)
	return fmt.Sprintf("$%d", len(d.args))
}

// pgPath renders doc #> '{a,b}'. Segments are validated identifiers.
func pgPath(field string) string {
	return "doc #> '{" + strings.ReplaceAll(field, ".", ",") + "}'"
}

func (d *pgDialect) docID(id string) string {
	return "id = " + d.bind(id)
}

func (d *pgDialect) compare(f CompareFilter) (string, error) {
	operand, err := encodeJSON(f.Value)
	if err != nil {
		return "", err
	}
	path := pgPath(f.Field)
	ph := d.bind(operand) + "::jsonb"
	if f.Op == OpEq {
		return "(" + path + " = " + ph + ")", nil
	}
	op, err := sqlOperator(f.Op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(jsonb_typeof(%s) = '%s' AND %s %s %s)", path, scalarKind(f.Value), path, op, ph), nil
}

func (d *pgDialect) in(f InFilter) (string, error) {
	path := pgPath(f.Field)
	phs := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		operand, err := encodeJSON(v)
		if err != nil {
			return "", err
		}
		phs = append(phs, d.bind(operand)+"::jsonb")
	}
	return "(" + path + " IN (" + strings.Join(phs, ", ") + "))", nil
}

func (d *pgDialect) inArray(f InArrayFilter) (string, error) {
	operand, err := encodeJSON([]any{f.Value})
	if err != nil {
		return "", err
	}
	path := pgPath(f.Field)
	return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> %s::jsonb)", path, path, d.bind(operand)), nil
}

func (d *pgDialect) exists(field string) string {
	return "(" + pgPath(field) + " IS NOT NULL)"
}

func (d *pgDialect) orderExpr(field string) string {
	return pgPath(field)
}

func (d *pgDialect) unlimited() string { return "ALL" }

// sqliteDialect compiles filters to SQLite JSON functions over a doc text column.
type sqliteDialect struct {
	args []any
}

func (d *sqliteDialect) bind(v any) string {
	d.args = append(d.args, v)
	return "?"
}

// sqlitePath renders the JSON path '$.a.b'. Segments are validated identifiers.
func sqlitePath(field string) string {
	return "'$." + field + "'"
}

func (d *sqliteDialect) docID(id string) string {
	return "id = " + d.bind(id)
}

// valueMatch renders an equality test of a JSON value against v, given
// expressions for the value's json_type and its extracted SQL value.
func (d *sqliteDialect) valueMatch(typeExpr, valueExpr string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "(" + typeExpr + " = 'null')", nil
	case bool:
		if t {
			return "(" + typeExpr + " = 'true')", nil
		}
		return "(" + typeExpr + " = 'false')", nil
	case string:
		return "(" + typeExpr + " = 'text' AND " + valueExpr + " = " + d.bind(t) + ")", nil
	}
	if n, ok := toFloat(v); ok {
		return "(" + typeExpr + " IN ('integer', 'real') AND " + valueExpr + " = " + d.bind(n) + ")", nil
	}
	operand, err := encodeJSON(v)
	if err != nil {
		return "", err
	}
	return "(" + typeExpr + " IN ('object', 'array') AND " + valueExpr + " = json(" + d.bind(operand) + "))", nil
}

func (d *sqliteDialect) fieldExprs(field string) (string, string) {
	path := sqlitePath(field)
	return "json_type(doc, " + path + ")", "json_extract(doc, " + path + ")"
}

func (d *sqliteDialect) compare(f CompareFilter) (string, error) {
	typeExpr, valueExpr := d.fieldExprs(f.Field)
	if f.Op == OpEq {
		return d.valueMatch(typeExpr, valueExpr, f.Value)
	}
	op, err := sqlOperator(f.Op)
	if err != nil {
		return "", err
	}
	switch t := f.Value.(type) {
	case string:
		return fmt.Sprintf("(%s = 'text' AND %s %s %s)", typeExpr, valueExpr, op, d.bind(t)), nil
	case bool:
		n := 0
		if t {
			n = 1
		}
		return fmt.Sprintf("(%s IN ('true', 'false') AND %s %s %s)", typeExpr, valueExpr, op, d.bind(n)), nil
	}
	n, ok := toFloat(f.Value)
	if !ok {
		return "", errorf("%s on %s needs a number, string or bool operand", f.Op, f.Field)
	}
	return fmt.Sprintf("(%s IN ('integer', 'real') AND %s %s %s)", typeExpr, valueExpr, op, d.bind(n)), nil
}

func (d *sqliteDialect) in(f InFilter) (string, error) {
	typeExpr, valueExpr := d.fieldExprs(f.Field)
	parts := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		part, err := d.valueMatch(typeExpr, valueExpr, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func (d *sqliteDialect) inArray(f InArrayFilter) (string, error) {
	typeExpr, _ := d.fieldExprs(f.Field)
	elem, err := d.valueMatch("e.type", "e.value", f.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s = 'array' AND EXISTS (SELECT 1 FROM json_each(doc, %s) AS e WHERE %s))",
		typeExpr, sqlitePath(f.Field), elem), nil
}

func (d *sqliteDialect) exists(field string) string {
	typeExpr, _ := d.fieldExprs(field)
	return "(" + typeExpr + " IS NOT NULL)"
}

func (d *sqliteDialect) orderExpr(field string) string {
	_, valueExpr := d.fieldExprs(field)
	return valueExpr
}

func (d *sqliteDialect) unlimited() string { return "-1" }

func sqlOperator(op CompareOp) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	}
	return "", errorf("unknown comparison %q", op)
}
