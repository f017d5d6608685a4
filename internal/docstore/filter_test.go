package docstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() Document {
	return Document{
		"state": map[string]any{
			"name":  "Ann",
			"age":   float64(34),
			"admin": false,
			"tags":  []any{"ops", "dev"},
			"email": nil,
			"address": map[string]any{
				"city": "Lyon",
			},
		},
	}
}

// ============================================================================
// Match Tests
// ============================================================================

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"any", Any(), true},
		{"doc id match", DocID("u1"), true},
		{"doc id mismatch", DocID("u2"), false},
		{"eq string", Eq("state.name", "Ann"), true},
		{"eq int operand against float field", Eq("state.age", 34), true},
		{"eq nested", Eq("state.address.city", "Lyon"), true},
		{"eq missing field", Eq("state.phone", "x"), false},
		{"eq null", Eq("state.email", nil), true},
		{"eq array", Eq("state.tags", []string{"ops", "dev"}), true},
		{"gt number", Gt("state.age", 30), true},
		{"gte number equal", Gte("state.age", 34), true},
		{"lt number", Lt("state.age", 34), false},
		{"lte number", Lte("state.age", 34), true},
		{"gt string", Gt("state.name", "Al"), true},
		{"range type mismatch", Gt("state.name", 1), false},
		{"range on missing", Lt("state.phone", 1), false},
		{"in", In("state.name", "Bob", "Ann"), true},
		{"in none", In("state.name", "Bob"), false},
		{"in empty", In("state.name"), false},
		{"in array", InArray("state.tags", "dev"), true},
		{"in array missing value", InArray("state.tags", "qa"), false},
		{"in array on scalar", InArray("state.name", "Ann"), false},
		{"exists", Exists("state.name"), true},
		{"exists null", Exists("state.email"), true},
		{"exists missing", Exists("state.phone"), false},
		{"and", And(Eq("state.name", "Ann"), Gt("state.age", 18)), true},
		{"and one false", And(Eq("state.name", "Ann"), Gt("state.age", 40)), false},
		{"empty and", And(), true},
		{"or", Or(Eq("state.name", "Bob"), Eq("state.admin", false)), true},
		{"or none", Or(Eq("state.name", "Bob"), Eq("state.admin", true)), false},
		{"not", Not(Eq("state.name", "Bob")), true},
		{"not missing", Not(Exists("state.phone")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match("u1", doc))
		})
	}
}

func TestOrAny_NilIsAny(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AnyFilter{}, OrAny(nil))
	f := Eq("a", 1)
	assert.Equal(t, f, OrAny(f))
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestFilterValidate(t *testing.T) {
	t.Parallel()

	valid := []Filter{
		Any(),
		Eq("state.name", "Ann"),
		Gt("state.age", 1),
		In("a", 1, "b"),
		And(),
		Not(Exists("x")),
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), "%#v", f)
	}

	invalid := []Filter{
		DocID(""),
		Eq("", 1),
		Eq("state..name", 1),
		Eq("state.name; DROP TABLE x", 1),
		Gt("age", []any{1}),
		Gt("age", nil),
		Or(),
		And(Eq("a", 1), nil),
		NotFilter{},
		CompareFilter{Op: "like", Field: "a", Value: "x"},
	}
	for _, f := range invalid {
		err := f.Validate()
		require.Error(t, err, "%#v", f)
		assert.True(t, errors.Is(err, ErrInvalidQuery))
	}
}

// ============================================================================
// ParseFilter Tests
// ============================================================================

func TestParseFilter(t *testing.T) {
	t.Parallel()

	f, err := ParseFilter([]byte(`{"op":"and","filters":[
		{"op":"eq","field":"state.name","value":"Ann"},
		{"op":"gte","field":"state.age","value":30},
		{"op":"not","filter":{"op":"exists","field":"state.phone"}},
		{"op":"or","filters":[{"op":"in","field":"state.name","values":["Ann","Bob"]},{"op":"in_array","field":"state.tags","value":"ops"}]}
	]}`))
	require.NoError(t, err)

	assert.True(t, f.Match("u1", sampleDoc()))
	and, ok := f.(AndFilter)
	require.True(t, ok)
	assert.Len(t, and.Filters, 4)
}

func TestParseFilter_EmptyIsAny(t *testing.T) {
	t.Parallel()

	f, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, AnyFilter{}, f)

	f, err = ParseFilter([]byte("  "))
	require.NoError(t, err)
	assert.Equal(t, AnyFilter{}, f)
}

func TestParseFilter_Errors(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`{`,
		`{"op":"regex","field":"a","value":"x"}`,
		`{"op":"eq","field":"bad path","value":1}`,
		`{"op":"not"}`,
		`{"op":"or","filters":[]}`,
		`{"op":"and","filters":[{"op":"gt","field":"a","value":{"x":1}}]}`,
	}
	for _, in := range inputs {
		_, err := ParseFilter([]byte(in))
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrInvalidQuery, in)
	}
}

// ============================================================================
// Projection and Option Tests
// ============================================================================

func TestPartialSelect_Project(t *testing.T) {
	t.Parallel()

	sel := Select("state.name").As("state.address.city", "city").As("state.phone", "phone")
	require.NoError(t, sel.Validate())

	got := sel.Project(sampleDoc())
	assert.Equal(t, Document{"state.name": "Ann", "city": "Lyon", "phone": nil}, got)
}

func TestPartialSelect_Validate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, PartialSelect{}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Select("a").As("b", "a").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Select("a").As("b", "").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Select("a b").Validate(), ErrInvalidQuery)
}

func TestParseSelect(t *testing.T) {
	t.Parallel()

	sel, err := ParseSelect("state.name, state.address.city:city")
	require.NoError(t, err)
	assert.Equal(t, []SelectField{
		{Path: "state.name", Alias: "state.name"},
		{Path: "state.address.city", Alias: "city"},
	}, sel.Fields)

	_, err = ParseSelect("")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestResolveFindOptions(t *testing.T) {
	t.Parallel()

	o, err := ResolveFindOptions(Skip(2), Limit(5), OrderBy("state.age", Desc))
	require.NoError(t, err)
	assert.Equal(t, 2, o.Skip)
	require.NotNil(t, o.Limit)
	assert.Equal(t, 5, *o.Limit)
	assert.Equal(t, []Sort{{Field: "state.age", Order: Desc}}, o.Sort)

	o, err = ResolveFindOptions()
	require.NoError(t, err)
	assert.Nil(t, o.Limit)

	_, err = ResolveFindOptions(Skip(-1))
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ResolveFindOptions(Limit(-1))
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ResolveFindOptions(OrderBy("a", "sideways"))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseOrder(t *testing.T) {
	t.Parallel()

	opts, err := ParseOrder("state.name,-state.age")
	require.NoError(t, err)
	o, err := ResolveFindOptions(opts...)
	require.NoError(t, err)
	assert.Equal(t, []Sort{{Field: "state.name", Order: Asc}, {Field: "state.age", Order: Desc}}, o.Sort)

	_, err = ParseOrder("-")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDocumentGet(t *testing.T) {
	t.Parallel()

	doc := sampleDoc()
	v, ok := doc.Get("state.address.city")
	assert.True(t, ok)
	assert.Equal(t, "Lyon", v)

	_, ok = doc.Get("state.name.first")
	assert.False(t, ok)

	clone := doc.Clone()
	clone["state"].(map[string]any)["name"] = "Changed"
	v, _ = doc.Get("state.name")
	assert.Equal(t, "Ann", v)
}
