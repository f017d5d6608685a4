package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurrealQuery_Where(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		want   string
		vars   map[string]interface{}
	}{
		{
			name:   "any",
			filter: Any(),
			want:   "true",
			vars:   map[string]interface{}{},
		},
		{
			name:   "eq",
			filter: Eq("state.name", "Ann"),
			want:   "(doc.`state`.`name` = $p0)",
			vars:   map[string]interface{}{"p0": "Ann"},
		},
		{
			name:   "range",
			filter: Gte("state.age", 18),
			want:   "(type::is::number(doc.`state`.`age`) AND doc.`state`.`age` >= $p0)",
			vars:   map[string]interface{}{"p0": float64(18)},
		},
		{
			name:   "in array and exists",
			filter: And(InArray("state.tags", "ops"), Exists("state.email")),
			want:   "((type::is::array(doc.`state`.`tags`) AND doc.`state`.`tags` CONTAINS $p0) AND (doc.`state`.`email` != NONE))",
			vars:   map[string]interface{}{"p0": "ops"},
		},
		{
			name:   "not in",
			filter: Not(In("state.name", "Ann", "Bob")),
			want:   "!((doc.`state`.`name` IN $p0))",
			vars:   map[string]interface{}{"p0": []any{"Ann", "Bob"}},
		},
		{
			name:   "or with doc id",
			filter: Or(DocID("u1"), Lt("state.name", "m")),
			want:   "(doc_id = $p0 OR (type::is::string(doc.`state`.`name`) AND doc.`state`.`name` < $p1))",
			vars:   map[string]interface{}{"p0": "u1", "p1": "m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newSurrealQuery()
			got, err := q.where(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.vars, q.vars)
		})
	}
}

func TestSurrealSelect(t *testing.T) {
	t.Parallel()

	o, err := ResolveFindOptions(Skip(10), Limit(5), OrderBy("state.age", Desc))
	require.NoError(t, err)

	query, vars, err := surrealSelect(Eq("state.active", true), o)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT doc_id, doc, doc.`state`.`age` AS _o0 FROM type::table($tb) WHERE (doc.`state`.`active` = $p0) ORDER BY _o0 DESC, doc_id ASC LIMIT 5 START 10",
		query)
	assert.Equal(t, map[string]interface{}{"p0": true}, vars)
}

func TestSurrealCount(t *testing.T) {
	t.Parallel()

	query, vars, err := surrealCount(nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count() AS count FROM type::table($tb) WHERE true GROUP ALL", query)
	assert.Empty(t, vars)
}

func TestSurrealDefineIndex(t *testing.T) {
	t.Parallel()

	stmt := surrealDefineIndex("doc_users", Index{Name: "doc_users_email", Fields: []string{"state.email"}, Unique: true})
	assert.Equal(t, "DEFINE INDEX IF NOT EXISTS doc_users_email ON TABLE doc_users FIELDS doc.`state`.`email` UNIQUE", stmt)
}
