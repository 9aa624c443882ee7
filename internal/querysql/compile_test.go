package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/queryir"
)

func TestCompile_PageWithFilterAndSort(t *testing.T) {
	sel, err := queryir.FromListParams("posts", model.ListParams{
		Pagination: model.Pagination{Page: 2, PerPage: 5},
		Sort:       model.Sort{Field: "title", Order: model.SortDESC},
		Filter:     model.Filter{"status": "published", "views_gte": 10},
	})
	require.NoError(t, err)

	sql, params, err := NewSQLCompiler().Compile(sel)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data FROM records WHERE resource = ? AND json_extract(data, ?) = ? AND json_extract(data, ?) >= ?"+
			" ORDER BY json_extract(data, ?) DESC, id ASC COLLATE BINARY LIMIT ? OFFSET ?",
		sql)
	assert.Equal(t, []any{
		"posts",
		`$."status"`, "published",
		`$."views"`, int64(10),
		`$."title"`,
		5, 5,
	}, params)
	assert.NotContains(t, sql, "published")
}

func TestCompile_AlwaysOrdersByID(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{From: "tags"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, data FROM records WHERE resource = ? ORDER BY id ASC COLLATE BINARY", sql)
	assert.Equal(t, []any{"tags"}, params)
}

func TestCompile_IDsUseTheIDColumn(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.ByIDs("tags", model.IDs(1, 2)))
	require.NoError(t, err)
	assert.Contains(t, sql, "AND id IN (?, ?)")
	assert.Equal(t, []any{"tags", "1", "2"}, params)

	sql, _, err = NewSQLCompiler().Compile(queryir.Select{From: "tags", Filter: queryir.In{Field: "id"}})
	require.NoError(t, err)
	assert.Contains(t, sql, "0 = 1")
}

func TestCompile_Predicates(t *testing.T) {
	tests := []struct {
		name   string
		pred   queryir.Predicate
		sql    string
		params []any
	}{
		{"null", queryir.Equals{Field: "author_id"}, "json_extract(data, ?) IS NULL", []any{`$."author_id"`}},
		{"nested", queryir.Equals{Field: "author.name", Value: "ann"}, "json_extract(data, ?) = ?", []any{`$."author"."name"`, "ann"}},
		{"lte", queryir.Compare{Field: "views", Op: queryir.OpLte, Value: int64(3)}, "json_extract(data, ?) <= ?", []any{`$."views"`, int64(3)}},
		{"contains escapes", queryir.Contains{Text: "50%_off"}, `data LIKE ? ESCAPE '\'`, []any{`%50\%\_off%`}},
		{"empty contains", queryir.Contains{}, "", nil},
		{"empty and", queryir.And{}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler().compilePredicate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompileCount_IgnoresWindow(t *testing.T) {
	sel := queryir.Select{
		From:   "posts",
		Filter: queryir.And{Predicates: []queryir.Predicate{queryir.Contains{Text: "go"}}},
		Sort:   model.Sort{Field: "title"},
		Limit:  10,
		Offset: 20,
	}
	sql, params, err := NewSQLCompiler().CompileCount(sel)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM records WHERE resource = ? AND data LIKE ? ESCAPE '\'`, sql)
	assert.Equal(t, []any{"posts", "%go%"}, params)
}

func TestCompile_RejectsInvalidFields(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile(queryir.Select{From: "posts", Filter: queryir.Equals{Field: `a"b`, Value: "x"}})
	assert.ErrorContains(t, err, "invalid query")
}
