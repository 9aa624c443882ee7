package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

const blogSchema = `
resources: posts: {
	list: true, create: true, edit: true, show: true, delete: true
	perPage: 25
	sort: {field: "published_at", order: "desc"}
	filter: {status: "published"}
	references: {
		author_id: {reference: "users", allowEmpty: true}
		tag_ids:   {reference: "tags", kind: "array", sort: {field: "name"}}
		comments:  {reference: "comments", kind: "many", target: "post_id", perPage: 5, cascade: true}
	}
}
resources: users: {list: true}
resources: tags: {}
resources: comments: {list: true, filter: {post_id: [1, 2]}}
`

func compile(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("resources.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompile(t *testing.T) {
	defs, err := Compile(compile(t, blogSchema))
	require.NoError(t, err)
	require.Len(t, defs, 4)

	names := []string{defs[0].Name, defs[1].Name, defs[2].Name, defs[3].Name}
	assert.Equal(t, []string{"posts", "users", "tags", "comments"}, names)

	posts := defs[0]
	assert.Equal(t, model.Capabilities{HasList: true, HasCreate: true, HasEdit: true, HasShow: true, HasDelete: true}, posts.Capabilities)
	assert.Equal(t, 25, posts.PerPage)
	assert.Equal(t, model.Sort{Field: "published_at", Order: model.SortDESC}, posts.Sort)
	assert.Equal(t, model.Filter{"status": "published"}, posts.Filter)

	require.Len(t, posts.References, 3)
	assert.Equal(t, model.ReferenceDefinition{
		Field:      "author_id",
		Reference:  "users",
		Kind:       model.ReferenceSingle,
		AllowEmpty: true,
	}, posts.References["author_id"])
	assert.Equal(t, model.Sort{Field: "name", Order: model.SortASC}, posts.References["tag_ids"].Sort)
	assert.Equal(t, "post_id", posts.References["comments"].Target)
	assert.Equal(t, 5, posts.References["comments"].PerPage)
	assert.True(t, posts.References["comments"].Cascade)
	assert.False(t, posts.References["tag_ids"].Cascade)

	assert.Equal(t, model.Filter{"post_id": []any{int64(1), int64(2)}}, defs[3].Filter)
	assert.Empty(t, Validate(defs))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{name: "no resources", src: `other: 1`, field: "resources"},
		{name: "empty resources", src: `resources: {}`, field: "resources"},
		{name: "unknown field", src: `resources: posts: {lsit: true}`, field: "resources.posts.lsit"},
		{name: "float filter", src: `resources: posts: {filter: {score: 1.5}}`, field: "resources.posts.filter.score"},
		{name: "nested filter", src: `resources: posts: {filter: {a: [[1]]}}`, field: "resources.posts.filter.a[0]"},
		{name: "zero perPage", src: `resources: posts: {perPage: 0}`, field: "resources.posts.perPage"},
		{name: "float perPage", src: `resources: posts: {perPage: 2.5}`, field: "resources.posts.perPage"},
		{name: "missing reference", src: `resources: posts: {references: x: {kind: "single"}}`, field: "resources.posts.references.x.reference"},
		{name: "sort without field", src: `resources: posts: {sort: {order: "ASC"}}`, field: "resources.posts.sort.field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(compile(t, tt.src))
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompile_ErrorPosition(t *testing.T) {
	_, err := Compile(compile(t, "resources: posts: {\n\tfilter: {score: 0.5}\n}\n"))
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Contains(t, err.Error(), "resources.cue:2:")
}

func TestCompile_BadType(t *testing.T) {
	_, err := Compile(compile(t, `resources: posts: {list: "yes"}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resources.cue")
	require.NoError(t, os.WriteFile(path, []byte(blogSchema), 0o644))

	defs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, defs, 4)

	pkgDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "blog.cue"), []byte("package admin\n"+blogSchema), 0o644))
	dirDefs, err := Load(pkgDir)
	require.NoError(t, err)
	assert.Equal(t, defs, dirDefs)

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestLoad_ReportsValidationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.cue")
	require.NoError(t, os.WriteFile(path, []byte(`resources: posts: {references: author_id: {reference: "users"}}`), 0o644))

	_, err := Load(path)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrUnknownReference, verrs[0].Code)
}

func TestLoadString(t *testing.T) {
	defs, err := LoadString("inline.cue", `resources: posts: {list: true}`)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].Capabilities.HasList)

	_, err = LoadString("inline.cue", `resources: posts: {perPage: -1}`)
	assert.ErrorContains(t, err, "inline.cue")
}
