package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQuerySignature_KeyIgnoresFilterOrder(t *testing.T) {
	a := ListQuerySignature{Resource: "posts", Params: ListParams{
		Pagination: Pagination{Page: 1, PerPage: 10},
		Sort:       Sort{Field: "id", Order: SortDESC},
		Filter:     Filter{"q": "go", "author": float64(3)},
	}}
	b := ListQuerySignature{Resource: "posts", Params: ListParams{
		Pagination: Pagination{Page: 1, PerPage: 10},
		Sort:       Sort{Field: "id", Order: SortDESC},
		Filter:     Filter{"author": 3, "q": "go"},
	}}

	ka, err := a.Key()
	require.NoError(t, err)
	kb, err := b.Key()
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.True(t, a.Equal(b))
	assert.Len(t, ka, 64)
}

func TestListQuerySignature_DifferentPagesDiffer(t *testing.T) {
	base := ListQuerySignature{Resource: "posts", Params: DefaultListParams(10, DefaultSort)}
	next := base
	next.Params.Pagination.Page = 2

	assert.False(t, base.Equal(next))
}

func TestListQuerySignature_NilAndEmptyFilterAgree(t *testing.T) {
	a := ListQuerySignature{Resource: "posts", Params: ListParams{Filter: nil}}
	b := ListQuerySignature{Resource: "posts", Params: ListParams{Filter: Filter{}}}
	assert.True(t, a.Equal(b))
}

func TestRequestKey_SeparatesVerbs(t *testing.T) {
	one, err := RequestKey(GetOne, "posts", Params{ID: "1"})
	require.NoError(t, err)
	del, err := RequestKey(Delete, "posts", Params{ID: "1"})
	require.NoError(t, err)
	assert.NotEqual(t, one, del)

	list, err := RequestKey(GetList, "posts", Params{})
	require.NoError(t, err)
	matching, err := RequestKey(GetMatching, "posts", Params{})
	require.NoError(t, err)
	assert.Equal(t, list, matching, "GET_MATCHING reaches the provider as GET_LIST")
}

func TestVerbHelpers(t *testing.T) {
	assert.True(t, GetMatching.Valid())
	assert.False(t, Verb("PATCH").Valid())
	assert.Equal(t, GetList, GetMatching.ProviderVerb())
	assert.True(t, GetManyReference.RequiresTotal())
	assert.True(t, GetMatching.RequiresTotal())
	assert.False(t, GetMany.RequiresTotal())
	assert.True(t, Create.IsMutation())
	assert.False(t, GetOne.ReturnsList())
}

func TestSortOrder(t *testing.T) {
	assert.Equal(t, SortDESC, SortASC.Toggle())
	assert.Equal(t, SortASC, SortDESC.Toggle())

	o, err := ParseSortOrder("desc")
	require.NoError(t, err)
	assert.Equal(t, SortDESC, o)
	_, err = ParseSortOrder("sideways")
	assert.Error(t, err)
}

func TestResourceDefinition_ListDefaults(t *testing.T) {
	lp := ResourceDefinition{Name: "posts"}.ListDefaults()
	assert.Equal(t, Pagination{Page: 1, PerPage: DefaultPerPage}, lp.Pagination)
	assert.Equal(t, DefaultSort, lp.Sort)
	assert.NotNil(t, lp.Filter)
}

func TestReferenceDefinition_Validate(t *testing.T) {
	assert.NoError(t, ReferenceDefinition{Field: "c", Reference: "comments", Kind: ReferenceMany, Target: "post_id"}.Validate())
	assert.Error(t, ReferenceDefinition{Field: "c", Reference: "comments", Kind: ReferenceMany}.Validate())
	assert.Error(t, ReferenceDefinition{Field: "a", Reference: "users", Kind: ReferenceSingle, Target: "x"}.Validate())
	assert.Error(t, ReferenceDefinition{Field: "a", Kind: ReferenceSingle}.Validate())
	assert.Error(t, ReferenceDefinition{Field: "a", Reference: "users", Kind: "weird"}.Validate())
}
