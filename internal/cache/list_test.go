package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func newTestState(t *testing.T, opts ...Option) *State {
	t.Helper()
	s, err := New(16, opts...)
	require.NoError(t, err)
	s.Register(model.ResourceDefinition{Name: "posts"})
	s.Register(model.ResourceDefinition{Name: "tags"})
	return s
}

func records(ids ...int) []model.Record {
	out := make([]model.Record, len(ids))
	for i, id := range ids {
		out[i] = model.Record{"id": id}
	}
	return out
}

func TestListState_InitialState(t *testing.T) {
	s := newTestState(t)
	list, ok := s.List("posts")
	require.True(t, ok)
	assert.Equal(t, ListIdle, list.Status)
	assert.Empty(t, list.IDs)
	assert.Equal(t, 1, list.Params.Pagination.Page)
	assert.False(t, list.LoadedOnce)
}

func TestListState_ManyAccumulationKeepsLastSurvivors(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{
		Verb: model.GetMany, Records: records(1, 2, 3), IDs: model.IDs(1, 2, 3), Now: 1,
	}))
	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{
		Verb: model.GetMany, Records: records(2, 3, 4), IDs: model.IDs(2, 3, 4), Now: 2,
	}))

	list, _ := s.List("tags")
	assert.Equal(t, model.IDs(2, 3, 4), list.IDs)
	assert.Len(t, list.FetchedAt, 3)
	assert.Equal(t, int64(2), list.FetchedAt["4"])
}

func TestListState_ChunksOfOneBatchShareStamp(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetMany, IDs: model.IDs(3, 4), Now: 7}))
	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetMany, IDs: model.IDs(1, 2), Now: 7}))

	list, _ := s.List("tags")
	assert.Equal(t, model.IDs(3, 4, 1, 2), list.IDs)

	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetMany, IDs: model.IDs(2), Now: 8}))
	list, _ = s.List("tags")
	assert.Equal(t, model.IDs(2), list.IDs)
}

func TestListState_AccumulationWithRetentionKeepsRecentIDs(t *testing.T) {
	s := newTestState(t, WithListRetention(10))

	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetMany, IDs: model.IDs(1, 2), Now: 1}))
	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetManyReference, IDs: model.IDs(3), Now: 5}))

	list, _ := s.List("tags")
	assert.Equal(t, model.IDs(1, 2, 3), list.IDs)

	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetMany, IDs: model.IDs(4), Now: 20}))
	list, _ = s.List("tags")
	assert.Equal(t, model.IDs(4), list.IDs)
}

func TestListState_GetListReplacesWholesale(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetMany, IDs: model.IDs(1, 5, 7), Now: 1}))
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{
		Verb: model.GetList, Signature: "sig", Records: records(5, 6), IDs: model.IDs(5, 6), Total: 12, Now: 2,
	}))

	list, _ := s.List("posts")
	assert.Equal(t, model.IDs(5, 6), list.IDs)
	assert.Equal(t, 12, list.Total)
	assert.Equal(t, ListLoaded, list.Status)
	assert.True(t, list.LoadedOnce)

	var cached CachedRequest
	s.View(func(v *View) {
		cached, _ = v.CachedRequest("posts", "sig")
	})
	assert.Equal(t, model.IDs(5, 6), cached.IDs)
	assert.Equal(t, 12, cached.Total)
}

func TestListState_RequestKeepsStaleData(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, IDs: model.IDs(1, 2), Total: 2, Now: 1}))

	params := model.DefaultListParams(5, model.Sort{Field: "title", Order: model.SortASC})
	require.NoError(t, s.RequestList("posts", params, ""))

	list, _ := s.List("posts")
	assert.Equal(t, ListLoading, list.Status)
	assert.Equal(t, model.IDs(1, 2), list.IDs)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, params.Sort, list.Params.Sort)
}

func TestListState_RequestRestoresCachedSignature(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, Signature: "page1", IDs: model.IDs(1, 2), Total: 4, Now: 1}))
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, Signature: "page2", IDs: model.IDs(3, 4), Total: 4, Now: 2}))

	require.NoError(t, s.RequestList("posts", model.ListParams{}, "page1"))
	list, _ := s.List("posts")
	assert.Equal(t, ListLoading, list.Status)
	assert.Equal(t, model.IDs(1, 2), list.IDs)
	assert.Equal(t, 4, list.Total)
	assert.Equal(t, int64(1), list.FetchedAt["2"])

	require.NoError(t, s.RequestList("posts", model.ListParams{}, "page3"))
	list, _ = s.List("posts")
	assert.Equal(t, model.IDs(1, 2), list.IDs, "unknown signature keeps the visible page")
}

func TestListState_MutationDropsCachedRequests(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, Signature: "a", IDs: model.IDs(1, 2), Total: 2, Now: 1}))
	require.NoError(t, s.ApplyListSuccess("tags", ListSuccess{Verb: model.GetList, Signature: "t", IDs: model.IDs(7), Total: 1, Now: 1}))

	require.NoError(t, s.ApplyDeleteSuccess("posts", "2"))
	require.NoError(t, s.RequestList("posts", model.ListParams{}, "a"))

	list, _ := s.List("posts")
	assert.Equal(t, model.IDs(1), list.IDs, "deleted id does not come back from the cache")
	s.View(func(v *View) {
		_, ok := v.CachedRequest("posts", "a")
		assert.False(t, ok)
		_, ok = v.CachedRequest("tags", "t")
		assert.True(t, ok)
		_, ok = v.CachedRequest("posts", "t")
		assert.False(t, ok)
	})
}

func TestListState_CachedRequestsAreBounded(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	s.Register(model.ResourceDefinition{Name: "posts"})

	for i, sig := range []string{"a", "b", "c"} {
		require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, Signature: sig, IDs: model.IDs(i + 1), Total: 1, Now: int64(i + 1)}))
	}
	s.View(func(v *View) {
		_, ok := v.CachedRequest("posts", "a")
		assert.False(t, ok, "oldest signature evicted")
		_, ok = v.CachedRequest("posts", "c")
		assert.True(t, ok)
	})
}

func TestListState_FailureRetainsPreviousResult(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.RequestList("posts", model.ListParams{}, ""))
	require.NoError(t, s.ApplyListFailure("posts"))
	list, _ := s.List("posts")
	assert.Equal(t, ListIdle, list.Status, "never loaded, back to idle")

	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, IDs: model.IDs(1), Total: 1, Now: 1}))
	require.NoError(t, s.RequestList("posts", model.ListParams{}, ""))
	require.NoError(t, s.ApplyListFailure("posts"))

	list, _ = s.List("posts")
	assert.Equal(t, ListLoaded, list.Status)
	assert.Equal(t, model.IDs(1), list.IDs)
	assert.Equal(t, 1, list.Total)
}

func TestListState_CreateOrUpdateAddsIdempotently(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{Verb: model.GetList, IDs: model.IDs(1, 2), Total: 2, Now: 1}))

	require.NoError(t, s.ApplyRecordSuccess("posts", model.Create, model.Record{"id": 3}, 2))
	require.NoError(t, s.ApplyRecordSuccess("posts", model.Update, model.Record{"id": 3, "title": "x"}, 3))
	require.NoError(t, s.ApplyRecordSuccess("posts", model.GetOne, model.Record{"id": 9}, 4))

	list, _ := s.List("posts")
	assert.Equal(t, model.IDs(1, 2, 3), list.IDs)
	_, ok := s.GetByID("posts", "9")
	assert.True(t, ok, "GET_ONE merges the record without touching list ids")
}

func TestListState_DeleteToleratesNumericIDs(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ApplyListSuccess("posts", ListSuccess{
		Verb: model.GetList, Records: records(1, 2), IDs: model.IDs(1, 2), Total: 2, Now: 1,
	}))

	require.NoError(t, s.ApplyDeleteSuccess("posts", model.MustID(float64(2))))

	list, _ := s.List("posts")
	assert.Equal(t, model.IDs(1), list.IDs)
	assert.Equal(t, 1, list.Total)
	_, ok := s.GetByID("posts", "2")
	assert.False(t, ok)
}

func TestListState_UnknownResource(t *testing.T) {
	s := newTestState(t)
	err := s.RequestList("comments", model.ListParams{}, "")
	assert.ErrorIs(t, err, ErrUnknownResource)
	_, err = s.Merge("comments", records(1), 1)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestListState_ToggleExpand(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ToggleExpand("posts", "1"))
	list, _ := s.List("posts")
	assert.Equal(t, model.IDs(1), list.Expanded)

	require.NoError(t, s.ToggleExpand("posts", "1"))
	list, _ = s.List("posts")
	assert.Empty(t, list.Expanded)
}
