package local

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/store"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Load(context.Background(), map[string][]model.Record{
		"posts": {
			{"id": 1, "title": "one"},
			{"id": 2, "title": "two"},
		},
		"comments": {
			{"id": 10, "post_id": 1, "body": "a"},
			{"id": 11, "post_id": 2, "body": "b"},
			{"id": 12, "post_id": 1, "body": "c"},
		},
	}))
	return New(s)
}

func fetch(t *testing.T, p *Provider, verb model.Verb, resource string, params model.Params) provider.Result {
	t.Helper()
	resp, err := p.Fetch(context.Background(), verb, resource, params)
	require.NoError(t, err)
	res, err := provider.Validate(verb, resp)
	require.NoError(t, err)
	return res
}

func TestProvider_Reads(t *testing.T) {
	p := newProvider(t)

	list := fetch(t, p, model.GetList, "posts", model.Params{}.WithList(model.ListParams{
		Pagination: model.Pagination{Page: 1, PerPage: 1},
		Sort:       model.Sort{Field: "id", Order: model.SortDESC},
	}))
	assert.Equal(t, model.IDs(2), list.IDs)
	assert.Equal(t, 2, list.Total)

	refs := fetch(t, p, model.GetManyReference, "comments", model.Params{
		Target: "post_id",
		ID:     "1",
		Sort:   model.Sort{Field: "id", Order: model.SortASC},
	})
	assert.Equal(t, model.IDs(10, 12), refs.IDs)
	assert.Equal(t, 2, refs.Total)

	many := fetch(t, p, model.GetMany, "posts", model.Params{IDs: model.IDs(2, 1)})
	assert.Equal(t, model.IDs(2, 1), many.IDs)

	one := fetch(t, p, model.GetOne, "posts", model.Params{ID: "1"})
	assert.Equal(t, "one", one.Record()["title"])
}

func TestProvider_Mutations(t *testing.T) {
	p := newProvider(t)

	created := fetch(t, p, model.Create, "posts", model.Params{Data: model.Record{"title": "three"}})
	assert.Equal(t, model.IDs(3), created.IDs)

	updated := fetch(t, p, model.Update, "posts", model.Params{ID: "3", Data: model.Record{"title": "drei"}})
	assert.Equal(t, "drei", updated.Record()["title"])

	deleted := fetch(t, p, model.Delete, "posts", model.Params{ID: "3"})
	assert.Equal(t, "drei", deleted.Record()["title"])
}

func TestProvider_ErrorStatus(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	_, err := p.Fetch(ctx, model.GetOne, "posts", model.Params{ID: "404"})
	assert.Equal(t, http.StatusNotFound, provider.StatusOf(err))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = p.Fetch(ctx, model.Create, "posts", model.Params{Data: model.Record{"id": 1}})
	assert.Equal(t, http.StatusConflict, provider.StatusOf(err))

	_, err = p.Fetch(ctx, model.GetList, "posts", model.Params{Filter: model.Filter{"score": 0.5}})
	assert.Equal(t, http.StatusBadRequest, provider.StatusOf(err))

	_, err = p.Fetch(ctx, model.Verb("PATCH"), "posts", model.Params{})
	assert.Equal(t, http.StatusBadRequest, provider.StatusOf(err))
}
