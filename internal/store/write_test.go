package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func TestPut_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "posts", model.Record{"id": 1, "title": "a"})
	require.NoError(t, err)
	_, err = s.Put(ctx, "posts", model.Record{"id": "1", "title": "b"})
	require.NoError(t, err)

	got, err := s.Get(ctx, "posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "b", got["title"])

	_, err = s.Put(ctx, "posts", model.Record{"title": "no id"})
	assert.Error(t, err)
}

func TestPut_SameIDDifferentResources(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "posts", model.Record{"id": 1, "title": "post"})
	require.NoError(t, err)
	_, err = s.Put(ctx, "tags", model.Record{"id": 1, "name": "tag"})
	require.NoError(t, err)

	post, err := s.Get(ctx, "posts", "1")
	require.NoError(t, err)
	assert.Equal(t, "post", post["title"])
}

func TestCreate_AssignsIDsPastExisting(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "posts", model.Record{"title": "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), first["id"])

	_, err = s.Put(ctx, "posts", model.Record{"id": 12, "title": "taken"})
	require.NoError(t, err)

	second, err := s.Create(ctx, "posts", model.Record{"title": "newer"})
	require.NoError(t, err)
	assert.Equal(t, int64(13), second["id"])

	tag, err := s.Create(ctx, "tags", model.Record{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag["id"], "non-numeric ids start the sequence at zero")
}

func TestCreate_RejectsExistingID(t *testing.T) {
	s := seededStore(t)
	_, err := s.Create(context.Background(), "posts", model.Record{"id": 2})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdate_KeepsStoredID(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	rec, err := s.Update(ctx, "posts", "2", model.Record{"id": 99, "title": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), rec["id"])

	got, err := s.Get(ctx, "posts", "2")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got["title"])
	_, err = s.Get(ctx, "posts", "99")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, "posts", "404", model.Record{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_ReturnsPrevious(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	prev, err := s.Delete(ctx, "posts", "3")
	require.NoError(t, err)
	assert.Equal(t, "Go generics", prev["title"])

	_, err = s.Get(ctx, "posts", "3")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(ctx, "posts", "3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_StoresCanonicalJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "posts", model.Record{"title": "x", "id": 1.0, "a": "<b>"})
	require.NoError(t, err)

	var data string
	require.NoError(t, s.db.QueryRow(`SELECT data FROM records WHERE id = '1'`).Scan(&data))
	assert.Equal(t, `{"a":"<b>","id":1,"title":"x"}`, data)
}
