package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		verb    model.Verb
		resp    *Response
		wantErr string
		wantIDs []model.ID
	}{
		{"nil response", model.GetOne, nil, "response must contain a data key", nil},
		{"missing data", model.GetOne, &Response{}, "response must contain a data key", nil},
		{"list without total", model.GetList, NewResponse([]any{}), "response must contain a total key", nil},
		{"matching without total", model.GetMatching, NewResponse([]any{}), "response must contain a total key", nil},
		{"many reference without total", model.GetManyReference, NewResponse([]any{}), "response must contain a total key", nil},
		{"many without total is fine", model.GetMany, NewResponse([]any{map[string]any{"id": float64(1)}}), "", model.IDs(1)},
		{"list", model.GetList, NewListResponse([]any{map[string]any{"id": "a"}}, 10), "", model.IDs("a")},
		{"list data not array", model.GetList, NewListResponse(map[string]any{"id": 1}, 1), "data must be an array", nil},
		{"one", model.GetOne, NewResponse(map[string]any{"id": float64(42)}), "", model.IDs(42)},
		{"one not object", model.GetOne, NewResponse("x"), "data must be a record", nil},
		{"record without id", model.Create, NewResponse(map[string]any{"title": "A"}), "has no \"id\" key", nil},
		{"delete with null data", model.Delete, NewResponse(nil), "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(tt.verb, tt.resp)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, IsContractError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, res.IDs)
		})
	}
}

func TestValidate_TotalDefaultsToLength(t *testing.T) {
	res, err := Validate(model.GetMany, NewResponse([]model.Record{{"id": 1}, {"id": 2}}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = Validate(model.GetList, NewListResponse([]model.Record{{"id": 1}}, 40))
	require.NoError(t, err)
	assert.Equal(t, 40, res.Total)
	assert.Equal(t, model.Record{"id": 1}, res.Records[0])
}

func TestFunc(t *testing.T) {
	var called model.Verb
	p := Func(func(_ context.Context, verb model.Verb, _ string, _ model.Params) (*Response, error) {
		called = verb
		return NewResponse(map[string]any{"id": 1}), nil
	})
	_, err := p.Fetch(context.Background(), model.GetOne, "posts", model.Params{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, model.GetOne, called)
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestStatusAuth(t *testing.T) {
	ctx := context.Background()
	wrapped := fmt.Errorf("fetch: %w", statusErr(http.StatusUnauthorized))

	assert.ErrorIs(t, StatusAuth.Auth(ctx, AuthError, AuthParams{Err: wrapped}), ErrUnauthenticated)
	assert.NoError(t, StatusAuth.Auth(ctx, AuthError, AuthParams{Err: statusErr(http.StatusInternalServerError)}))
	assert.NoError(t, StatusAuth.Auth(ctx, AuthError, AuthParams{Err: errors.New("network")}))
	assert.NoError(t, StatusAuth.Auth(ctx, AuthCheck, AuthParams{}))
	assert.NoError(t, AllowAll.Auth(ctx, AuthError, AuthParams{Err: wrapped}))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(wrapped))
}
