package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func TestSelection_BulkToggle(t *testing.T) {
	s := NewSelection()
	s.Change(model.IDs(1, 2), true, SelectBulk)
	s.Change(model.IDs(2, 3), true, SelectBulk)
	assert.Equal(t, model.IDs(1, 2, 3), s.IDs())

	s.Change(model.IDs(1), false, SelectBulk)
	assert.Equal(t, model.IDs(2, 3), s.IDs())
}

func TestSelection_BulkSurvivesNavigation(t *testing.T) {
	s := NewSelection()
	s.Change(model.IDs(1), true, SelectBulk)
	s.ParamsChanged()
	assert.Equal(t, model.IDs(1), s.IDs())
}

func TestSelection_PageClearedOnNavigation(t *testing.T) {
	s := NewSelection()
	s.Change(model.IDs(1, 2), true, SelectPage)
	s.ParamsChanged()
	assert.Empty(t, s.IDs())
	assert.Equal(t, SelectPage, s.Mode)
}

func TestSelection_SingleHoldsAtMostOne(t *testing.T) {
	s := NewSelection()
	s.Change(model.IDs(1), true, SelectSingle)
	s.Change(model.IDs(2, 3), true, SelectSingle)
	assert.Equal(t, model.IDs(3), s.IDs())

	s.Change(model.IDs(3), false, SelectSingle)
	assert.Empty(t, s.IDs())
}

func TestSelection_ModeChangeClears(t *testing.T) {
	s := NewSelection()
	s.Change(model.IDs(1, 2), true, SelectBulk)
	s.Change(model.IDs(5), true, SelectPage)
	assert.Equal(t, model.IDs(5), s.IDs())
	assert.Equal(t, SelectPage, s.Mode)
}

func TestSelection_Clear(t *testing.T) {
	for _, mode := range []SelectionMode{SelectSingle, SelectPage, SelectBulk} {
		s := NewSelection()
		s.Change(model.IDs(1), true, mode)
		s.Clear()
		assert.Empty(t, s.IDs(), string(mode))
		assert.Equal(t, mode, s.Mode)
	}
}

func TestSelection_CompleteBulk(t *testing.T) {
	tests := []struct {
		name   string
		policy BulkPolicy
		want   []model.ID
	}{
		{"drop all", BulkPolicy{}, model.IDs(9)},
		{"keep successes", BulkPolicy{KeepSelectionSuccess: true}, model.IDs(1, 2, 9)},
		{"keep failures", BulkPolicy{KeepSelectionFailed: true}, model.IDs(3, 9)},
		{"delete never keeps successes", BulkPolicy{KeepSelectionSuccess: true, KeepSelectionFailed: true, Delete: true}, model.IDs(3, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelection()
			s.Change(model.IDs(1, 2, 3, 9), true, SelectBulk)
			s.CompleteBulk(BulkResult{Succeeded: model.IDs(1, 2), Failed: model.IDs(3)}, tt.policy)
			assert.Equal(t, tt.want, s.IDs())
		})
	}
}

func TestState_DeleteRemovesSelection(t *testing.T) {
	st := newTestState(t)
	require.NoError(t, st.ChangeSelection("posts", model.IDs(1, 2), true, SelectBulk))

	require.NoError(t, st.ApplyDeleteSuccess("posts", "2"))

	sel, ok := st.Selection("posts")
	require.True(t, ok)
	assert.Equal(t, model.IDs(1), sel.IDs)
}

func TestState_ParamChangeClearsPageSelection(t *testing.T) {
	st := newTestState(t)
	require.NoError(t, st.ChangeSelection("posts", model.IDs(1), true, SelectPage))

	params, err := st.ChangeListParams("posts", ParamChange{Kind: ChangePage, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, params.Pagination.Page)

	sel, _ := st.Selection("posts")
	assert.Empty(t, sel.IDs)
}

func TestParseSelectionMode(t *testing.T) {
	m, err := ParseSelectionMode("bulk")
	require.NoError(t, err)
	assert.Equal(t, SelectBulk, m)
	_, err = ParseSelectionMode("all")
	assert.Error(t, err)
}
