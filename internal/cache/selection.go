package cache

import (
	"fmt"
	"slices"

	"github.com/roach88/admincache/internal/model"
)

// SelectionMode scopes how long a selection lives.
type SelectionMode string

const (
	// SelectSingle allows at most one selected id.
	SelectSingle SelectionMode = "single"
	// SelectPage keeps the selection until the list params change.
	SelectPage SelectionMode = "page"
	// SelectBulk keeps the selection across navigation.
	SelectBulk SelectionMode = "bulk"
)

// ParseSelectionMode validates a mode name.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch m := SelectionMode(s); m {
	case SelectSingle, SelectPage, SelectBulk:
		return m, nil
	default:
		return "", fmt.Errorf("invalid selection mode %q", s)
	}
}

// Selection is the set of selected ids of one resource, in the order they
// were selected.
type Selection struct {
	Mode SelectionMode
	ids  []model.ID
}

// NewSelection returns an empty page-mode selection.
func NewSelection() *Selection {
	return &Selection{Mode: SelectPage}
}

// Change selects or deselects ids under mode. Switching to a different mode
// clears the previous selection first.
//
// In single mode a selection replaces the whole set with the last given id.
func (s *Selection) Change(ids []model.ID, selected bool, mode SelectionMode) {
	if mode != s.Mode {
		s.ids = nil
		s.Mode = mode
	}

	if mode == SelectSingle {
		if selected {
			if len(ids) > 0 {
				s.ids = []model.ID{ids[len(ids)-1]}
			}
			return
		}
		s.Remove(ids...)
		return
	}

	if !selected {
		s.Remove(ids...)
		return
	}
	for _, id := range ids {
		if !slices.Contains(s.ids, id) {
			s.ids = append(s.ids, id)
		}
	}
}

// Remove deselects ids regardless of mode.
func (s *Selection) Remove(ids ...model.ID) {
	if len(ids) == 0 || len(s.ids) == 0 {
		return
	}
	s.ids = slices.DeleteFunc(s.ids, func(id model.ID) bool {
		return slices.Contains(ids, id)
	})
}

// Clear empties the selection. The mode is kept.
func (s *Selection) Clear() {
	s.ids = nil
}

// ParamsChanged applies list navigation: page-mode selections are wiped.
func (s *Selection) ParamsChanged() {
	if s.Mode == SelectPage {
		s.ids = nil
	}
}

// IDs returns a copy of the selected ids.
func (s *Selection) IDs() []model.ID {
	if len(s.ids) == 0 {
		return []model.ID{}
	}
	return slices.Clone(s.ids)
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id model.ID) bool {
	return slices.Contains(s.ids, id)
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// BulkResult is the outcome of a bulk action over a selection.
type BulkResult struct {
	Succeeded []model.ID
	Failed    []model.ID
}

// BulkPolicy says which ids stay selected after a bulk action.
type BulkPolicy struct {
	KeepSelectionSuccess bool
	KeepSelectionFailed  bool
	// Delete marks delete-type actions. Deleted ids never stay selected,
	// whatever KeepSelectionSuccess says.
	Delete bool
}

// CompleteBulk removes the ids that the policy does not keep.
func (s *Selection) CompleteBulk(result BulkResult, policy BulkPolicy) {
	if policy.Delete || !policy.KeepSelectionSuccess {
		s.Remove(result.Succeeded...)
	}
	if !policy.KeepSelectionFailed {
		s.Remove(result.Failed...)
	}
}

// SelectionSnapshot is a read-only copy of a Selection.
type SelectionSnapshot struct {
	Mode SelectionMode `json:"mode"`
	IDs  []model.ID    `json:"ids"`
}

func (s *Selection) snapshot() SelectionSnapshot {
	return SelectionSnapshot{Mode: s.Mode, IDs: s.IDs()}
}
