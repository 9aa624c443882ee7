package cache

import "github.com/roach88/admincache/internal/model"

// ParamChangeKind names a list param update.
type ParamChangeKind string

const (
	ChangeSort    ParamChangeKind = "SET_SORT"
	ChangePage    ParamChangeKind = "SET_PAGE"
	ChangePerPage ParamChangeKind = "SET_PER_PAGE"
	ChangeFilter  ParamChangeKind = "SET_FILTER"
)

// ParamChange is one update to a resource's list params.
type ParamChange struct {
	Kind    ParamChangeKind
	Field   string
	Order   model.SortOrder
	Page    int
	PerPage int
	Filter  model.Filter
}

// ApplyParamChange returns the params that result from applying change to
// current. current is not modified.
//
// Sorting by the current field toggles the order whatever order is
// requested. A new field uses the requested order, ASC when none is given.
// Every change except SET_PAGE goes back to page 1.
func ApplyParamChange(current model.ListParams, change ParamChange) model.ListParams {
	next := cloneParams(current)
	switch change.Kind {
	case ChangeSort:
		if change.Field == current.Sort.Field {
			next.Sort.Order = current.Sort.Order.Toggle()
		} else {
			order := change.Order
			if order == "" {
				order = model.SortASC
			}
			next.Sort = model.Sort{Field: change.Field, Order: order}
		}
		next.Pagination.Page = 1
	case ChangePage:
		next.Pagination.Page = max(change.Page, 1)
	case ChangePerPage:
		next.Pagination.PerPage = change.PerPage
		next.Pagination.Page = 1
	case ChangeFilter:
		next.Filter = change.Filter.Clone()
		next.Pagination.Page = 1
	}
	return next
}
