package model

import (
	"fmt"
	"strings"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortASC  SortOrder = "ASC"
	SortDESC SortOrder = "DESC"
)

// Toggle returns the opposite order.
func (o SortOrder) Toggle() SortOrder {
	if o == SortDESC {
		return SortASC
	}
	return SortDESC
}

// ParseSortOrder accepts ASC or DESC in any case.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(s) {
	case "ASC":
		return SortASC, nil
	case "DESC":
		return SortDESC, nil
	default:
		return "", fmt.Errorf("invalid sort order %q", s)
	}
}

// Pagination selects one page of a list.
type Pagination struct {
	Page    int `json:"page" yaml:"page"`
	PerPage int `json:"perPage" yaml:"perPage"`
}

// Offset returns the zero-based index of the first row of the page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Sort orders a list by one field.
type Sort struct {
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order" yaml:"order"`
}

// Filter is an arbitrary JSON object of filter values.
type Filter map[string]any

// Clone returns a shallow copy of the filter. A nil filter clones to an
// empty one.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ListParams are the query parameters of a list request.
type ListParams struct {
	Pagination Pagination `json:"pagination" yaml:"pagination"`
	Sort       Sort       `json:"sort" yaml:"sort"`
	Filter     Filter     `json:"filter" yaml:"filter"`
}

// DefaultListParams returns page 1 with the given page size and sort.
func DefaultListParams(perPage int, sort Sort) ListParams {
	return ListParams{
		Pagination: Pagination{Page: 1, PerPage: perPage},
		Sort:       sort,
		Filter:     Filter{},
	}
}

// Params carries the arguments of one data-provider call. Which fields are
// meaningful depends on the verb:
//
//	GET_LIST, GET_MATCHING: Pagination, Sort, Filter
//	GET_ONE, DELETE:        ID (PreviousData for DELETE)
//	GET_MANY:               IDs
//	GET_MANY_REFERENCE:     Target, ID, Pagination, Sort, Filter
//	CREATE:                 Data
//	UPDATE:                 ID, Data, PreviousData
type Params struct {
	Pagination   Pagination `json:"pagination,omitempty"`
	Sort         Sort       `json:"sort,omitempty"`
	Filter       Filter     `json:"filter,omitempty"`
	ID           ID         `json:"id,omitempty"`
	IDs          []ID       `json:"ids,omitempty"`
	Target       string     `json:"target,omitempty"`
	Data         Record     `json:"data,omitempty"`
	PreviousData Record     `json:"previousData,omitempty"`
}

// ListParams extracts the list portion of the params.
func (p Params) ListParams() ListParams {
	return ListParams{Pagination: p.Pagination, Sort: p.Sort, Filter: p.Filter}
}

// WithList returns a copy of p carrying lp.
func (p Params) WithList(lp ListParams) Params {
	p.Pagination = lp.Pagination
	p.Sort = lp.Sort
	p.Filter = lp.Filter
	return p
}
