package cache

import (
	"slices"

	"github.com/roach88/admincache/internal/model"
)

// ListStatus is the fetch state of a resource's list.
type ListStatus string

const (
	ListIdle    ListStatus = "IDLE"
	ListLoading ListStatus = "LOADING"
	ListLoaded  ListStatus = "LOADED"
)

// CachedRequest is the result of the last successful GET_LIST for one
// query signature.
type CachedRequest struct {
	Resource  string     `json:"resource"`
	IDs       []model.ID `json:"ids"`
	Total     int        `json:"total"`
	FetchedAt int64      `json:"fetchedAt"`
}

// ListState is the list/query state of one resource.
//
// IDs and FetchedAt are kept together: every id in IDs has a fetchedAt entry
// and vice versa.
type ListState struct {
	Status     ListStatus
	IDs        []model.ID
	FetchedAt  map[model.ID]int64
	Total      int
	Params     model.ListParams
	LoadedOnce bool
	Expanded   []model.ID
}

// NewListState returns the initial list state for the given params.
func NewListState(params model.ListParams) *ListState {
	return &ListState{
		Status:    ListIdle,
		IDs:       []model.ID{},
		FetchedAt: make(map[model.ID]int64),
		Params:    params,
		Expanded:  []model.ID{},
	}
}

// begin marks the list as loading. Previous ids and total stay visible.
func (l *ListState) begin() {
	l.Status = ListLoading
}

// restore shows the cached result of a known query while it is refetched.
func (l *ListState) restore(c CachedRequest) {
	l.IDs = slices.Clone(c.IDs)
	l.FetchedAt = make(map[model.ID]int64, len(c.IDs))
	for _, id := range c.IDs {
		l.FetchedAt[id] = c.FetchedAt
	}
	l.Total = c.Total
}

// fail ends a loading cycle without touching ids or total.
func (l *ListState) fail() {
	if l.LoadedOnce {
		l.Status = ListLoaded
		return
	}
	l.Status = ListIdle
}

// replace installs the ids of an authoritative list fetch.
func (l *ListState) replace(ids []model.ID, total int, now int64) {
	ids = model.UniqueIDs(ids)
	l.IDs = ids
	l.FetchedAt = make(map[model.ID]int64, len(ids))
	for _, id := range ids {
		l.FetchedAt[id] = now
	}
	l.Total = total
	l.finish()
}

// accumulate merges the ids of an id-accumulation fetch. Ids from earlier
// batches survive only when re-confirmed by this batch, when they carry the
// same stamp (another chunk of the same batch) or when their fetchedAt is
// still within retention. Survivors keep their order and new ids are
// appended.
func (l *ListState) accumulate(ids []model.ID, now, retention int64) {
	next := make(map[model.ID]int64, len(l.FetchedAt)+len(ids))
	for id, at := range l.FetchedAt {
		if at == now || (retention > 0 && at > now-retention) {
			next[id] = at
		}
	}
	for _, id := range ids {
		next[id] = now
	}

	merged := make([]model.ID, 0, len(next))
	for _, id := range l.IDs {
		if _, ok := next[id]; ok {
			merged = append(merged, id)
		}
	}
	merged = model.UniqueIDs(append(merged, ids...))

	l.IDs = merged
	l.FetchedAt = next
	l.finish()
}

func (l *ListState) finish() {
	l.Status = ListLoaded
	l.LoadedOnce = true
}

// add appends id if it is not already known.
func (l *ListState) add(id model.ID, now int64) {
	if _, ok := l.FetchedAt[id]; !ok {
		l.IDs = append(l.IDs, id)
	}
	l.FetchedAt[id] = now
}

// remove drops id from the list. It reports whether the id was present.
func (l *ListState) remove(id model.ID) bool {
	idx := slices.Index(l.IDs, id)
	delete(l.FetchedAt, id)
	l.Expanded = slices.DeleteFunc(l.Expanded, func(e model.ID) bool { return e == id })
	if idx < 0 {
		return false
	}
	l.IDs = slices.Delete(l.IDs, idx, idx+1)
	if l.Total > 0 {
		l.Total--
	}
	return true
}

// toggleExpand flips the expanded state of a row.
func (l *ListState) toggleExpand(id model.ID) {
	if idx := slices.Index(l.Expanded, id); idx >= 0 {
		l.Expanded = slices.Delete(l.Expanded, idx, idx+1)
		return
	}
	l.Expanded = append(l.Expanded, id)
}

// snapshot returns a deep copy safe to hand to readers.
func (l *ListState) snapshot() ListSnapshot {
	fetchedAt := make(map[model.ID]int64, len(l.FetchedAt))
	for id, at := range l.FetchedAt {
		fetchedAt[id] = at
	}
	return ListSnapshot{
		Status:     l.Status,
		IDs:        slices.Clone(l.IDs),
		FetchedAt:  fetchedAt,
		Total:      l.Total,
		Params:     cloneParams(l.Params),
		LoadedOnce: l.LoadedOnce,
		Expanded:   slices.Clone(l.Expanded),
	}
}

// ListSnapshot is a read-only copy of a ListState.
type ListSnapshot struct {
	Status     ListStatus         `json:"status"`
	IDs        []model.ID         `json:"ids"`
	FetchedAt  map[model.ID]int64 `json:"fetchedAt"`
	Total      int                `json:"total"`
	Params     model.ListParams   `json:"params"`
	LoadedOnce bool               `json:"loadedOnce"`
	Expanded   []model.ID         `json:"expanded"`
}

func cloneParams(p model.ListParams) model.ListParams {
	p.Filter = p.Filter.Clone()
	return p
}
