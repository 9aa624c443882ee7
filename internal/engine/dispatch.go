package engine

import (
	"time"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/references"
)

// OneOptions tune a GET_ONE. With a BasePath set, a failure warns that the
// item does not exist and navigates back to BasePath.
type OneOptions struct {
	BasePath string
}

// MutationOptions tune the side effects of CREATE, UPDATE, DELETE and bulk
// actions.
type MutationOptions struct {
	// BasePath is the route prefix for redirects. Defaults to /<resource>.
	BasePath string
	// RedirectTo overrides the default redirect of the verb.
	RedirectTo RedirectTo
	// NotificationDuration overrides the default auto-hide delay.
	NotificationDuration time.Duration
	// RefreshList refetches the resource's list after success.
	RefreshList bool
}

func (o MutationOptions) meta() requestMeta {
	return requestMeta{
		basePath:     o.BasePath,
		redirectTo:   o.RedirectTo,
		notifyFor:    o.NotificationDuration,
		refreshAfter: o.RefreshList,
	}
}

// ManyReferenceRequest asks for the records of Reference whose Target field
// equals ID, on behalf of a record of Source.
type ManyReferenceRequest struct {
	Source    string
	Reference string
	Target    string
	ID        model.ID
	Params    model.ListParams
	// Key is the one-to-many cache key. Derived from the other fields when
	// empty.
	Key string
}

// MatchingRequest asks for the candidate records of a reference input.
type MatchingRequest struct {
	Reference string
	// Key is the possible-values cache key, usually
	// references.ReferenceSource(resource, field).
	Key    string
	Params model.ListParams
}

func (e *Engine) fetch(verb model.Verb, resource string, params model.Params, meta requestMeta) *Ticket {
	t := e.newTicket()
	return e.enqueue(&fetchAction{ticket: t, verb: verb, resource: resource, params: params, meta: meta}, t)
}

// RequestList fetches one page of a resource's list. A newer list request
// for the same resource supersedes it.
func (e *Engine) RequestList(resource string, params model.ListParams) *Ticket {
	return e.fetch(model.GetList, resource, model.Params{}.WithList(params), requestMeta{})
}

// RequestOne fetches one record.
func (e *Engine) RequestOne(resource string, id model.ID, opts OneOptions) *Ticket {
	return e.fetch(model.GetOne, resource, model.Params{ID: id}, requestMeta{basePath: opts.BasePath})
}

// RequestMany asks for records by id. Calls for the same resource within
// the accumulation window share one GET_MANY.
func (e *Engine) RequestMany(resource string, ids []model.ID) *Ticket {
	t := e.newTicket()
	return e.enqueue(&manyAction{ticket: t, resource: resource, ids: model.UniqueIDs(ids)}, t)
}

// RequestManyReference fetches the records referencing one owner record and
// stores their ids under the request's join key.
func (e *Engine) RequestManyReference(req ManyReferenceRequest) *Ticket {
	key := req.Key
	if key == "" {
		key = references.NameRelatedTo(req.Reference, req.ID, req.Source, req.Target, req.Params.Filter)
	}
	params := model.Params{Target: req.Target, ID: req.ID}.WithList(req.Params)
	return e.fetch(model.GetManyReference, req.Reference, params, requestMeta{key: key})
}

// RequestMatching fetches the candidates of a reference input. The result
// updates only the possible-values cache and the record store.
func (e *Engine) RequestMatching(req MatchingRequest) *Ticket {
	return e.fetch(model.GetMatching, req.Reference, model.Params{}.WithList(req.Params), requestMeta{key: req.Key})
}

// RequestReferences fetches everything needed to render the reference
// fields of records of resource: one accumulated GET_MANY per referenced
// resource and one GET_MANY_REFERENCE per record and reverse reference.
func (e *Engine) RequestReferences(resource string, records []model.Record) ([]*Ticket, error) {
	def, ok := e.state.Definition(resource)
	if !ok {
		return nil, NewUnknownResourceError("", resource)
	}
	many, reverse, err := references.Plan(def, records)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidReference, Message: err.Error(), Resource: resource}
	}
	tickets := make([]*Ticket, 0, len(many)+len(reverse))
	for _, need := range many {
		tickets = append(tickets, e.RequestMany(need.Reference, need.IDs))
	}
	for _, need := range reverse {
		tickets = append(tickets, e.RequestManyReference(ManyReferenceRequest{
			Source:    resource,
			Reference: need.Reference,
			Target:    need.Target,
			ID:        need.ID,
			Params:    need.ListParams,
			Key:       need.Key,
		}))
	}
	return tickets, nil
}

// RequestCreate creates a record. On success the engine notifies and
// redirects, by default to the edit page of the returned id.
func (e *Engine) RequestCreate(resource string, data model.Record, opts MutationOptions) *Ticket {
	return e.fetch(model.Create, resource, model.Params{Data: data}, opts.meta())
}

// RequestUpdate updates a record. On success the engine notifies and
// redirects, by default to the show page.
func (e *Engine) RequestUpdate(resource string, id model.ID, data, previous model.Record, opts MutationOptions) *Ticket {
	return e.fetch(model.Update, resource, model.Params{ID: id, Data: data, PreviousData: previous}, opts.meta())
}

// RequestDelete deletes a record. The record leaves the cache only once the
// provider confirms.
func (e *Engine) RequestDelete(resource string, id model.ID, previous model.Record, opts MutationOptions) *Ticket {
	return e.fetch(model.Delete, resource, model.Params{ID: id, PreviousData: previous}, opts.meta())
}

func (e *Engine) changeParams(resource string, change cache.ParamChange) *Ticket {
	t := e.newTicket()
	return e.enqueue(&paramAction{ticket: t, resource: resource, change: change}, t)
}

// SetFilter replaces the list filter and returns to page 1.
func (e *Engine) SetFilter(resource string, filter model.Filter) *Ticket {
	return e.changeParams(resource, cache.ParamChange{Kind: cache.ChangeFilter, Filter: filter})
}

// SetFilterDebounced is SetFilter delayed until no newer filter for the
// same resource arrived within the debounce delay. Superseded calls resolve
// as discarded.
func (e *Engine) SetFilterDebounced(resource string, filter model.Filter) *Ticket {
	t := e.newTicket()
	a := &paramAction{ticket: t, resource: resource, change: cache.ParamChange{Kind: cache.ChangeFilter, Filter: filter.Clone()}}
	e.debouncer.schedule("filter/"+resource, t, func() {
		e.enqueue(a, t)
	})
	return t
}

// SetSort sorts by field. Sorting by the current field toggles the order;
// a new field uses order, or ASC when order is empty.
func (e *Engine) SetSort(resource, field string, order model.SortOrder) *Ticket {
	return e.changeParams(resource, cache.ParamChange{Kind: cache.ChangeSort, Field: field, Order: order})
}

// SetPage moves to a page.
func (e *Engine) SetPage(resource string, page int) *Ticket {
	return e.changeParams(resource, cache.ParamChange{Kind: cache.ChangePage, Page: page})
}

// SetPerPage changes the page size and returns to page 1.
func (e *Engine) SetPerPage(resource string, perPage int) *Ticket {
	return e.changeParams(resource, cache.ParamChange{Kind: cache.ChangePerPage, PerPage: perPage})
}

// ChangeSelection selects or deselects ids.
func (e *Engine) ChangeSelection(resource string, ids []model.ID, selected bool, mode cache.SelectionMode) *Ticket {
	t := e.newTicket()
	return e.enqueue(&selectionAction{ticket: t, resource: resource, ids: ids, selected: selected, mode: mode}, t)
}

// ClearSelection empties a resource's selection.
func (e *Engine) ClearSelection(resource string) *Ticket {
	t := e.newTicket()
	return e.enqueue(&selectionAction{ticket: t, resource: resource, clear: true}, t)
}

// ToggleExpand flips the expanded state of list rows.
func (e *Engine) ToggleExpand(resource string, ids ...model.ID) *Ticket {
	t := e.newTicket()
	return e.enqueue(&selectionAction{ticket: t, resource: resource, ids: ids, expand: true}, t)
}

// RegisterResource adds or redefines a resource. Reference definitions are
// validated first.
func (e *Engine) RegisterResource(def model.ResourceDefinition) *Ticket {
	t := e.newTicket()
	return e.enqueue(&registryAction{ticket: t, def: def}, t)
}

// UnregisterResource drops a resource and its cache.
func (e *Engine) UnregisterResource(name string) *Ticket {
	t := e.newTicket()
	return e.enqueue(&registryAction{ticket: t, def: model.ResourceDefinition{Name: name}, unregister: true}, t)
}

// BulkUpdate applies data to every id, one UPDATE per id.
func (e *Engine) BulkUpdate(resource string, ids []model.ID, data model.Record, policy cache.BulkPolicy, opts MutationOptions) *Ticket {
	t := e.newTicket()
	return e.enqueue(&bulkAction{ticket: t, verb: model.Update, resource: resource, ids: model.UniqueIDs(ids), data: data, policy: policy, meta: opts.meta()}, t)
}

// BulkDelete deletes every id, one DELETE per id. Deleted ids always leave
// the selection.
func (e *Engine) BulkDelete(resource string, ids []model.ID, policy cache.BulkPolicy, opts MutationOptions) *Ticket {
	t := e.newTicket()
	return e.enqueue(&bulkAction{ticket: t, verb: model.Delete, resource: resource, ids: model.UniqueIDs(ids), policy: policy, meta: opts.meta()}, t)
}

// CheckAuth asks the auth provider whether the session is still valid. A
// rejection logs the user out.
func (e *Engine) CheckAuth(params provider.AuthParams) *Ticket {
	t := e.newTicket()
	return e.enqueue(&authAction{ticket: t, verb: provider.AuthCheck, params: params}, t)
}

// Sync resolves once every action enqueued before it has been processed.
// Provider calls those actions started may still be in flight.
func (e *Engine) Sync() *Ticket {
	t := e.newTicket()
	return e.enqueue(&syncAction{ticket: t}, t)
}
