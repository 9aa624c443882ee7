package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/admincache/internal/model"
)

// AllResources makes Callbacks apply to every resource.
const AllResources = "*"

// ParamsHook rewrites the params of a call before it is sent. dp is the
// undecorated provider, for hooks that touch other resources.
type ParamsHook func(ctx context.Context, dp DataProvider, resource string, params model.Params) (model.Params, error)

// ResponseHook rewrites the raw response of a call.
type ResponseHook func(ctx context.Context, dp DataProvider, resource string, resp *Response) (*Response, error)

// RecordHook rewrites one record.
type RecordHook func(ctx context.Context, dp DataProvider, resource string, rec model.Record) (model.Record, error)

// Callbacks are the lifecycle hooks of one resource.
//
// Before and After run around the call of their verb. BeforeSave rewrites
// the data of CREATE and UPDATE after the Before hooks; AfterSave rewrites
// the record they return. AfterRead runs on every record returned by
// GET_ONE, GET_LIST, GET_MANY and GET_MANY_REFERENCE, after the After hooks.
type Callbacks struct {
	Resource   string
	Before     map[model.Verb][]ParamsHook
	After      map[model.Verb][]ResponseHook
	BeforeSave []RecordHook
	AfterSave  []RecordHook
	AfterRead  []RecordHook
}

func (c Callbacks) matches(resource string) bool {
	return c.Resource == resource || c.Resource == AllResources
}

type lifecycle struct {
	next      DataProvider
	callbacks []Callbacks
}

// WithLifecycleCallbacks wraps dp so that the callbacks matching a call's
// resource run around it, in the order given. A hook error aborts the call.
func WithLifecycleCallbacks(dp DataProvider, callbacks ...Callbacks) DataProvider {
	if len(callbacks) == 0 {
		return dp
	}
	return &lifecycle{next: dp, callbacks: callbacks}
}

// Fetch implements DataProvider.
func (l *lifecycle) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*Response, error) {
	var matching []Callbacks
	for _, c := range l.callbacks {
		if c.matches(resource) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return l.next.Fetch(ctx, verb, resource, params)
	}

	var err error
	for _, c := range matching {
		for _, h := range c.Before[verb] {
			if params, err = h(ctx, l.next, resource, params); err != nil {
				return nil, fmt.Errorf("before %s %s: %w", verb, resource, err)
			}
		}
	}
	if (verb == model.Create || verb == model.Update) && params.Data != nil {
		data := params.Data.Clone()
		for _, c := range matching {
			if data, err = l.applyRecord(ctx, c.BeforeSave, resource, data); err != nil {
				return nil, fmt.Errorf("before save %s: %w", resource, err)
			}
		}
		params.Data = data
	}

	resp, err := l.next.Fetch(ctx, verb, resource, params)
	if err != nil {
		return nil, err
	}

	for _, c := range matching {
		for _, h := range c.After[verb] {
			if resp, err = h(ctx, l.next, resource, resp); err != nil {
				return nil, fmt.Errorf("after %s %s: %w", verb, resource, err)
			}
		}
	}
	switch {
	case verb.ReturnsList():
		for _, c := range matching {
			if resp, err = l.applyList(ctx, c.AfterRead, resource, resp); err != nil {
				return nil, fmt.Errorf("after read %s: %w", resource, err)
			}
		}
	case verb == model.GetOne:
		for _, c := range matching {
			if resp, err = l.applyOne(ctx, c.AfterRead, resource, resp); err != nil {
				return nil, fmt.Errorf("after read %s: %w", resource, err)
			}
		}
	case verb == model.Create || verb == model.Update:
		for _, c := range matching {
			if resp, err = l.applyOne(ctx, c.AfterSave, resource, resp); err != nil {
				return nil, fmt.Errorf("after save %s: %w", resource, err)
			}
		}
	}
	return resp, nil
}

func (l *lifecycle) applyRecord(ctx context.Context, hooks []RecordHook, resource string, rec model.Record) (model.Record, error) {
	var err error
	for _, h := range hooks {
		if rec, err = h(ctx, l.next, resource, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// applyOne runs hooks on the record of resp. A response without a record
// is returned as is and left to contract validation.
func (l *lifecycle) applyOne(ctx context.Context, hooks []RecordHook, resource string, resp *Response) (*Response, error) {
	if len(hooks) == 0 || resp == nil || resp.Data == nil {
		return resp, nil
	}
	rec, err := model.ToRecord(resp.Data)
	if err != nil {
		return resp, nil
	}
	if rec, err = l.applyRecord(ctx, hooks, resource, rec); err != nil {
		return nil, err
	}
	out := *resp
	out.Data = map[string]any(rec)
	return &out, nil
}

func (l *lifecycle) applyList(ctx context.Context, hooks []RecordHook, resource string, resp *Response) (*Response, error) {
	if len(hooks) == 0 || resp == nil || resp.Data == nil {
		return resp, nil
	}
	recs, err := model.ToRecords(resp.Data)
	if err != nil {
		return resp, nil
	}
	rows := make([]any, len(recs))
	for i, rec := range recs {
		if rec, err = l.applyRecord(ctx, hooks, resource, rec); err != nil {
			return nil, err
		}
		rows[i] = map[string]any(rec)
	}
	out := *resp
	out.Data = rows
	return &out, nil
}

// CascadeDeletes returns the callbacks that delete the records of every
// cascading many reference before their parent is deleted.
func CascadeDeletes(defs []model.ResourceDefinition) []Callbacks {
	var out []Callbacks
	for _, def := range defs {
		fields := make([]string, 0, len(def.References))
		for field, ref := range def.References {
			if ref.Kind == model.ReferenceMany && ref.Cascade {
				fields = append(fields, field)
			}
		}
		if len(fields) == 0 {
			continue
		}
		sort.Strings(fields)
		hooks := make([]ParamsHook, len(fields))
		for i, field := range fields {
			hooks[i] = cascadeDelete(def.References[field])
		}
		out = append(out, Callbacks{
			Resource: def.Name,
			Before:   map[model.Verb][]ParamsHook{model.Delete: hooks},
		})
	}
	return out
}

func cascadeDelete(ref model.ReferenceDefinition) ParamsHook {
	return func(ctx context.Context, dp DataProvider, resource string, params model.Params) (model.Params, error) {
		query := model.Params{Target: ref.Target, ID: params.ID}.WithList(model.ListParams{
			Pagination: model.Pagination{Page: 1},
			Sort:       model.Sort{Field: model.IDField, Order: model.SortASC},
			Filter:     model.Filter{},
		})
		resp, err := dp.Fetch(ctx, model.GetManyReference, ref.Reference, query)
		if err != nil {
			return params, fmt.Errorf("listing %s: %w", ref.Reference, err)
		}
		res, err := Validate(model.GetManyReference, resp)
		if err != nil {
			return params, err
		}
		for i, id := range res.IDs {
			del := model.Params{ID: id, PreviousData: res.Records[i]}
			if _, err := dp.Fetch(ctx, model.Delete, ref.Reference, del); err != nil {
				return params, fmt.Errorf("deleting %s %s: %w", ref.Reference, id, err)
			}
		}
		return params, nil
	}
}
