package harness

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"sync"

	"github.com/roach88/admincache/internal/engine"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/provider/local"
	"github.com/roach88/admincache/internal/testutil"
)

// recorder sits between the engine and the local provider. It records
// every call and every effect into one trace, and fails the calls matched
// by the scenario's failures.
type recorder struct {
	next     provider.DataProvider
	failures []Failure
	clock    *testutil.Clock

	mu    sync.Mutex
	trace []TraceEvent
}

func newRecorder(next provider.DataProvider, failures []Failure) *recorder {
	return &recorder{
		next:     next,
		failures: failures,
		clock:    testutil.NewClock(),
		trace:    []TraceEvent{},
	}
}

func (r *recorder) record(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = r.clock.Next()
	r.trace = append(r.trace, ev)
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.trace))
	copy(out, r.trace)
	return out
}

// Fetch implements provider.DataProvider.
func (r *recorder) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	r.record(TraceEvent{
		Type:     EventCall,
		Verb:     string(verb),
		Resource: resource,
		Args:     callArgs(verb, params),
	})
	if f, ok := r.failure(verb, resource, params); ok {
		status := f.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return nil, &local.Error{Status: status, Err: errors.New(f.Message)}
	}
	return r.next.Fetch(ctx, verb, resource, params)
}

func (r *recorder) failure(verb model.Verb, resource string, params model.Params) (Failure, bool) {
	for _, f := range r.failures {
		if f.Verb != string(verb) {
			continue
		}
		if f.Resource != "" && f.Resource != resource {
			continue
		}
		if f.ID != nil {
			id, err := model.NormalizeID(f.ID)
			if err != nil || (id != params.ID && !model.ContainsID(params.IDs, id)) {
				continue
			}
		}
		return f, true
	}
	return Failure{}, false
}

// Observe implements engine.Observer. Hide effects are not traced: with a
// zero notification duration nothing hides on its own.
func (r *recorder) Observe(u engine.Update) {
	for _, eff := range u.Effects {
		switch eff.Kind {
		case engine.EffectNotify:
			ev := TraceEvent{Type: EventNotify}
			if n := eff.Notification; n != nil {
				ev.Key = n.Key
				ev.Level = string(n.Level)
				if len(n.Args) > 0 {
					ev.Args = maps.Clone(n.Args)
				}
			}
			r.record(ev)
		case engine.EffectRedirect:
			r.record(TraceEvent{Type: EventRedirect, Path: eff.Path})
		case engine.EffectLogout:
			r.record(TraceEvent{Type: EventLogout})
		}
	}
}

// callArgs keeps the params meaningful for verb, in JSON form.
func callArgs(verb model.Verb, params model.Params) map[string]any {
	switch verb {
	case model.GetList, model.GetMatching:
		return listArgs(params.ListParams())
	case model.GetManyReference:
		args := listArgs(params.ListParams())
		args["target"] = params.Target
		args["id"] = params.ID.JSONValue()
		return args
	case model.GetOne, model.Delete:
		return map[string]any{"id": params.ID.JSONValue()}
	case model.GetMany:
		ids := make([]any, len(params.IDs))
		for i, id := range params.IDs {
			ids[i] = id.JSONValue()
		}
		return map[string]any{"ids": ids}
	case model.Create:
		return map[string]any{"data": map[string]any(maps.Clone(params.Data))}
	case model.Update:
		return map[string]any{
			"id":   params.ID.JSONValue(),
			"data": map[string]any(maps.Clone(params.Data)),
		}
	}
	return nil
}

func listArgs(lp model.ListParams) map[string]any {
	args := map[string]any{
		"pagination": map[string]any{"page": lp.Pagination.Page, "perPage": lp.Pagination.PerPage},
		"sort":       map[string]any{"field": lp.Sort.Field, "order": string(lp.Sort.Order)},
	}
	if len(lp.Filter) > 0 {
		args["filter"] = map[string]any(maps.Clone(lp.Filter))
	}
	return args
}
