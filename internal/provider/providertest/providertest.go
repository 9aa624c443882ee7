// Package providertest provides a scriptable data provider for tests.
//
// In automatic mode every call is answered by a HandlerFunc. In manual mode
// every call blocks until the test picks it up with Next and answers it with
// Respond, which lets tests control completion order.
package providertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// HandlerFunc answers a call in automatic mode.
type HandlerFunc func(verb model.Verb, resource string, params model.Params) (*provider.Response, error)

type reply struct {
	resp *provider.Response
	err  error
}

// Call is one recorded provider call.
type Call struct {
	Verb     model.Verb
	Resource string
	Params   model.Params

	reply chan reply
}

// Respond answers a manual call. It must be called exactly once.
func (c *Call) Respond(resp *provider.Response, err error) {
	c.reply <- reply{resp: resp, err: err}
}

// Provider is a scriptable provider.DataProvider.
type Provider struct {
	mu      sync.Mutex
	calls   []Call
	handler HandlerFunc
	pending chan *Call
	delay   time.Duration
}

var _ provider.DataProvider = (*Provider)(nil)

// New creates a provider answering every call with handler.
func New(handler HandlerFunc) *Provider {
	return &Provider{handler: handler}
}

// NewManual creates a provider whose calls block until answered.
func NewManual() *Provider {
	return &Provider{pending: make(chan *Call, 64)}
}

// WithDelay makes every automatic answer wait d first.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.delay = d
	return p
}

// Fetch implements provider.DataProvider.
func (p *Provider) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	call := &Call{Verb: verb, Resource: resource, Params: params, reply: make(chan reply, 1)}
	p.mu.Lock()
	p.calls = append(p.calls, Call{Verb: verb, Resource: resource, Params: params})
	p.mu.Unlock()

	if p.pending == nil {
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return p.handler(verb, resource, params)
	}

	p.pending <- call
	select {
	case r := <-call.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next waits for the next manual call.
func (p *Provider) Next(t testing.TB) *Call {
	t.Helper()
	select {
	case c := <-p.pending:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a provider call")
		return nil
	}
}

// Calls returns the recorded calls in arrival order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsFor returns the recorded calls of one verb.
func (p *Provider) CallsFor(verb model.Verb) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Verb == verb {
			out = append(out, c)
		}
	}
	return out
}

// Dataset is an in-memory backend answering every verb, for automatic mode.
type Dataset struct {
	mu      sync.Mutex
	data    map[string]map[model.ID]model.Record
	nextID  int
	Failing map[model.Verb]error
}

// NewDataset creates a dataset seeded with records.
func NewDataset(seed map[string][]model.Record) *Dataset {
	d := &Dataset{data: make(map[string]map[model.ID]model.Record), nextID: 1000, Failing: map[model.Verb]error{}}
	for res, recs := range seed {
		d.data[res] = make(map[model.ID]model.Record)
		for _, rec := range recs {
			id := model.MustID(rec[model.IDField])
			d.data[res][id] = rec
		}
	}
	return d
}

// Handle is a HandlerFunc over the dataset. Lists are sorted by id and
// paginated; GET_MANY_REFERENCE filters on the target field.
func (d *Dataset) Handle(verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.Failing[verb]; err != nil {
		return nil, err
	}
	table := d.data[resource]
	if table == nil {
		table = make(map[model.ID]model.Record)
		d.data[resource] = table
	}

	switch verb {
	case model.GetList, model.GetManyReference:
		var rows []model.Record
		for _, id := range sortedIDs(table) {
			rec := table[id]
			if verb == model.GetManyReference {
				if target, err := model.NormalizeID(rec[params.Target]); err != nil || target != params.ID {
					continue
				}
			}
			rows = append(rows, rec)
		}
		total := len(rows)
		if pp := params.Pagination.PerPage; pp > 0 {
			start := min(params.Pagination.Offset(), len(rows))
			rows = rows[start:min(start+pp, len(rows))]
		}
		return provider.NewListResponse(toAny(rows), total), nil
	case model.GetMany:
		var rows []model.Record
		for _, id := range params.IDs {
			if rec, ok := table[id]; ok {
				rows = append(rows, rec)
			}
		}
		return provider.NewResponse(toAny(rows)), nil
	case model.GetOne:
		rec, ok := table[params.ID]
		if !ok {
			return nil, fmt.Errorf("%s %s not found", resource, params.ID)
		}
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Create:
		rec := params.Data.Clone()
		if _, ok := rec[model.IDField]; !ok {
			d.nextID++
			rec[model.IDField] = d.nextID
		}
		table[model.MustID(rec[model.IDField])] = rec
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Update:
		rec := params.Data.Clone()
		if prev, ok := table[params.ID]; ok {
			rec[model.IDField] = prev[model.IDField]
		} else {
			rec[model.IDField] = string(params.ID)
		}
		table[params.ID] = rec
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Delete:
		rec := table[params.ID]
		delete(table, params.ID)
		return provider.NewResponse(map[string]any(rec)), nil
	}
	return nil, fmt.Errorf("unsupported verb %s", verb)
}

func sortedIDs(table map[model.ID]model.Record) []model.ID {
	ids := make([]model.ID, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func toAny(rows []model.Record) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r)
	}
	return out
}
