// Package local implements the data provider over the SQLite record store,
// for offline use, scenario runs and as the backend of the REST server.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/store"
)

// Error is a provider failure with an HTTP-like status, so auth checks and
// the REST server treat local and remote failures alike.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the store error.
func (e *Error) Unwrap() error { return e.Err }

// StatusCode implements provider.StatusError.
func (e *Error) StatusCode() int { return e.Status }

// Provider answers every data-provider verb from a store.
type Provider struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// New creates a provider over s.
func New(s *store.Store, opts ...Option) *Provider {
	p := &Provider{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch implements provider.DataProvider.
func (p *Provider) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	p.logger.Debug("local fetch", "verb", verb, "resource", resource)
	resp, err := p.fetch(ctx, verb, resource, params)
	if err != nil {
		return nil, classify(fmt.Errorf("%s %s: %w", verb, resource, err))
	}
	return resp, nil
}

func (p *Provider) fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	switch verb {
	case model.GetList, model.GetMatching:
		return p.list(ctx, resource, params.ListParams())
	case model.GetManyReference:
		lp := params.ListParams()
		lp.Filter = lp.Filter.Clone()
		lp.Filter[params.Target] = params.ID.JSONValue()
		return p.list(ctx, resource, lp)
	case model.GetMany:
		recs, err := p.store.GetMany(ctx, resource, params.IDs)
		if err != nil {
			return nil, err
		}
		return provider.NewResponse(toAny(recs)), nil
	case model.GetOne:
		rec, err := p.store.Get(ctx, resource, params.ID)
		if err != nil {
			return nil, err
		}
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Create:
		rec, err := p.store.Create(ctx, resource, params.Data)
		if err != nil {
			return nil, err
		}
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Update:
		rec, err := p.store.Update(ctx, resource, params.ID, params.Data)
		if err != nil {
			return nil, err
		}
		return provider.NewResponse(map[string]any(rec)), nil
	case model.Delete:
		rec, err := p.store.Delete(ctx, resource, params.ID)
		if err != nil {
			return nil, err
		}
		return provider.NewResponse(map[string]any(rec)), nil
	default:
		return nil, &Error{Status: http.StatusBadRequest, Err: fmt.Errorf("unsupported verb %q", verb)}
	}
}

func (p *Provider) list(ctx context.Context, resource string, lp model.ListParams) (*provider.Response, error) {
	page, err := p.store.List(ctx, resource, lp)
	if err != nil {
		return nil, err
	}
	return provider.NewListResponse(toAny(page.Records), page.Total), nil
}

// classify attaches a status to store errors. Anything unrecognized is a
// server error.
func classify(err error) error {
	var le *Error
	switch {
	case errors.As(err, &le):
		return err
	case errors.Is(err, store.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Status: http.StatusConflict, Err: err}
	case errors.Is(err, store.ErrInvalidQuery):
		return &Error{Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &Error{Status: http.StatusInternalServerError, Err: err}
	}
}

func toAny(recs []model.Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = map[string]any(r)
	}
	return out
}
