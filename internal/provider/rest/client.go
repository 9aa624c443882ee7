package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// Config holds the transport settings of a Provider.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration
	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64
	// Burst is the limiter's bucket size.
	Burst int
	// MaxRetries bounds read retries after the first attempt.
	MaxRetries uint64
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
}

// DefaultConfig returns the production defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        10 * time.Second,
		RateLimit:      20,
		Burst:          10,
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
	}
}

// Provider is a simple-rest data provider.
type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	headers http.Header
	logger  *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers.Add(key, value)
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// New creates a provider for cfg.
func New(cfg Config, opts ...Option) *Provider {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	p := &Provider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		headers: http.Header{},
		logger:  slog.Default(),
	}
	p.cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// request is one HTTP call derived from a data-provider call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

// Fetch implements provider.DataProvider.
func (p *Provider) Fetch(ctx context.Context, verb model.Verb, resource string, params model.Params) (*provider.Response, error) {
	req, err := buildRequest(verb, resource, params)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb, resource, err)
	}

	var resp *http.Response
	var body []byte
	attempt := func() error {
		var err error
		resp, body, err = p.do(ctx, req)
		return err
	}

	if verb.IsMutation() {
		err = backoff.Retry(attempt, &backoff.StopBackOff{})
	} else {
		err = backoff.RetryNotify(attempt, p.retryPolicy(ctx), func(err error, wait time.Duration) {
			p.logger.Debug("retrying request", "verb", verb, "resource", resource, "wait", wait, "error", err)
		})
	}
	if err != nil {
		return nil, err
	}
	return decodeResponse(verb, resource, params, resp, body)
}

func (p *Provider) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.cfg.InitialBackoff > 0 {
		exp.InitialInterval = p.cfg.InitialBackoff
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.cfg.MaxRetries), ctx)
}

// do performs one attempt. Errors that must not be retried are wrapped in
// backoff.Permanent.
func (p *Provider) do(ctx context.Context, r request) (*http.Response, []byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	u := p.cfg.BaseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var reader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, nil, backoff.Permanent(fmt.Errorf("encode body: %w", err))
		}
		reader = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, u, reader)
	if err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if r.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range p.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, backoff.Permanent(err)
		}
		return nil, nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: read body: %w", r.method, r.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := newHTTPError(resp.StatusCode, body)
		if herr.Temporary() {
			return nil, nil, herr
		}
		return nil, nil, backoff.Permanent(herr)
	}
	return resp, body, nil
}

func buildRequest(verb model.Verb, resource string, params model.Params) (request, error) {
	base := "/" + url.PathEscape(resource)
	switch verb {
	case model.GetList, model.GetMatching:
		q, err := listQuery(params.ListParams())
		return request{method: http.MethodGet, path: base, query: q}, err
	case model.GetManyReference:
		lp := params.ListParams()
		lp.Filter = lp.Filter.Clone()
		lp.Filter[params.Target] = params.ID.JSONValue()
		q, err := listQuery(lp)
		return request{method: http.MethodGet, path: base, query: q}, err
	case model.GetMany:
		ids := make([]any, len(params.IDs))
		for i, id := range params.IDs {
			ids[i] = id.JSONValue()
		}
		filter, err := json.Marshal(map[string]any{model.IDField: ids})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodGet, path: base, query: url.Values{"filter": {string(filter)}}}, nil
	case model.GetOne:
		return request{method: http.MethodGet, path: base + "/" + url.PathEscape(string(params.ID))}, nil
	case model.Create:
		return request{method: http.MethodPost, path: base, body: params.Data}, nil
	case model.Update:
		return request{method: http.MethodPut, path: base + "/" + url.PathEscape(string(params.ID)), body: params.Data}, nil
	case model.Delete:
		return request{method: http.MethodDelete, path: base + "/" + url.PathEscape(string(params.ID))}, nil
	default:
		return request{}, fmt.Errorf("unsupported verb %q", verb)
	}
}

// listQuery encodes sort, range and filter. range is inclusive on both
// ends.
func listQuery(lp model.ListParams) (url.Values, error) {
	q := url.Values{}
	if lp.Sort.Field != "" {
		sort, err := json.Marshal([]string{lp.Sort.Field, string(lp.Sort.Order)})
		if err != nil {
			return nil, err
		}
		q.Set("sort", string(sort))
	}
	if pp := lp.Pagination.PerPage; pp > 0 {
		start := lp.Pagination.Offset()
		q.Set("range", fmt.Sprintf("[%d,%d]", start, start+pp-1))
	}
	filter, err := json.Marshal(map[string]any(lp.Filter.Clone()))
	if err != nil {
		return nil, err
	}
	q.Set("filter", string(filter))
	return q, nil
}

func decodeResponse(verb model.Verb, resource string, params model.Params, resp *http.Response, body []byte) (*provider.Response, error) {
	var data any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("%s %s: decode body: %w", verb, resource, err)
		}
	}

	switch verb {
	case model.GetList, model.GetMatching, model.GetManyReference:
		total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", verb, resource, err)
		}
		return provider.NewListResponse(data, total), nil
	case model.Create:
		// Servers may answer with the id only.
		if obj, ok := data.(map[string]any); ok {
			rec := map[string]any(params.Data.Clone())
			if rec == nil {
				rec = map[string]any{}
			}
			for k, v := range obj {
				rec[k] = v
			}
			return provider.NewResponse(rec), nil
		}
		return provider.NewResponse(data), nil
	default:
		return provider.NewResponse(data), nil
	}
}

// parseContentRange reads the total of "posts 0-24/319".
func parseContentRange(header string) (int, error) {
	if header == "" {
		return 0, errors.New("the Content-Range header is missing in the HTTP response")
	}
	_, after, ok := strings.Cut(header, "/")
	if !ok {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	total, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	return total, nil
}
