package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/config"
	"github.com/roach88/admincache/internal/engine"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/provider/local"
	"github.com/roach88/admincache/internal/provider/rest"
	"github.com/roach88/admincache/internal/store"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	ID         string
	IDs        []string
	Page       int
	PerPage    int
	Sort       string
	Order      string
	Filter     string // JSON object
	Data       string // JSON object
	Target     string
	Source     string
	References bool
	Timeout    time.Duration
}

// FetchResult is the cache state left by one fetch.
type FetchResult struct {
	Verb          model.Verb           `json:"verb"`
	Resource      string               `json:"resource"`
	Outcome       engine.Outcome       `json:"outcome"`
	Error         string               `json:"error,omitempty"`
	Records       []model.Record       `json:"records"`
	ListIDs       []model.ID           `json:"listIds,omitempty"`
	Total         *int                 `json:"total,omitempty"`
	Notifications []cache.Notification `json:"notifications,omitempty"`
	Redirects     []string             `json:"redirects,omitempty"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <verb> <resource>",
		Short: "Run one data-provider call through the cache",
		Long: `Dispatch one request through the engine against the configured
provider and print the records it cached, the list it produced and the
notifications and redirects it emitted.

Verbs: GET_LIST, GET_ONE, GET_MANY, GET_MANY_REFERENCE, GET_MATCHING,
CREATE, UPDATE, DELETE (case-insensitive, "-" for "_").

Exit codes:
  0 - Request committed
  1 - Request failed
  2 - Command error (bad flags, unreachable store)

Examples:
  admincache fetch get_list posts --sort title --order asc --per-page 5
  admincache fetch get_one posts --id 3 --references
  admincache fetch get_many_reference comments --target post_id --id 1 --source posts
  admincache fetch create posts --data '{"title":"hello"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record id")
	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "record ids (GET_MANY)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "page size (default from the schema)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort field (default from the schema)")
	cmd.Flags().StringVar(&opts.Order, "order", "", "sort order ASC|DESC")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")
	cmd.Flags().StringVar(&opts.Data, "data", "", "record data as a JSON object (CREATE, UPDATE)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "foreign key field (GET_MANY_REFERENCE)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "owner resource (GET_MANY_REFERENCE)")
	cmd.Flags().BoolVar(&opts.References, "references", false, "also fetch the references of the returned records")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall timeout")

	return cmd
}

// ParseVerb accepts a verb name in any case, with - or _ separators.
func ParseVerb(s string) (model.Verb, error) {
	v := model.Verb(strings.ReplaceAll(strings.ToUpper(s), "-", "_"))
	if !v.Valid() {
		return "", fmt.Errorf("unknown verb %q", s)
	}
	return v, nil
}

func runFetch(opts *FetchOptions, verbArg, resource string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	verb, err := ParseVerb(verbArg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := opts.newLogger(cfg.Log, f.GetErrWriter())
	if err != nil {
		return err
	}

	defs, err := fetchDefinitions(cfg.Schema.Path, resource, opts.Source)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}
	def := defs[resource]

	dp, closeProvider, err := openProvider(cfg, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}
	defer closeProvider()
	dp = provider.WithLifecycleCallbacks(dp, provider.CascadeDeletes(slices.Collect(maps.Values(defs)))...)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	var retention []cache.Option
	if cfg.Engine.ListRetention > 0 {
		retention = append(retention, cache.WithListRetention(cfg.Engine.ListRetention))
	}
	state, err := cache.New(cfg.Engine.SideCacheSize, retention...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	collected := &effectLog{}
	eng := engine.New(state, dp,
		engine.WithConfig(cfg.Engine.Pipeline()),
		engine.WithLogger(logger),
		engine.WithObserver(collected),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	defer func() {
		eng.Stop()
		<-done
	}()

	for _, name := range model.SortedKeys(defs) {
		if _, err := eng.RegisterResource(defs[name]).Wait(ctx); err != nil {
			return f.Fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("registering %s: %v", name, err), nil)
		}
	}

	ticket, err := opts.dispatch(eng, verb, resource, def)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}
	outcome, callErr := ticket.Wait(ctx)
	if outcome == engine.OutcomePending {
		return f.Fail(ExitCommandError, ErrCodeFetchFailed, fmt.Sprintf("%s %s: %v", verb, resource, callErr), nil)
	}
	if outcome == engine.OutcomeCommitted && opts.References {
		if err := fetchReferences(ctx, eng, resource); err != nil {
			logger.Warn("fetching references failed", "resource", resource, "error", err)
		}
	}
	if err := settle(ctx, eng); err != nil {
		return f.Fail(ExitCommandError, ErrCodeFetchFailed, err.Error(), nil)
	}

	result := collectFetch(eng.State(), verb, resource, outcome, callErr)
	result.Notifications, result.Redirects = collected.snapshot()

	if f.JSON() {
		resp := CLIResponse{Status: status(outcome == engine.OutcomeCommitted), Data: result}
		if callErr != nil {
			resp.Error = &CLIError{Code: ErrCodeFetchFailed, Message: callErr.Error()}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		printFetch(f, result)
	}

	if outcome != engine.OutcomeCommitted {
		return NewExitError(ExitFailure, fmt.Sprintf("%s %s: %s", verb, resource, outcome))
	}
	return nil
}

// fetchDefinitions loads the schema when it exists. Without one, resource
// (and source, when set) get a bare definition with every capability.
func fetchDefinitions(path, resource, source string) (map[string]model.ResourceDefinition, error) {
	defs := make(map[string]model.ResourceDefinition)
	if _, err := os.Stat(path); err == nil {
		loaded, problems := loadSchema(path)
		if len(problems) > 0 {
			return nil, fmt.Errorf("schema %s: %s", path, problems[0])
		}
		for _, def := range loaded {
			defs[def.Name] = def
		}
	}
	for _, name := range []string{resource, source} {
		if _, ok := defs[name]; name != "" && !ok {
			defs[name] = bareDefinition(name)
		}
	}
	return defs, nil
}

func bareDefinition(name string) model.ResourceDefinition {
	return model.ResourceDefinition{
		Name: name,
		Capabilities: model.Capabilities{
			HasList: true, HasCreate: true, HasEdit: true, HasShow: true, HasDelete: true,
		},
	}
}

// openProvider builds the configured data provider and its cleanup.
func openProvider(cfg *config.Config, logger *slog.Logger) (provider.DataProvider, func(), error) {
	if cfg.Provider.Kind == config.ProviderREST {
		return rest.New(cfg.Provider.REST(), rest.WithLogger(logger)), func() {}, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return local.New(st, local.WithLogger(logger)), func() { _ = st.Close() }, nil
}

// dispatch issues the request the flags describe.
func (o *FetchOptions) dispatch(eng *engine.Engine, verb model.Verb, resource string, def model.ResourceDefinition) (*engine.Ticket, error) {
	filter, err := parseObject("filter", o.Filter)
	if err != nil {
		return nil, err
	}
	data, err := parseObject("data", o.Data)
	if err != nil {
		return nil, err
	}
	lp, err := o.listParams(def, filter)
	if err != nil {
		return nil, err
	}
	id := model.ID(o.ID)
	needID := func() error {
		if id.IsZero() {
			return fmt.Errorf("%s requires --id", verb)
		}
		return nil
	}

	switch verb {
	case model.GetList:
		return eng.RequestList(resource, lp), nil
	case model.GetOne:
		if err := needID(); err != nil {
			return nil, err
		}
		return eng.RequestOne(resource, id, engine.OneOptions{}), nil
	case model.GetMany:
		if len(o.IDs) == 0 {
			return nil, errors.New("GET_MANY requires --ids")
		}
		ids := make([]model.ID, len(o.IDs))
		for i, s := range o.IDs {
			ids[i] = model.ID(s)
		}
		return eng.RequestMany(resource, ids), nil
	case model.GetManyReference:
		if err := needID(); err != nil {
			return nil, err
		}
		if o.Target == "" {
			return nil, errors.New("GET_MANY_REFERENCE requires --target")
		}
		return eng.RequestManyReference(engine.ManyReferenceRequest{
			Source:    o.Source,
			Reference: resource,
			Target:    o.Target,
			ID:        id,
			Params:    lp,
		}), nil
	case model.GetMatching:
		return eng.RequestMatching(engine.MatchingRequest{Reference: resource, Key: resource, Params: lp}), nil
	case model.Create:
		if data == nil {
			return nil, errors.New("CREATE requires --data")
		}
		return eng.RequestCreate(resource, model.Record(data), engine.MutationOptions{}), nil
	case model.Update:
		if err := needID(); err != nil {
			return nil, err
		}
		if data == nil {
			return nil, errors.New("UPDATE requires --data")
		}
		return eng.RequestUpdate(resource, id, model.Record(data), nil, engine.MutationOptions{}), nil
	case model.Delete:
		if err := needID(); err != nil {
			return nil, err
		}
		return eng.RequestDelete(resource, id, nil, engine.MutationOptions{}), nil
	default:
		return nil, fmt.Errorf("unsupported verb %s", verb)
	}
}

// listParams starts from the resource defaults and applies the flags.
func (o *FetchOptions) listParams(def model.ResourceDefinition, filter map[string]any) (model.ListParams, error) {
	lp := def.ListDefaults()
	if o.Page > 0 {
		lp.Pagination.Page = o.Page
	}
	if o.PerPage > 0 {
		lp.Pagination.PerPage = o.PerPage
	}
	if o.Sort != "" {
		lp.Sort = model.Sort{Field: o.Sort, Order: model.SortASC}
	}
	if o.Order != "" {
		order, err := model.ParseSortOrder(o.Order)
		if err != nil {
			return lp, err
		}
		lp.Sort.Order = order
	}
	if filter != nil {
		lp.Filter = model.Filter(filter)
	}
	return lp, nil
}

func parseObject(flag, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	return obj, nil
}

// fetchReferences requests the references of every cached record of
// resource and waits for them.
func fetchReferences(ctx context.Context, eng *engine.Engine, resource string) error {
	var records []model.Record
	eng.State().View(func(v *cache.View) {
		ids := v.CachedIDs(resource)
		recs := v.GetByIDs(resource, ids)
		for _, id := range ids {
			if rec, ok := recs[id]; ok {
				records = append(records, rec)
			}
		}
	})
	tickets, err := eng.RequestReferences(resource, records)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tickets {
		if _, err := t.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settle waits until no provider call is in flight.
func settle(ctx context.Context, eng *engine.Engine) error {
	for {
		if _, err := eng.Sync().Wait(ctx); err != nil {
			return fmt.Errorf("waiting for in-flight calls: %w", err)
		}
		if eng.State().Loading() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func collectFetch(state *cache.State, verb model.Verb, resource string, outcome engine.Outcome, callErr error) FetchResult {
	result := FetchResult{Verb: verb, Resource: resource, Outcome: outcome, Records: []model.Record{}}
	if callErr != nil {
		result.Error = callErr.Error()
	}
	state.View(func(v *cache.View) {
		ids := v.CachedIDs(resource)
		if list, ok := v.List(resource); ok && verb.ReturnsList() {
			ids = list.IDs
			result.ListIDs = list.IDs
			total := list.Total
			result.Total = &total
		}
		recs := v.GetByIDs(resource, ids)
		for _, id := range ids {
			if rec, ok := recs[id]; ok {
				result.Records = append(result.Records, rec)
			}
		}
	})
	return result
}

func printFetch(f *OutputFormatter, r FetchResult) {
	mark := "✓"
	if r.Outcome != engine.OutcomeCommitted {
		mark = "✗"
	}
	f.Printf("%s %s %s: %s\n", mark, r.Verb, r.Resource, r.Outcome)
	if r.Error != "" {
		f.Printf("  error: %s\n", r.Error)
	}
	if r.Total != nil {
		f.Printf("  list: %v (total %d)\n", r.ListIDs, *r.Total)
	}
	for _, rec := range r.Records {
		data, err := model.MarshalCanonical(map[string]any(rec))
		if err != nil {
			data = []byte(err.Error())
		}
		f.Printf("  %s\n", data)
	}
	for _, n := range r.Notifications {
		f.Printf("  notify %s (%s)\n", n.Key, n.Level)
	}
	for _, p := range r.Redirects {
		f.Printf("  redirect %s\n", p)
	}
}

// effectLog collects the notifications and redirects of every update. It is
// written on the engine goroutine and read after Run returns.
type effectLog struct {
	notifications []cache.Notification
	redirects     []string
}

func (l *effectLog) Observe(u engine.Update) {
	for _, eff := range u.Effects {
		switch eff.Kind {
		case engine.EffectNotify:
			if eff.Notification != nil {
				l.notifications = append(l.notifications, *eff.Notification)
			}
		case engine.EffectRedirect:
			l.redirects = append(l.redirects, eff.Path)
		}
	}
}

func (l *effectLog) snapshot() ([]cache.Notification, []string) {
	return l.notifications, l.redirects
}
