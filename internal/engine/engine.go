package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/provider"
)

// Config holds the tunables of the dispatch pipeline.
type Config struct {
	// AccumulateWindow is how long RequestMany calls are collected before
	// one GET_MANY is issued per resource.
	AccumulateWindow time.Duration
	// MaxBatchSize splits larger GET_MANY batches. Zero disables splitting.
	MaxBatchSize int
	// FilterDebounce delays SetFilterDebounced.
	FilterDebounce time.Duration
	// NotificationDuration is the default auto-hide delay. Zero or less
	// keeps notifications until they are hidden explicitly.
	NotificationDuration time.Duration
	// LoginPath is where a rejected session is sent.
	LoginPath string
	// RefetchOnChange refetches the list after param changes and bulk
	// actions.
	RefetchOnChange bool
	// BulkConcurrency bounds the provider calls of one bulk action.
	BulkConcurrency int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AccumulateWindow:     10 * time.Millisecond,
		MaxBatchSize:         100,
		FilterDebounce:       500 * time.Millisecond,
		NotificationDuration: 4 * time.Second,
		LoginPath:            "/login",
		RefetchOnChange:      true,
		BulkConcurrency:      4,
	}
}

// Engine is the single-writer dispatch pipeline in front of a data
// provider.
//
// Every state mutation happens on the goroutine running Run. Dispatch
// methods are safe from any goroutine: they enqueue an action and return a
// Ticket. Provider calls run on their own goroutines and report back by
// enqueuing completions.
type Engine struct {
	state    *cache.State
	provider provider.DataProvider
	auth     provider.AuthProvider
	clock    *Clock
	tokens   TokenGenerator
	queue    *actionQueue
	logger   *slog.Logger
	metrics  *Metrics
	cfg      Config

	supervisor  *supervisor
	accumulator *accumulator
	debouncer   *debouncer
	reads       singleflight.Group
	// mutations holds the last mutation started per resource. Only Run
	// touches it.
	mutations map[string]chan struct{}

	// ctx is the Run context; provider calls derive from it.
	ctx context.Context
	wg  sync.WaitGroup

	observers []Observer
	subsMu    sync.Mutex
	subs      map[int]chan Update
	nextSub   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithAccumulateWindow sets the GET_MANY accumulation window.
func WithAccumulateWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.AccumulateWindow = d
	}
}

// WithMaxBatchSize bounds the ids of one GET_MANY call.
func WithMaxBatchSize(n int) Option {
	return func(e *Engine) {
		e.cfg.MaxBatchSize = n
	}
}

// WithFilterDebounce sets the delay of SetFilterDebounced.
func WithFilterDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.FilterDebounce = d
	}
}

// WithNotificationDuration sets the default notification auto-hide delay.
func WithNotificationDuration(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.NotificationDuration = d
	}
}

// WithLoginPath sets the redirect target of a rejected session.
func WithLoginPath(path string) Option {
	return func(e *Engine) {
		e.cfg.LoginPath = path
	}
}

// WithRefetchOnChange toggles list refetches after param changes and bulk
// actions.
func WithRefetchOnChange(on bool) Option {
	return func(e *Engine) {
		e.cfg.RefetchOnChange = on
	}
}

// WithAuthProvider sets the auth provider. The default accepts everything.
func WithAuthProvider(a provider.AuthProvider) Option {
	return func(e *Engine) {
		e.auth = a
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the collectors. The default is an unregistered set.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the logical clock used for fetchedAt stamps.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTokenGenerator sets the generator of request tokens and notification
// ids. The default issues UUIDv7s.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithObserver adds a synchronous observer of every update.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// New creates an engine over state and dp. Call Run to start processing.
func New(state *cache.State, dp provider.DataProvider, opts ...Option) *Engine {
	e := &Engine{
		state:       state,
		provider:    dp,
		auth:        provider.AllowAll,
		clock:       NewClock(),
		tokens:      UUIDv7Generator{},
		queue:       newActionQueue(),
		logger:      slog.Default(),
		cfg:         DefaultConfig(),
		supervisor:  newSupervisor(),
		accumulator: newAccumulator(),
		mutations:   make(map[string]chan struct{}),
		ctx:         context.Background(),
		subs:        make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.debouncer = newDebouncer(e.cfg.FilterDebounce)
	return e
}

// State returns the cache the engine writes to.
func (e *Engine) State() *cache.State {
	return e.state
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Run processes actions until ctx is cancelled or Stop is called. It must
// be called from exactly one goroutine.
//
// A failing action is logged and processing continues; failures the UI must
// see are reported through notifications, not through Run's error.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.ctx = runCtx
	defer e.shutdown(cancel)

	e.logger.Info("engine starting")
	for {
		a, ok := e.queue.TryDequeue()
		if ok {
			if err := e.process(a); err != nil {
				e.logger.Error("action failed", "action", a.kind(), "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// The signal channel is closed by Close, so an empty closed
			// queue ends the loop.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop makes Run return once the queued actions are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// shutdown cancels in-flight calls, waits for their goroutines and
// discards everything that can no longer complete.
func (e *Engine) shutdown(cancel context.CancelFunc) {
	e.supervisor.cancelAll()
	cancel()
	e.debouncer.stop(ErrStopped)
	for _, b := range e.accumulator.drain() {
		resolveAll(b.tickets, OutcomeDiscarded, ErrStopped)
	}
	e.wg.Wait()
	for {
		a, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		a.discard(ErrStopped)
	}
	e.closeSubscriptions()
}

// enqueue submits an action, failing its ticket when the engine stopped.
func (e *Engine) enqueue(a action, t *Ticket) *Ticket {
	if !e.queue.Enqueue(a) && t != nil {
		t.resolve(OutcomeFailed, ErrStopped)
	}
	return t
}

func (e *Engine) newTicket() *Ticket {
	return newTicket(e.tokens.Generate())
}

// process routes an action to its handler. Called only from Run.
func (e *Engine) process(a action) error {
	switch a := a.(type) {
	case *fetchAction:
		return e.processFetch(a)
	case *manyAction:
		return e.processMany(a)
	case *flushAction:
		return e.processFlush(a)
	case *completionAction:
		return e.processCompletion(a)
	case *paramAction:
		return e.processParams(a)
	case *selectionAction:
		return e.processSelection(a)
	case *registryAction:
		return e.processRegistry(a)
	case *hideNotificationAction:
		return e.processHide(a)
	case *bulkAction:
		return e.processBulk(a)
	case *bulkDoneAction:
		return e.processBulkDone(a)
	case *authAction:
		return e.processAuth(a)
	case *authDoneAction:
		return e.processAuthDone(a)
	case *syncAction:
		a.ticket.resolve(OutcomeCommitted, nil)
		return nil
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

// refuse fails a ticket with a RuntimeError and reports it to observers.
func (e *Engine) refuse(t *Ticket, kind, resource string, err error) error {
	e.publish(Update{Action: kind, Resource: resource, Token: t.Token, Outcome: OutcomeFailed})
	t.resolve(OutcomeFailed, err)
	return err
}

func (e *Engine) requireResource(t *Ticket, kind, resource string) error {
	if _, ok := e.state.Definition(resource); ok {
		return nil
	}
	return e.refuse(t, kind, resource, NewUnknownResourceError(t.Token, resource))
}

func (e *Engine) processRegistry(a *registryAction) error {
	if a.unregister {
		if old := e.supervisor.drop(a.def.Name); old != nil {
			old.group.discard(nil)
		}
		e.state.Unregister(a.def.Name)
		e.logger.Info("resource unregistered", "resource", a.def.Name)
	} else {
		for field, ref := range a.def.References {
			if ref.Field == "" {
				ref.Field = field
			}
			if err := ref.Validate(); err != nil {
				return e.refuse(a.ticket, a.kind(), a.def.Name, NewInvalidReferenceError(a.def.Name, field, err))
			}
		}
		e.state.Register(a.def)
		e.logger.Info("resource registered", "resource", a.def.Name)
	}
	e.publish(Update{Action: a.kind(), Resource: a.def.Name, Token: a.ticket.Token, Outcome: OutcomeCommitted})
	a.ticket.resolve(OutcomeCommitted, nil)
	return nil
}

func (e *Engine) processSelection(a *selectionAction) error {
	var err error
	switch {
	case a.clear:
		err = e.state.ClearSelection(a.resource)
	case a.expand:
		for _, id := range a.ids {
			if err = e.state.ToggleExpand(a.resource, id); err != nil {
				break
			}
		}
	default:
		err = e.state.ChangeSelection(a.resource, a.ids, a.selected, a.mode)
	}
	if err != nil {
		if errors.Is(err, cache.ErrUnknownResource) {
			err = NewUnknownResourceError(a.ticket.Token, a.resource)
		}
		return e.refuse(a.ticket, a.kind(), a.resource, err)
	}
	e.publish(Update{Action: a.kind(), Resource: a.resource, Token: a.ticket.Token, Outcome: OutcomeCommitted})
	a.ticket.resolve(OutcomeCommitted, nil)
	return nil
}

func (e *Engine) processParams(a *paramAction) error {
	if err := e.requireResource(a.ticket, a.kind(), a.resource); err != nil {
		return err
	}
	if a.change.Kind == cache.ChangePerPage && a.change.PerPage <= 0 {
		return e.refuse(a.ticket, a.kind(), a.resource,
			NewInvalidRequestError(a.ticket.Token, a.resource, fmt.Sprintf("perPage must be positive, got %d", a.change.PerPage)))
	}
	params, err := e.state.ChangeListParams(a.resource, a.change)
	if err != nil {
		return e.refuse(a.ticket, a.kind(), a.resource, err)
	}
	e.logger.Debug("list params changed", "resource", a.resource, "change", a.change.Kind)
	e.publish(Update{Action: a.kind(), Resource: a.resource, Token: a.ticket.Token})
	if !e.cfg.RefetchOnChange {
		a.ticket.resolve(OutcomeCommitted, nil)
		return nil
	}
	return e.startList(a.ticket, a.resource, params)
}

func (e *Engine) processHide(a *hideNotificationAction) error {
	if !e.state.HideNotification(a.id) {
		return nil
	}
	e.publish(Update{
		Action:  a.kind(),
		Effects: []Effect{{Kind: EffectHide, Notification: &cache.Notification{ID: a.id}}},
	})
	return nil
}
