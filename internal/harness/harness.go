package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/engine"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider/local"
	"github.com/roach88/admincache/internal/schema"
	"github.com/roach88/admincache/internal/store"
	"github.com/roach88/admincache/internal/testutil"
)

// DefaultTimeout bounds a whole scenario run.
const DefaultTimeout = 10 * time.Second

// settlePoll is how long settle sleeps while provider calls are in flight.
const settlePoll = time.Millisecond

// Harness runs one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	recorder *recorder
	result   *Result
	pending  []pendingStep
	logger   *slog.Logger
	timeout  time.Duration
}

type pendingStep struct {
	index  int
	step   Step
	ticket *engine.Ticket
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger of the engine and the local provider. The
// default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithTimeout bounds the run. The default is DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// Run executes a scenario and returns its result.
//
// Each run gets its own in-memory store, cache and engine. Tokens,
// notification ids and trace sequence numbers are deterministic, and
// notifications never auto-hide, so two runs of one scenario produce the
// same trace.
//
// The returned error reports a run that could not happen at all: bad
// resources, bad seed data, or a timeout. Failed steps and assertions are
// reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h.run()
}

func (h *Harness) run() (*Result, error) {
	defs, err := loadDefinitions(h.scenario)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()
	h.store = st

	seed, err := seedRecords(h.scenario.Seed)
	if err != nil {
		return nil, err
	}
	if err := st.Load(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}

	var cacheOpts []cache.Option
	if h.scenario.Config.ListRetention > 0 {
		cacheOpts = append(cacheOpts, cache.WithListRetention(h.scenario.Config.ListRetention))
	}
	state, err := cache.New(0, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	h.recorder = newRecorder(local.New(st, local.WithLogger(h.logger)), h.scenario.Config.Failures)
	h.engine = engine.New(state, h.recorder,
		engine.WithConfig(h.engineConfig()),
		engine.WithTokenGenerator(testutil.NewTokens("tok")),
		engine.WithLogger(h.logger),
		engine.WithObserver(h.recorder),
	)

	runDone := make(chan error, 1)
	go func() {
		runDone <- h.engine.Run(ctx)
	}()
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			h.engine.Stop()
			<-runDone
		}
	}
	defer stop()

	for _, def := range defs {
		outcome, err := h.engine.RegisterResource(def).Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to register resource %s: %w", def.Name, err)
		}
		if outcome != engine.OutcomeCommitted {
			return nil, fmt.Errorf("failed to register resource %s: %s", def.Name, outcome)
		}
	}

	h.result = NewResult()
	for i, step := range h.scenario.Steps {
		if err := h.runStep(ctx, i, step); err != nil {
			return nil, err
		}
	}
	if err := h.awaitPending(ctx); err != nil {
		return nil, err
	}
	if err := h.settle(ctx); err != nil {
		return nil, err
	}
	stop()

	h.result.Trace = h.recorder.events()
	for i, a := range h.scenario.Assertions {
		if err := evaluateAssertion(a, h.result.Trace, state); err != nil {
			h.result.AddError(fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return h.result, nil
}

func (h *Harness) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.AccumulateWindow = h.scenario.Config.AccumulateWindow
	if h.scenario.Config.MaxBatchSize > 0 {
		cfg.MaxBatchSize = h.scenario.Config.MaxBatchSize
	}
	cfg.FilterDebounce = 0
	cfg.NotificationDuration = 0
	cfg.RefetchOnChange = h.scenario.Config.RefetchOnChange
	cfg.BulkConcurrency = 1
	if h.scenario.Config.LoginPath != "" {
		cfg.LoginPath = h.scenario.Config.LoginPath
	}
	return cfg
}

// runStep dispatches one step. A synchronous step waits for its ticket,
// then for the async steps before it, then for every call it caused.
func (h *Harness) runStep(ctx context.Context, index int, step Step) error {
	t, err := h.dispatch(step)
	if err != nil {
		h.result.AddError(fmt.Sprintf("step[%d] %s: %v", index, step.Do, err))
		return nil
	}
	if step.Async {
		h.pending = append(h.pending, pendingStep{index: index, step: step, ticket: t})
		return nil
	}
	if err := h.finishStep(ctx, pendingStep{index: index, step: step, ticket: t}); err != nil {
		return err
	}
	if err := h.awaitPending(ctx); err != nil {
		return err
	}
	return h.settle(ctx)
}

func (h *Harness) awaitPending(ctx context.Context) error {
	pending := h.pending
	h.pending = nil
	for _, p := range pending {
		if err := h.finishStep(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// finishStep waits for the ticket of a step, traces its outcome and checks
// the expected one. Synchronous steps expect committed unless told
// otherwise.
func (h *Harness) finishStep(ctx context.Context, p pendingStep) error {
	outcome, err := p.ticket.Wait(ctx)
	if outcome == engine.OutcomePending {
		return fmt.Errorf("step[%d] %s: %w", p.index, p.step.Do, err)
	}
	h.recorder.record(TraceEvent{
		Type:     EventStep,
		Step:     p.step.Do,
		Resource: p.step.Resource,
		Outcome:  string(outcome),
	})

	expect := p.step.Expect
	if expect == "" && !p.step.Async {
		expect = string(engine.OutcomeCommitted)
	}
	if expect != "" && string(outcome) != expect {
		msg := fmt.Sprintf("step[%d] %s %s: expected %s, got %s", p.index, p.step.Do, p.step.Resource, expect, outcome)
		if err != nil {
			msg += fmt.Sprintf(" (%v)", err)
		}
		h.result.AddError(msg)
	}
	return nil
}

// settle returns once the engine has processed everything queued and no
// provider call is in flight.
func (h *Harness) settle(ctx context.Context) error {
	for {
		if _, err := h.engine.Sync().Wait(ctx); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		if h.engine.State().Loading() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("settle: %w", ctx.Err())
		case <-time.After(settlePoll):
		}
	}
}

// loadDefinitions compiles the scenario's resources file or inline schema.
func loadDefinitions(s *Scenario) ([]model.ResourceDefinition, error) {
	var (
		defs []model.ResourceDefinition
		err  error
	)
	if s.Resources != "" {
		defs, err = schema.Load(s.Resources)
	} else {
		defs, err = schema.LoadString(s.Name+".cue", s.Schema)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	return defs, nil
}

func seedRecords(seed map[string][]map[string]any) (map[string][]model.Record, error) {
	out := make(map[string][]model.Record, len(seed))
	for resource, rows := range seed {
		recs := make([]model.Record, len(rows))
		for i, row := range rows {
			rec := model.Record(row)
			if _, err := rec.ID(); err != nil {
				return nil, fmt.Errorf("seed %s[%d]: %w", resource, i, err)
			}
			recs[i] = rec
		}
		out[resource] = recs
	}
	return out, nil
}
