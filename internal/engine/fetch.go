package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// processFetch validates a fetch and launches it. List fetches go through
// the supervisor; everything else is launched directly.
func (e *Engine) processFetch(a *fetchAction) error {
	if !a.verb.Valid() {
		return e.refuse(a.ticket, a.kind(), a.resource, &RuntimeError{
			Code:     ErrCodeInvalidVerb,
			Message:  fmt.Sprintf("unknown verb %q", a.verb),
			Token:    a.ticket.Token,
			Resource: a.resource,
		})
	}
	if err := e.requireResource(a.ticket, a.kind(), a.resource); err != nil {
		return err
	}
	if a.verb == model.GetList {
		return e.startList(a.ticket, a.resource, a.params.ListParams())
	}
	if err := e.validateParams(a); err != nil {
		return e.refuse(a.ticket, a.kind(), a.resource, err)
	}

	e.launch(&task{
		token:    a.ticket.Token,
		verb:     a.verb,
		resource: a.resource,
		params:   a.params,
		meta:     a.meta,
		group:    newTicketGroup(1, a.ticket),
	})
	return nil
}

func (e *Engine) validateParams(a *fetchAction) error {
	switch a.verb {
	case model.GetOne, model.Update, model.Delete:
		if a.params.ID.IsZero() {
			return NewInvalidRequestError(a.ticket.Token, a.resource, fmt.Sprintf("%s requires an id", a.verb))
		}
	case model.GetManyReference:
		if a.params.Target == "" || a.params.ID.IsZero() {
			return NewInvalidRequestError(a.ticket.Token, a.resource, "GET_MANY_REFERENCE requires a target and an id")
		}
	case model.Create:
		if a.params.Data == nil {
			return NewInvalidRequestError(a.ticket.Token, a.resource, "CREATE requires data")
		}
	}
	return nil
}

// startList marks the list loading and hands the request to the
// supervisor. An identical request already in flight is joined. A query
// answered before shows its cached page until the refetch commits.
func (e *Engine) startList(t *Ticket, resource string, params model.ListParams) error {
	sig, err := model.ListQuerySignature{Resource: resource, Params: params}.Key()
	if err != nil {
		return e.refuse(t, "fetch", resource, NewInvalidRequestError(t.Token, resource, err.Error()))
	}
	if err := e.state.RequestList(resource, params, sig); err != nil {
		return e.refuse(t, "fetch", resource, NewUnknownResourceError(t.Token, resource))
	}

	next := &task{
		token:     t.Token,
		verb:      model.GetList,
		resource:  resource,
		params:    model.Params{}.WithList(params),
		signature: sig,
		group:     newTicketGroup(1, t),
	}
	joined, superseded := e.supervisor.begin(next)
	if joined != nil {
		joined.group.join(t)
		e.logger.Debug("list request joined", "resource", resource, "token", t.Token, "joined", joined.token)
		return nil
	}
	if superseded != nil {
		e.logger.Debug("list request superseded", "resource", resource, "token", superseded.token, "by", t.Token)
		superseded.group.discard(nil)
	}
	e.launch(next)
	return nil
}

// launch starts the provider call of t on its own goroutine. Mutations of
// one resource reach the provider in dispatch order.
func (e *Engine) launch(t *task) {
	ctx, cancel := context.WithCancel(e.ctx)
	t.cancel = cancel
	t.started = time.Now()
	if t.verb.IsMutation() {
		t.after, t.finished = e.chainMutation(t.resource)
	}

	e.state.BeginFetch()
	e.metrics.InFlight.Inc()
	e.logger.Debug("fetch started", "verb", t.verb, "resource", t.resource, "token", t.token)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		var resp *provider.Response
		err := waitTurn(ctx, t.after)
		if err == nil {
			resp, err = e.call(ctx, t)
		}
		if t.finished != nil {
			close(t.finished)
		}
		var res provider.Result
		if err == nil {
			res, err = provider.Validate(t.verb.ProviderVerb(), resp)
		}
		done := &completionAction{task: t, result: res, err: err, elapsed: time.Since(t.started)}
		if !e.queue.Enqueue(done) {
			e.state.EndFetch()
			e.metrics.InFlight.Dec()
			t.group.discard(ErrStopped)
		}
	}()
}

// chainMutation appends a mutation to the chain of its resource. The
// returned after channel is nil when nothing is pending.
func (e *Engine) chainMutation(resource string) (after <-chan struct{}, finished chan struct{}) {
	finished = make(chan struct{})
	if prev, ok := e.mutations[resource]; ok {
		after = prev
	}
	e.mutations[resource] = finished
	return after, finished
}

// releaseMutation forgets finished when it is still the tail of the chain.
func (e *Engine) releaseMutation(resource string, finished chan struct{}) {
	if finished != nil && e.mutations[resource] == finished {
		delete(e.mutations, resource)
	}
}

func waitTurn(ctx context.Context, after <-chan struct{}) error {
	if after == nil {
		return nil
	}
	select {
	case <-after:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call performs the provider call. Concurrent GET_ONE calls for the same
// record share one round trip.
func (e *Engine) call(ctx context.Context, t *task) (*provider.Response, error) {
	verb := t.verb.ProviderVerb()
	if t.verb != model.GetOne {
		return e.provider.Fetch(ctx, verb, t.resource, t.params)
	}
	key, err := model.RequestKey(t.verb, t.resource, t.params)
	if err != nil {
		return nil, err
	}
	v, err, shared := e.reads.Do(key, func() (any, error) {
		return e.provider.Fetch(ctx, verb, t.resource, t.params)
	})
	if shared {
		e.logger.Debug("GET_ONE shared", "resource", t.resource, "id", t.params.ID)
	}
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*provider.Response)
	return resp, nil
}

// processCompletion commits or discards the result of a provider call.
func (e *Engine) processCompletion(c *completionAction) error {
	t := c.task
	e.state.EndFetch()
	e.metrics.InFlight.Dec()
	e.releaseMutation(t.resource, t.finished)

	if t.verb == model.GetList {
		if !e.supervisor.isCurrent(t) {
			e.metrics.Stale.Inc()
			e.metrics.observe(t.verb, OutcomeDiscarded, c.elapsed)
			e.logger.Debug("stale list response discarded", "resource", t.resource, "token", t.token)
			e.publish(Update{Action: c.kind(), Resource: t.resource, Token: t.token, Outcome: OutcomeDiscarded})
			t.group.discard(nil)
			return nil
		}
		e.supervisor.finish(t)
	}

	if c.err != nil {
		e.metrics.observe(t.verb, OutcomeFailed, c.elapsed)
		e.logger.Warn("fetch failed", "verb", t.verb, "resource", t.resource, "token", t.token, "error", c.err)
		effects := e.reconcileFailure(t, c.err)
		e.publish(Update{Action: c.kind(), Resource: t.resource, Token: t.token, Outcome: OutcomeFailed, Effects: effects})
		t.group.done(c.err)
		e.checkAuthError(t.resource, c.err)
		return nil
	}

	effects, err := e.reconcileSuccess(t, c.result)
	if err != nil {
		e.metrics.observe(t.verb, OutcomeFailed, c.elapsed)
		e.publish(Update{Action: c.kind(), Resource: t.resource, Token: t.token, Outcome: OutcomeFailed, Effects: effects})
		t.group.done(err)
		return fmt.Errorf("commit %s %s: %w", t.verb, t.resource, err)
	}
	e.metrics.observe(t.verb, OutcomeCommitted, c.elapsed)
	e.publish(Update{Action: c.kind(), Resource: t.resource, Token: t.token, Outcome: OutcomeCommitted, Effects: effects})
	t.group.done(nil)
	if t.meta.refreshAfter {
		e.refetchList(t.resource)
	}
	return nil
}

// processMany adds ids to the resource's open batch, opening it and
// scheduling its flush when needed.
func (e *Engine) processMany(a *manyAction) error {
	if err := e.requireResource(a.ticket, a.kind(), a.resource); err != nil {
		return err
	}
	if len(a.ids) == 0 {
		a.ticket.resolve(OutcomeCommitted, nil)
		return nil
	}
	if !e.accumulator.add(a.resource, a.ids, a.ticket) {
		return nil
	}
	flush := &flushAction{resource: a.resource}
	if e.cfg.AccumulateWindow <= 0 {
		e.queue.Enqueue(flush)
		return nil
	}
	time.AfterFunc(e.cfg.AccumulateWindow, func() {
		e.queue.Enqueue(flush)
	})
	return nil
}

// processFlush issues the GET_MANY calls of a closed batch. Every ticket of
// the batch resolves once all chunks are done.
func (e *Engine) processFlush(a *flushAction) error {
	b, ok := e.accumulator.take(a.resource)
	if !ok {
		return nil
	}
	if saved := b.requested - len(b.ids); saved > 0 {
		e.metrics.Coalesced.Add(float64(saved))
	}
	chunks := chunkIDs(b.ids, e.cfg.MaxBatchSize)
	group := newTicketGroup(len(chunks), b.tickets...)
	stamp := e.clock.Next()
	e.logger.Debug("GET_MANY batch flushed", "resource", a.resource, "ids", len(b.ids), "requests", len(b.tickets), "calls", len(chunks))
	for _, ids := range chunks {
		e.launch(&task{
			token:    b.tickets[0].Token,
			verb:     model.GetMany,
			resource: a.resource,
			params:   model.Params{IDs: ids},
			stamp:    stamp,
			group:    group,
		})
	}
	return nil
}

// refetchList reissues the current list query of a resource.
func (e *Engine) refetchList(resource string) {
	list, ok := e.state.List(resource)
	if !ok {
		return
	}
	t := e.newTicket()
	if err := e.startList(t, resource, list.Params); err != nil {
		e.logger.Warn("list refetch failed", "resource", resource, "error", err)
	}
}
