package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// processBulk fans a bulk action out to one provider call per id, bounded
// by BulkConcurrency, and reports back with a single bulkDone action.
func (e *Engine) processBulk(a *bulkAction) error {
	if err := e.requireResource(a.ticket, a.kind(), a.resource); err != nil {
		return err
	}
	if len(a.ids) == 0 {
		a.ticket.resolve(OutcomeCommitted, nil)
		return nil
	}

	ctx := e.ctx
	var after <-chan struct{}
	after, a.finished = e.chainMutation(a.resource)
	previous := e.state.GetByIDs(a.resource, a.ids)
	e.state.BeginFetch()
	e.metrics.InFlight.Inc()
	e.logger.Info("bulk action started", "verb", a.verb, "resource", a.resource, "ids", len(a.ids), "token", a.ticket.Token)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		items := make([]bulkItem, len(a.ids))
		if err := waitTurn(ctx, after); err != nil {
			for i, id := range a.ids {
				items[i] = bulkItem{id: id, err: err}
			}
		} else {
			e.runBulk(ctx, a, previous, items)
		}
		close(a.finished)

		if !e.queue.Enqueue(&bulkDoneAction{bulk: a, items: items}) {
			e.state.EndFetch()
			e.metrics.InFlight.Dec()
			a.ticket.resolve(OutcomeDiscarded, ErrStopped)
		}
	}()
	return nil
}

// runBulk issues one provider call per id and records each outcome in
// items.
func (e *Engine) runBulk(ctx context.Context, a *bulkAction, previous map[model.ID]model.Record, items []bulkItem) {
	var g errgroup.Group
	g.SetLimit(max(e.cfg.BulkConcurrency, 1))
	for i, id := range a.ids {
		g.Go(func() error {
			params := model.Params{ID: id, Data: a.data, PreviousData: previous[id]}
			resp, err := e.provider.Fetch(ctx, a.verb, a.resource, params)
			var res provider.Result
			if err == nil {
				res, err = provider.Validate(a.verb, resp)
			}
			items[i] = bulkItem{id: id, result: res, err: err}
			// Failures are per id; the group never aborts.
			return nil
		})
	}
	_ = g.Wait()
}

// processBulkDone commits the successful calls of a bulk action, updates
// the selection per policy and emits one notification per outcome kind.
func (e *Engine) processBulkDone(d *bulkDoneAction) error {
	a := d.bulk
	e.state.EndFetch()
	e.metrics.InFlight.Dec()
	e.releaseMutation(a.resource, a.finished)
	now := e.clock.Next()

	var result cache.BulkResult
	var firstErr error
	for _, item := range d.items {
		if item.err != nil {
			result.Failed = append(result.Failed, item.id)
			if firstErr == nil {
				firstErr = item.err
			}
			continue
		}
		result.Succeeded = append(result.Succeeded, item.id)
		var err error
		if a.verb == model.Delete {
			err = e.state.ApplyDeleteSuccess(a.resource, item.id)
		} else {
			rec := item.result.Record()
			if rec == nil {
				rec = a.data.Clone()
				rec[model.IDField] = item.id.String()
			}
			err = e.state.ApplyRecordSuccess(a.resource, a.verb, rec, now)
		}
		if err != nil {
			e.logger.Warn("bulk commit failed", "resource", a.resource, "id", item.id, "error", err)
		}
	}

	policy := a.policy
	policy.Delete = a.verb == model.Delete
	if err := e.state.CompleteBulkAction(a.resource, result, policy); err != nil {
		e.logger.Warn("bulk selection update failed", "resource", a.resource, "error", err)
	}

	var effects []Effect
	if n := len(result.Succeeded); n > 0 {
		key := NotificationUpdated
		if a.verb == model.Delete {
			key = NotificationDeleted
		}
		effects = append(effects, e.notify(key, cache.LevelInfo, map[string]any{"smart_count": n}, a.meta.notifyFor))
	}
	outcome := OutcomeCommitted
	if firstErr != nil {
		outcome = OutcomeFailed
		effects = append(effects, e.notify(ErrorMessage(firstErr), cache.LevelWarning, nil, a.meta.notifyFor))
	}

	e.logger.Info("bulk action finished",
		"verb", a.verb,
		"resource", a.resource,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	e.publish(Update{Action: d.kind(), Resource: a.resource, Token: a.ticket.Token, Outcome: outcome, Effects: effects})
	a.ticket.resolve(outcome, firstErr)

	if firstErr != nil {
		e.checkAuthError(a.resource, firstErr)
	}
	if e.cfg.RefetchOnChange && len(result.Succeeded) > 0 {
		e.refetchList(a.resource)
	}
	return nil
}
