package engine

import (
	"fmt"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// Notification keys emitted by the reconciler. They are translation keys;
// the engine never formats user-facing text.
const (
	NotificationCreated         = "aor.notification.created"
	NotificationUpdated         = "aor.notification.updated"
	NotificationDeleted         = "aor.notification.deleted"
	NotificationBadItem         = "aor.notification.bad_item"
	NotificationItemDoesntExist = "aor.notification.item_doesnt_exist"
	NotificationHTTPError       = "aor.notification.http_error"
)

// ErrorMessage is the notification key of a failed call: the error's own
// message, or the generic HTTP error key when it has none.
func ErrorMessage(err error) string {
	if err == nil {
		return NotificationHTTPError
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return NotificationHTTPError
}

func (e *Engine) basePath(t *task) string {
	if t.meta.basePath != "" {
		return t.meta.basePath
	}
	return DefaultBasePath(t.resource)
}

// reconcileSuccess commits a validated response and returns the effects it
// implies.
func (e *Engine) reconcileSuccess(t *task, res provider.Result) ([]Effect, error) {
	now := t.stamp
	if now == 0 {
		now = e.clock.Next()
	}

	switch t.verb {
	case model.GetList, model.GetMany:
		err := e.state.ApplyListSuccess(t.resource, cache.ListSuccess{
			Verb:      t.verb,
			Signature: t.signature,
			Records:   res.Records,
			IDs:       res.IDs,
			Total:     res.Total,
			Now:       now,
		})
		return nil, err

	case model.GetManyReference:
		err := e.state.ApplyListSuccess(t.resource, cache.ListSuccess{
			Verb:    t.verb,
			Records: res.Records,
			IDs:     res.IDs,
			Total:   res.Total,
			Now:     now,
		})
		if err != nil {
			return nil, err
		}
		if t.meta.key != "" {
			e.state.SetOneToMany(t.meta.key, cache.OneToManyEntry{IDs: res.IDs, Total: res.Total, FetchedAt: now})
		}
		return nil, nil

	case model.GetMatching:
		if _, err := e.state.Merge(t.resource, res.Records, now); err != nil {
			return nil, err
		}
		if t.meta.key != "" {
			e.state.SetPossibleValues(t.meta.key, cache.PossibleValuesEntry{IDs: res.IDs})
		}
		return nil, nil

	case model.GetOne:
		rec := res.Record()
		id, err := rec.ID()
		if err != nil || id != t.params.ID {
			e.logger.Warn("GET_ONE returned another record", "resource", t.resource, "requested", t.params.ID, "returned", id)
			return []Effect{e.notify(NotificationBadItem, cache.LevelWarning, nil, 0)}, &provider.ContractError{
				Verb:   t.verb,
				Reason: fmt.Sprintf("requested id %s, got %s", t.params.ID, id),
			}
		}
		return nil, e.state.ApplyRecordSuccess(t.resource, t.verb, rec, now)

	case model.Create:
		rec := res.Record()
		if err := e.state.ApplyRecordSuccess(t.resource, t.verb, rec, now); err != nil {
			return nil, err
		}
		id, _ := rec.ID()
		effects := []Effect{e.notify(NotificationCreated, cache.LevelInfo, map[string]any{"smart_count": 1}, t.meta.notifyFor)}
		return append(effects, redirect(ResolveRedirect(redirectOr(t.meta.redirectTo, RedirectEdit), e.basePath(t), id))...), nil

	case model.Update:
		rec := res.Record()
		if err := e.state.ApplyRecordSuccess(t.resource, t.verb, rec, now); err != nil {
			return nil, err
		}
		effects := []Effect{e.notify(NotificationUpdated, cache.LevelInfo, map[string]any{"smart_count": 1}, t.meta.notifyFor)}
		return append(effects, redirect(ResolveRedirect(redirectOr(t.meta.redirectTo, RedirectShow), e.basePath(t), t.params.ID))...), nil

	case model.Delete:
		if err := e.state.ApplyDeleteSuccess(t.resource, t.params.ID); err != nil {
			return nil, err
		}
		effects := []Effect{e.notify(NotificationDeleted, cache.LevelInfo, map[string]any{"smart_count": 1}, t.meta.notifyFor)}
		return append(effects, redirect(ResolveRedirect(redirectOr(t.meta.redirectTo, RedirectList), e.basePath(t), t.params.ID))...), nil
	}
	return nil, nil
}

// reconcileFailure updates state after a failed call and returns the
// notification and redirect it implies. Every failure yields exactly one
// notification, except a GET_ONE without a base path which stays silent.
func (e *Engine) reconcileFailure(t *task, err error) []Effect {
	switch t.verb {
	case model.GetOne:
		if t.meta.basePath == "" {
			return nil
		}
		effects := []Effect{e.notify(NotificationItemDoesntExist, cache.LevelWarning, nil, t.meta.notifyFor)}
		return append(effects, redirect(t.meta.basePath)...)
	case model.GetList:
		if ferr := e.state.ApplyListFailure(t.resource); ferr != nil {
			e.logger.Warn("list failure on unknown resource", "resource", t.resource, "error", ferr)
		}
	case model.GetMatching:
		if t.meta.key != "" {
			e.state.SetPossibleValues(t.meta.key, cache.PossibleValuesEntry{Err: err})
		}
	}
	return []Effect{e.notify(ErrorMessage(err), cache.LevelWarning, nil, t.meta.notifyFor)}
}

func redirectOr(to, fallback RedirectTo) RedirectTo {
	if to == "" {
		return fallback
	}
	return to
}
