package engine

import "github.com/roach88/admincache/internal/provider"

// checkAuthError asks the auth provider whether a failed call ended the
// session. A rejection arrives later as an authDone action.
func (e *Engine) checkAuthError(resource string, cause error) {
	e.runAuth(nil, provider.AuthError, provider.AuthParams{Err: cause, Resource: resource})
}

func (e *Engine) processAuth(a *authAction) error {
	e.runAuth(a.ticket, a.verb, a.params)
	return nil
}

func (e *Engine) runAuth(t *Ticket, verb provider.AuthVerb, params provider.AuthParams) {
	ctx := e.ctx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.auth.Auth(ctx, verb, params)
		if !e.queue.Enqueue(&authDoneAction{ticket: t, verb: verb, err: err}) && t != nil {
			t.resolve(OutcomeDiscarded, ErrStopped)
		}
	}()
}

// processAuthDone logs the user out when the auth provider rejected the
// session: the cache is cleared, then Logout and a redirect to the login
// path are emitted.
func (e *Engine) processAuthDone(a *authDoneAction) error {
	token := ""
	if a.ticket != nil {
		token = a.ticket.Token
	}
	if a.err == nil {
		if a.ticket != nil {
			e.publish(Update{Action: a.kind(), Token: token, Outcome: OutcomeCommitted})
			a.ticket.resolve(OutcomeCommitted, nil)
		}
		return nil
	}

	e.logger.Warn("session rejected", "verb", a.verb, "error", a.err)
	e.supervisor.cancelAll()
	e.state.Clear()
	effects := []Effect{{Kind: EffectLogout}}
	effects = append(effects, redirect(e.cfg.LoginPath)...)
	e.publish(Update{Action: a.kind(), Token: token, Outcome: OutcomeFailed, Effects: effects})
	if a.ticket != nil {
		a.ticket.resolve(OutcomeFailed, a.err)
	}
	return nil
}
