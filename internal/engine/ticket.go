package engine

import (
	"context"
	"sync"
)

// Outcome is how a dispatched request ended.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

// Ticket tracks one dispatched request. Callers may ignore it; the cache
// state is the source of truth.
type Ticket struct {
	// Token correlates the request in logs, traces and effects.
	Token string

	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	outcome Outcome
	err     error
}

func newTicket(token string) *Ticket {
	return &Ticket{Token: token, done: make(chan struct{}), outcome: OutcomePending}
}

// Done is closed once the request has been committed, failed or discarded.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the current outcome.
func (t *Ticket) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Err returns the failure cause, if any.
func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the ticket resolves or ctx is done, and returns the
// outcome.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.Outcome(), t.Err()
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

// resolve sets the outcome once. Later calls are ignored.
func (t *Ticket) resolve(outcome Outcome, err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.outcome = outcome
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

func resolveAll(tickets []*Ticket, outcome Outcome, err error) {
	for _, t := range tickets {
		t.resolve(outcome, err)
	}
}
