package engine

import (
	"sync"
	"time"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// action is one unit of work for the Run loop. discard resolves the
// action's tickets when the engine stops before processing it.
type action interface {
	kind() string
	discard(err error)
}

// requestMeta carries the side-effect options of a request.
type requestMeta struct {
	basePath     string
	redirectTo   RedirectTo
	notifyFor    time.Duration
	key          string
	refreshAfter bool
}

type fetchAction struct {
	ticket   *Ticket
	verb     model.Verb
	resource string
	params   model.Params
	meta     requestMeta
}

func (a *fetchAction) kind() string      { return "fetch" }
func (a *fetchAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type manyAction struct {
	ticket   *Ticket
	resource string
	ids      []model.ID
}

func (a *manyAction) kind() string      { return "accumulate" }
func (a *manyAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type flushAction struct {
	resource string
}

func (a *flushAction) kind() string  { return "flush" }
func (a *flushAction) discard(error) {}

type completionAction struct {
	task    *task
	result  provider.Result
	err     error
	elapsed time.Duration
}

func (a *completionAction) kind() string      { return "completion" }
func (a *completionAction) discard(err error) { a.task.group.discard(err) }

type paramAction struct {
	ticket   *Ticket
	resource string
	change   cache.ParamChange
}

func (a *paramAction) kind() string      { return "params" }
func (a *paramAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type selectionAction struct {
	ticket   *Ticket
	resource string
	ids      []model.ID
	selected bool
	mode     cache.SelectionMode
	clear    bool
	expand   bool
}

func (a *selectionAction) kind() string      { return "selection" }
func (a *selectionAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type registryAction struct {
	ticket     *Ticket
	def        model.ResourceDefinition
	unregister bool
}

func (a *registryAction) kind() string      { return "registry" }
func (a *registryAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type hideNotificationAction struct {
	id string
}

func (a *hideNotificationAction) kind() string  { return "hide_notification" }
func (a *hideNotificationAction) discard(error) {}

type bulkAction struct {
	ticket   *Ticket
	verb     model.Verb
	resource string
	ids      []model.ID
	data     model.Record
	policy   cache.BulkPolicy
	meta     requestMeta
	finished chan struct{}
}

func (a *bulkAction) kind() string      { return "bulk" }
func (a *bulkAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

// bulkItem is the outcome of one call of a bulk action.
type bulkItem struct {
	id     model.ID
	result provider.Result
	err    error
}

type bulkDoneAction struct {
	bulk  *bulkAction
	items []bulkItem
}

func (a *bulkDoneAction) kind() string      { return "bulk_done" }
func (a *bulkDoneAction) discard(err error) { a.bulk.ticket.resolve(OutcomeDiscarded, err) }

type authAction struct {
	ticket *Ticket
	verb   provider.AuthVerb
	params provider.AuthParams
}

func (a *authAction) kind() string      { return "auth" }
func (a *authAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }

type authDoneAction struct {
	ticket *Ticket
	verb   provider.AuthVerb
	err    error
}

func (a *authDoneAction) kind() string { return "auth_done" }
func (a *authDoneAction) discard(err error) {
	if a.ticket != nil {
		a.ticket.resolve(OutcomeDiscarded, err)
	}
}

// ticketGroup resolves a set of tickets once every part of the work behind
// them has finished. Joined requests add their tickets to the group of the
// request already in flight.
type ticketGroup struct {
	mu        sync.Mutex
	tickets   []*Ticket
	remaining int
	err       error
}

func newTicketGroup(parts int, tickets ...*Ticket) *ticketGroup {
	return &ticketGroup{tickets: tickets, remaining: parts}
}

func (g *ticketGroup) join(t ...*Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tickets = append(g.tickets, t...)
}

// done records one finished part. The first error wins.
func (g *ticketGroup) done(err error) {
	g.mu.Lock()
	if err != nil && g.err == nil {
		g.err = err
	}
	g.remaining--
	if g.remaining > 0 {
		g.mu.Unlock()
		return
	}
	tickets, gerr := g.tickets, g.err
	g.mu.Unlock()

	if gerr != nil {
		resolveAll(tickets, OutcomeFailed, gerr)
		return
	}
	resolveAll(tickets, OutcomeCommitted, nil)
}

func (g *ticketGroup) discard(err error) {
	g.mu.Lock()
	tickets := g.tickets
	g.mu.Unlock()
	resolveAll(tickets, OutcomeDiscarded, err)
}

type syncAction struct {
	ticket *Ticket
}

func (a *syncAction) kind() string      { return "sync" }
func (a *syncAction) discard(err error) { a.ticket.resolve(OutcomeDiscarded, err) }
