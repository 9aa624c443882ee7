package engine

import (
	"sync"
	"time"
)

// debouncer delays a call until no newer call with the same key arrived for
// the configured delay. A superseded call's ticket is discarded.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*debounced
}

type debounced struct {
	timer  *time.Timer
	ticket *Ticket
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, pending: make(map[string]*debounced)}
}

// schedule runs fire after the delay unless another call for key arrives
// first.
func (d *debouncer) schedule(key string, t *Ticket, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		if prev.timer.Stop() {
			prev.ticket.resolve(OutcomeDiscarded, nil)
		}
	}
	entry := &debounced{ticket: t}
	entry.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending[key] == entry {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		fire()
	})
	d.pending[key] = entry
}

// stop cancels every pending call and discards its ticket.
func (d *debouncer) stop(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, entry := range d.pending {
		if entry.timer.Stop() {
			entry.ticket.resolve(OutcomeDiscarded, err)
		}
		delete(d.pending, key)
	}
}
