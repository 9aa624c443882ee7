package engine

import (
	"context"
	"time"

	"github.com/roach88/admincache/internal/model"
)

// task is one provider call in flight.
type task struct {
	token     string
	verb      model.Verb
	resource  string
	params    model.Params
	meta      requestMeta
	signature string
	// stamp, when set, is the fetchedAt of the commit. Every chunk of one
	// GET_MANY batch shares it.
	stamp int64
	// after and finished order the mutations of one resource: the call
	// starts once after is closed and closes finished when it returns.
	after    <-chan struct{}
	finished chan struct{}
	group    *ticketGroup
	cancel   context.CancelFunc
	started  time.Time
}

// supervisor tracks the current list task of every resource. Only the
// current task may commit; replacing it cancels the previous one.
type supervisor struct {
	current map[string]*task
}

func newSupervisor() *supervisor {
	return &supervisor{current: make(map[string]*task)}
}

// begin makes t the current list task of its resource. When a task with
// the same signature is already in flight it is returned as joined and t
// must not be launched. Otherwise the task it replaces, if any, is returned
// as superseded after its context has been cancelled.
func (s *supervisor) begin(t *task) (joined, superseded *task) {
	if cur, ok := s.current[t.resource]; ok {
		if cur.signature == t.signature {
			return cur, nil
		}
		if cur.cancel != nil {
			cur.cancel()
		}
		superseded = cur
	}
	s.current[t.resource] = t
	return nil, superseded
}

// isCurrent reports whether t may still commit.
func (s *supervisor) isCurrent(t *task) bool {
	return s.current[t.resource] == t
}

// finish clears t if it is still current.
func (s *supervisor) finish(t *task) {
	if s.current[t.resource] == t {
		delete(s.current, t.resource)
	}
}

// drop forgets the task of a resource, cancelling it.
func (s *supervisor) drop(resource string) *task {
	cur, ok := s.current[resource]
	if !ok {
		return nil
	}
	if cur.cancel != nil {
		cur.cancel()
	}
	delete(s.current, resource)
	return cur
}

// cancelAll cancels every tracked task.
func (s *supervisor) cancelAll() {
	for res := range s.current {
		s.drop(res)
	}
}
