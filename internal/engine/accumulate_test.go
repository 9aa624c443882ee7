package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/model"
)

func TestAccumulator_DedupsInFirstSeenOrder(t *testing.T) {
	a := newAccumulator()
	first, second := newTicket("a"), newTicket("b")

	assert.True(t, a.add("tags", model.IDs(3, 1), first))
	assert.False(t, a.add("tags", model.IDs(1, 2, 3), second))

	b, ok := a.take("tags")
	require.True(t, ok)
	assert.Equal(t, model.IDs(3, 1, 2), b.ids)
	assert.Equal(t, 5, b.requested)
	assert.Equal(t, []*Ticket{first, second}, b.tickets)

	_, ok = a.take("tags")
	assert.False(t, ok)
	assert.True(t, a.add("tags", model.IDs(4), newTicket("c")), "a taken batch reopens")
}

func TestAccumulator_DrainIsSorted(t *testing.T) {
	a := newAccumulator()
	a.add("tags", model.IDs(1), newTicket("a"))
	a.add("authors", model.IDs(1), newTicket("b"))

	batches := a.drain()
	require.Len(t, batches, 2)
	assert.Equal(t, "b", batches[0].tickets[0].Token)
	assert.Empty(t, a.drain())
}

func TestChunkIDs(t *testing.T) {
	ids := model.IDs(1, 2, 3, 4, 5)
	assert.Equal(t, [][]model.ID{ids}, chunkIDs(ids, 0))
	assert.Equal(t, [][]model.ID{ids}, chunkIDs(ids, 5))
	assert.Equal(t, [][]model.ID{model.IDs(1, 2), model.IDs(3, 4), model.IDs(5)}, chunkIDs(ids, 2))
}

func TestSupervisor_JoinAndSupersede(t *testing.T) {
	s := newSupervisor()
	cancelled := false
	first := &task{resource: "posts", signature: "a", cancel: func() { cancelled = true }}

	joined, superseded := s.begin(first)
	assert.Nil(t, joined)
	assert.Nil(t, superseded)

	same := &task{resource: "posts", signature: "a"}
	joined, _ = s.begin(same)
	assert.Same(t, first, joined)
	assert.True(t, s.isCurrent(first))

	other := &task{resource: "posts", signature: "b"}
	_, superseded = s.begin(other)
	assert.Same(t, first, superseded)
	assert.True(t, cancelled)
	assert.False(t, s.isCurrent(first))

	s.finish(first)
	assert.True(t, s.isCurrent(other))
	s.finish(other)
	assert.False(t, s.isCurrent(other))
}

func TestDebouncer_SupersededTicketIsDiscarded(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	first, second := newTicket("a"), newTicket("b")
	fired := make(chan string, 2)

	d.schedule("k", first, func() { fired <- "a" })
	d.schedule("k", second, func() { fired <- "b" })

	assert.Equal(t, OutcomeDiscarded, first.Outcome())
	select {
	case got := <-fired:
		assert.Equal(t, "b", got)
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}

	third := newTicket("c")
	d.schedule("k", third, func() { fired <- "c" })
	d.stop(ErrStopped)
	assert.Equal(t, OutcomeDiscarded, third.Outcome())
	assert.ErrorIs(t, third.Err(), ErrStopped)
}
