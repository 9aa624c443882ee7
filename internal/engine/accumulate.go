package engine

import (
	"sort"

	"github.com/roach88/admincache/internal/model"
)

// manyBatch collects GET_MANY ids of one resource during the accumulation
// window, deduplicated in first-seen order.
type manyBatch struct {
	ids       []model.ID
	seen      map[model.ID]struct{}
	tickets   []*Ticket
	requested int
}

// accumulator holds one open batch per resource.
type accumulator struct {
	pending map[string]*manyBatch
}

func newAccumulator() *accumulator {
	return &accumulator{pending: make(map[string]*manyBatch)}
}

// add appends ids to the resource's batch. It reports whether this call
// opened the batch, in which case the caller schedules a flush.
func (a *accumulator) add(resource string, ids []model.ID, t *Ticket) bool {
	b, ok := a.pending[resource]
	if !ok {
		b = &manyBatch{seen: make(map[model.ID]struct{})}
		a.pending[resource] = b
	}
	for _, id := range ids {
		b.requested++
		if _, dup := b.seen[id]; dup {
			continue
		}
		b.seen[id] = struct{}{}
		b.ids = append(b.ids, id)
	}
	b.tickets = append(b.tickets, t)
	return !ok
}

// take closes and returns the resource's batch.
func (a *accumulator) take(resource string) (*manyBatch, bool) {
	b, ok := a.pending[resource]
	if ok {
		delete(a.pending, resource)
	}
	return b, ok
}

// drain closes every open batch, in resource order.
func (a *accumulator) drain() []*manyBatch {
	names := make([]string, 0, len(a.pending))
	for name := range a.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*manyBatch, 0, len(names))
	for _, name := range names {
		b, _ := a.take(name)
		out = append(out, b)
	}
	return out
}

// chunkIDs splits ids into slices of at most size ids. A size of zero or
// less keeps one chunk.
func chunkIDs(ids []model.ID, size int) [][]model.ID {
	if size <= 0 || len(ids) <= size {
		return [][]model.ID{ids}
	}
	var chunks [][]model.ID
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
