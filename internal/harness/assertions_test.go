package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventCall, Verb: "GET_LIST", Resource: "posts", Args: map[string]any{
			"pagination": map[string]any{"page": 1, "perPage": 10},
			"sort":       map[string]any{"field": "id", "order": "DESC"},
		}},
		{Seq: 2, Type: EventStep, Step: StepRequestList, Resource: "posts", Outcome: "committed"},
		{Seq: 3, Type: EventCall, Verb: "GET_MANY", Resource: "users", Args: map[string]any{"ids": []any{int64(1), int64(2)}}},
		{Seq: 4, Type: EventCall, Verb: "DELETE", Resource: "posts", Args: map[string]any{"id": int64(2)}},
		{Seq: 5, Type: EventNotify, Key: "aor.notification.deleted", Level: "info"},
		{Seq: 6, Type: EventRedirect, Path: "/posts"},
		{Seq: 7, Type: EventCall, Verb: "DELETE", Resource: "posts", Args: map[string]any{"id": int64(3)}},
	}
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		pass bool
	}{
		{name: "verb only", a: Assertion{Verb: "GET_LIST"}, pass: true},
		{name: "resource", a: Assertion{Verb: "GET_MANY", Resource: "users"}, pass: true},
		{name: "wrong resource", a: Assertion{Verb: "GET_MANY", Resource: "posts"}},
		{name: "int matches int64", a: Assertion{Verb: "DELETE", Args: map[string]any{"id": 3}}, pass: true},
		{name: "string id does not match number", a: Assertion{Verb: "DELETE", Args: map[string]any{"id": "3"}}},
		{name: "nested subset", a: Assertion{Verb: "GET_LIST", Args: map[string]any{
			"sort": map[string]any{"field": "id", "order": "DESC"},
		}}, pass: true},
		{name: "nested mismatch", a: Assertion{Verb: "GET_LIST", Args: map[string]any{
			"sort": map[string]any{"field": "id"},
		}}},
		{name: "list arg", a: Assertion{Verb: "GET_MANY", Args: map[string]any{"ids": []any{1, 2}}}, pass: true},
		{name: "missing verb", a: Assertion{Verb: "CREATE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(sampleTrace(), tt.a)
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"GET_LIST", "DELETE"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"GET_LIST posts", "GET_MANY users", "DELETE posts"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"DELETE", "DELETE"}}))

	err := assertTraceOrder(trace, Assertion{Calls: []string{"DELETE", "GET_LIST"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GET_LIST after [DELETE]")

	assert.Error(t, assertTraceOrder(trace, Assertion{Calls: []string{"DELETE", "DELETE", "DELETE"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Calls: []string{"GET_MANY posts"}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Verb: "DELETE", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Verb: "DELETE", Resource: "posts", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Verb: "CREATE", Count: 0}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Verb: "DELETE", Resource: "users", Count: 0}))

	err := assertTraceCount(trace, Assertion{Verb: "DELETE", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 calls")
}

func TestAssertNotificationAndRedirect(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertNotification(trace, Assertion{Key: "aor.notification.deleted"}))
	assert.NoError(t, assertNotification(trace, Assertion{Key: "aor.notification.deleted", Level: "info"}))
	assert.Error(t, assertNotification(trace, Assertion{Key: "aor.notification.deleted", Level: "warning"}))
	assert.Error(t, assertNotification(trace, Assertion{Key: "aor.notification.created"}))

	assert.NoError(t, assertRedirect(trace, Assertion{Path: "/posts"}))
	assert.Error(t, assertRedirect(trace, Assertion{Path: "/posts/2"}))
}

func newState(t *testing.T) *cache.State {
	t.Helper()
	state, err := cache.New(0)
	require.NoError(t, err)
	state.Register(model.ResourceDefinition{Name: "posts"})

	require.NoError(t, state.RequestList("posts", model.DefaultListParams(10, model.DefaultSort), ""))
	require.NoError(t, state.ApplyListSuccess("posts", cache.ListSuccess{
		Verb: model.GetList,
		Records: []model.Record{
			{"id": 2, "title": "two", "tags": []any{"a", "b"}},
			{"id": 1, "title": "one"},
		},
		IDs:   model.IDs(2, 1),
		Total: 2,
		Now:   1,
	}))
	require.NoError(t, state.ChangeSelection("posts", model.IDs(1), true, cache.SelectPage))
	return state
}

func TestAssertState(t *testing.T) {
	state := newState(t)
	two, three := 2, 3

	tests := []struct {
		name string
		a    Assertion
		pass bool
	}{
		{name: "list ids", a: Assertion{Type: AssertListIDs, Resource: "posts", IDs: []any{2, 1}}, pass: true},
		{name: "list ids and total", a: Assertion{Type: AssertListIDs, Resource: "posts", IDs: []any{"2", "1"}, Total: &two}, pass: true},
		{name: "list order matters", a: Assertion{Type: AssertListIDs, Resource: "posts", IDs: []any{1, 2}}},
		{name: "wrong total", a: Assertion{Type: AssertListIDs, Resource: "posts", IDs: []any{2, 1}, Total: &three}},
		{name: "unknown list", a: Assertion{Type: AssertListIDs, Resource: "users"}},
		{name: "selection", a: Assertion{Type: AssertSelection, Resource: "posts", IDs: []any{1}}, pass: true},
		{name: "wrong selection", a: Assertion{Type: AssertSelection, Resource: "posts", IDs: []any{}}},
		{name: "record", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 2, Expect: map[string]any{"title": "two"}}, pass: true},
		{name: "record list field", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 2, Expect: map[string]any{"tags": []any{"a", "b"}}}, pass: true},
		{name: "record mismatch", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 2, Expect: map[string]any{"title": "one"}}},
		{name: "record missing field", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 1, Expect: map[string]any{"body": nil}}},
		{name: "record absent", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 9, Absent: true}, pass: true},
		{name: "record not absent", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 1, Absent: true}},
		{name: "record not cached", a: Assertion{Type: AssertRecord, Resource: "posts", ID: 9, Expect: map[string]any{"title": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluateAssertion(tt.a, nil, state)
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEvaluateAssertion_UnknownType(t *testing.T) {
	err := evaluateAssertion(Assertion{Type: "final_state"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "call DELETE posts",
		Actual:   "not found in trace",
		Trace:    sampleTrace()[3:6],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_contains")
	assert.Contains(t, msg, "Expected: call DELETE posts")
	assert.Contains(t, msg, "Actual: not found in trace")
	assert.Contains(t, msg, "[4] call DELETE posts")
	assert.Contains(t, msg, "[5] notify aor.notification.deleted (info)")
	assert.Contains(t, msg, "[6] redirect /posts")
}
