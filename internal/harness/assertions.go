package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/admincache/internal/cache"
	"github.com/roach88/admincache/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describeEvent(ev))
		}
	}
	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case EventCall:
		return fmt.Sprintf("call %s %s %v", ev.Verb, ev.Resource, ev.Args)
	case EventNotify:
		return fmt.Sprintf("notify %s (%s)", ev.Key, ev.Level)
	case EventRedirect:
		return "redirect " + ev.Path
	case EventStep:
		return fmt.Sprintf("step %s %s: %s", ev.Step, ev.Resource, ev.Outcome)
	default:
		return ev.Type
	}
}

// evaluateAssertion checks one assertion against the trace and the final
// cache state.
func evaluateAssertion(a Assertion, trace []TraceEvent, state *cache.State) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertListIDs:
		return assertListIDs(state, a)
	case AssertSelection:
		return assertSelection(state, a)
	case AssertRecord:
		return assertRecord(state, a)
	case AssertNotification:
		return assertNotification(trace, a)
	case AssertRedirect:
		return assertRedirect(trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func callMatches(ev TraceEvent, verb, resource string) bool {
	return ev.Type == EventCall && ev.Verb == verb && (resource == "" || ev.Resource == resource)
}

// assertTraceContains checks for a call with the verb, resource and a
// superset of the expected args.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if callMatches(ev, a.Verb, a.Resource) && matchArgs(ev.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s %s with args %v", a.Verb, a.Resource, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the calls appear in order. Other calls may
// come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Calls) {
			break
		}
		verb, resource, _ := strings.Cut(a.Calls[next], " ")
		if callMatches(ev, verb, strings.TrimSpace(resource)) {
			next++
		}
	}
	if next < len(a.Calls) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("calls in order: %v", a.Calls),
			Actual:   fmt.Sprintf("no %s after %v", a.Calls[next], a.Calls[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks the exact number of calls of a verb.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if callMatches(ev, a.Verb, a.Resource) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s %s", a.Count, a.Verb, a.Resource),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertListIDs(state *cache.State, a Assertion) error {
	list, ok := state.List(a.Resource)
	if !ok {
		return &AssertionError{Type: AssertListIDs, Expected: "list of " + a.Resource, Actual: "unknown resource"}
	}
	want, err := model.NormalizeIDs(a.IDs)
	if err != nil {
		return fmt.Errorf("list_ids: %w", err)
	}
	if !equalIDs(list.IDs, want) {
		return &AssertionError{
			Type:     AssertListIDs,
			Expected: fmt.Sprintf("ids %v", want),
			Actual:   fmt.Sprintf("ids %v", list.IDs),
		}
	}
	if a.Total != nil && list.Total != *a.Total {
		return &AssertionError{
			Type:     AssertListIDs,
			Expected: fmt.Sprintf("total %d", *a.Total),
			Actual:   fmt.Sprintf("total %d", list.Total),
		}
	}
	return nil
}

func assertSelection(state *cache.State, a Assertion) error {
	sel, ok := state.Selection(a.Resource)
	if !ok {
		return &AssertionError{Type: AssertSelection, Expected: "selection of " + a.Resource, Actual: "unknown resource"}
	}
	want, err := model.NormalizeIDs(a.IDs)
	if err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	if !equalIDs(sel.IDs, want) {
		return &AssertionError{
			Type:     AssertSelection,
			Expected: fmt.Sprintf("selected %v", want),
			Actual:   fmt.Sprintf("selected %v", sel.IDs),
		}
	}
	return nil
}

func assertRecord(state *cache.State, a Assertion) error {
	id, err := model.NormalizeID(a.ID)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	rec, ok := state.GetByID(a.Resource, id)
	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("%s %s absent", a.Resource, id),
				Actual:   fmt.Sprintf("cached %v", rec),
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s %s cached", a.Resource, id),
			Actual:   "not cached",
		}
	}
	if !matchArgs(rec, a.Expect) {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s %s with %v", a.Resource, id, a.Expect),
			Actual:   fmt.Sprintf("%v", rec),
		}
	}
	return nil
}

func assertNotification(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type == EventNotify && ev.Key == a.Key && (a.Level == "" || ev.Level == a.Level) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertNotification,
		Expected: strings.TrimSpace(fmt.Sprintf("notification %s %s", a.Key, a.Level)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertRedirect(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type == EventRedirect && ev.Path == a.Path {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRedirect,
		Expected: "redirect to " + a.Path,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// matchArgs reports whether actual holds every key of expected with an
// equal value. Values compare by canonical JSON, so 2 and int64(2) match.
func matchArgs[M ~map[string]any](actual M, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !canonicalEqual(got, want) {
			return false
		}
	}
	return true
}

func canonicalEqual(a, b any) bool {
	ab, err := model.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := model.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func equalIDs(a, b []model.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
