// Package harness runs YAML scenarios against the dispatch engine backed by
// an in-memory local provider, and checks the resulting trace.
//
// # Scenario Format
//
//	name: delete_clears_selection
//	description: "Deleting a selected record drops it from the selection"
//	resources: resources.cue        # or schema: with inline CUE
//	seed:
//	  posts:
//	    - {id: 1, title: one}
//	    - {id: 2, title: two}
//	config:
//	  accumulate_window: 20ms
//	  failures:
//	    - {verb: DELETE, resource: posts, id: 2, message: locked}
//	steps:
//	  - do: request_list
//	    resource: posts
//	    page: 1
//	    per_page: 10
//	  - do: change_selection
//	    resource: posts
//	    ids: [1, 2]
//	  - do: request_delete
//	    resource: posts
//	    id: 1
//	    expect: committed
//	assertions:
//	  - type: selection
//	    resource: posts
//	    ids: [2]
//
// Steps run one at a time: each waits for its ticket and for every provider
// call it caused before the next starts. A step marked async does not wait;
// its ticket is collected at the next synchronous step or at the end.
//
// # Trace
//
// The trace records, in order, every provider call, every notification,
// redirect and logout the engine emits, and the outcome of every step.
// Sequence numbers come from a deterministic clock, so the trace of a
// scenario is stable and can be compared against a golden file.
//
// # Assertion Types
//
//   - trace_contains: a provider call with verb, resource and a subset of args
//   - trace_order: provider calls ("VERB" or "VERB resource") in order
//   - trace_count: exactly count calls of verb (and resource)
//   - list_ids: the ids (and total) of a resource's list
//   - selection: the selected ids of a resource
//   - record: a cached record matches expect, or is absent
//   - notification: a notification with key (and level) was emitted
//   - redirect: a redirect to path was emitted
package harness
