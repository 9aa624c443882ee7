// Package engine is the dispatch pipeline between the UI and the data
// provider.
//
// ARCHITECTURE:
//
// Single-writer action loop:
// Every mutation of the cache happens on the goroutine running Run, which
// drains a FIFO action queue one action at a time. Dispatch methods
// (RequestList, RequestCreate, SetSort, ...) only enqueue an action and
// return a Ticket. Provider calls run on their own goroutines and report
// back by enqueuing a completion, so commits stay serialized.
//
// Request flow:
//  1. A dispatch method enqueues an action.
//  2. Run routes it by type in process.
//  3. Fetches are launched on a goroutine with a context derived from Run's.
//  4. The completion is validated against the data-provider contract.
//  5. The reconciler commits it to the cache and emits effects.
//
// Coalescing:
//   - RequestMany calls are collected per resource for AccumulateWindow and
//     sent as one GET_MANY with deduplicated ids.
//   - GET_LIST runs under a per-resource supervisor: the newest request
//     wins, older ones are cancelled and their late responses discarded.
//     An identical request already in flight is joined.
//   - Concurrent GET_ONE calls for one record share a round trip.
//   - Mutations are never coalesced or cancelled.
//
// Effects (notifications, redirects, logout) are published to observers
// and subscribers as Updates. Staleness stamps come from a logical Clock,
// never from wall time.
package engine
