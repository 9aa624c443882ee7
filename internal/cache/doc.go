// Package cache holds the normalized client-side state of every registered
// resource: the record store, the list/query state machine, the selection
// tracker, the reference side caches and the visible notifications.
//
// State is the single container for all of it. Mutating methods are meant
// to be called from one goroutine (the engine's dispatch loop); readers on
// other goroutines use the accessor methods or View, which hold a read lock.
// Every mutation commits atomically under the write lock.
//
// Records are keyed by normalized ids (see model.NormalizeID). Timestamps
// ("fetchedAt") are values of the engine clock and only ever compared with
// each other.
package cache
