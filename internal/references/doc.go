// Package references resolves reference fields against the normalized
// record store.
//
// Every resolver is a pure function over a Reader (cache.State or a
// cache.View) and never fetches anything. Callers render "not ready" as a
// loading state and ask the engine for the missing data.
//
// The two multi-record resolvers use different readiness rules on purpose:
//
//   - ResolveMany (reverse foreign key) is ready only once the join key has
//     a result and every id in it is cached, because the cardinality is
//     unknown until the query returns.
//   - ResolveArray (array-of-ids field) is ready with a partial result as
//     soon as any of the ids is cached, because the array itself is the
//     authoritative list.
package references
