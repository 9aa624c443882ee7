// Package queryir is the filter intermediate representation between a
// data-provider list request and the SQL backend.
//
// A list request carries a free-form model.Filter. FromListParams turns it
// into a Select: a resource, a predicate tree, one sort key and a page
// window. Backends compile the Select; they never look at the raw filter.
//
// FILTER KEYS:
//
//	q          full-text match over the serialized record (Contains)
//	<f>_gte    field greater than or equal (Compare)
//	<f>_lte    field less than or equal (Compare)
//	<f>: [..]  field in the list (In)
//	<f>: v     field equals v (Equals)
//
// Keys are visited in sorted order so the same filter always yields the
// same predicate tree and, downstream, the same SQL.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Backends switch on the concrete
// types exhaustively:
//
//	switch p := pred.(type) {
//	case Equals, In, Compare, Contains, And:
//	}
//
// VALUES:
//
// Literal values are restricted to string, int64, bool and nil. JSON
// numbers decoded as float64 are accepted when integral; fractional floats
// are rejected so comparisons stay exact. Values compared against the id
// field are normalized to the canonical string id.
package queryir
