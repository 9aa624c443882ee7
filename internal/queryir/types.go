package queryir

import "github.com/roach88/admincache/internal/model"

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads one page of a resource.
//
// Semantics:
//
//	SELECT * FROM <from> WHERE <filter> ORDER BY <sort>, id LIMIT <limit> OFFSET <offset>
//
// A zero Limit reads every row.
type Select struct {
	From   string
	Filter Predicate
	Sort   model.Sort
	Limit  int
	Offset int
}

// Equals matches rows whose field equals Value. A nil Value matches a
// missing or null field.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In matches rows whose field equals any of Values. An empty In matches
// nothing.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// CompareOp is the operator of a Compare predicate.
type CompareOp string

const (
	OpGte CompareOp = ">="
	OpLte CompareOp = "<="
)

// Compare matches rows whose field satisfies Op against Value.
type Compare struct {
	Field string
	Op    CompareOp
	Value any
}

func (Compare) predicateNode() {}

// Contains matches rows whose serialized form contains Text, ignoring
// ASCII case.
type Contains struct {
	Text string
}

func (Contains) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
