package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationResult lists the problems found in a Select.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Err joins the problems into one error, or returns nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New("invalid query: " + strings.Join(r.Problems, "; "))
}

// Validate checks that every field of a Select can be addressed as a JSON
// path and that the page window is sane.
//
// Field names are dot-separated JSON object keys. Empty segments and
// double quotes are rejected.
func Validate(sel Select) ValidationResult {
	v := &validator{}
	if sel.From == "" {
		v.add("empty resource")
	}
	if sel.Limit < 0 || sel.Offset < 0 {
		v.add("negative limit or offset")
	}
	if sel.Sort.Field != "" {
		v.field(sel.Sort.Field)
	}
	v.predicate(sel.Filter)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) field(name string) {
	if name == "" {
		v.add("empty field name")
		return
	}
	if strings.ContainsAny(name, "\"\\") {
		v.add("field %q contains a quote or backslash", name)
		return
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" {
			v.add("field %q has an empty path segment", name)
			return
		}
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.field(pred.Field)
	case In:
		v.field(pred.Field)
	case Compare:
		v.field(pred.Field)
		if pred.Op != OpGte && pred.Op != OpLte {
			v.add("unknown operator %q", pred.Op)
		}
		if pred.Value == nil {
			v.add("field %q compared to null", pred.Field)
		}
	case Contains:
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.add("unknown predicate %T", p)
	}
}
