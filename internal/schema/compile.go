package schema

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/admincache/internal/model"
)

var (
	resourceFields  = []string{"list", "create", "edit", "show", "delete", "perPage", "sort", "filter", "references"}
	referenceFields = []string{"reference", "kind", "target", "allowEmpty", "cascade", "perPage", "sort", "filter"}
)

// Compile reads every resource under the resources struct of v, in
// declaration order.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`resources: posts: {list: true}`)
//	defs, err := schema.Compile(v)
func Compile(v cue.Value) ([]model.ResourceDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	resVal := v.LookupPath(cue.ParsePath("resources"))
	if !resVal.Exists() {
		return nil, &CompileError{Field: "resources", Message: "resources is required", Pos: v.Pos()}
	}
	iter, err := resVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []model.ResourceDefinition
	for iter.Next() {
		def, err := CompileResource(iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "resources", Message: "at least one resource is required", Pos: resVal.Pos()}
	}
	return defs, nil
}

// CompileResource parses one resource struct. The resource name is the
// struct's label.
func CompileResource(v cue.Value) (model.ResourceDefinition, error) {
	def := model.ResourceDefinition{Name: label(v)}
	if err := v.Err(); err != nil {
		return def, formatCUEError(err)
	}
	path := "resources." + def.Name
	if err := checkFields(v, path, resourceFields); err != nil {
		return def, err
	}

	var err error
	caps := []struct {
		name string
		dst  *bool
	}{
		{"list", &def.Capabilities.HasList},
		{"create", &def.Capabilities.HasCreate},
		{"edit", &def.Capabilities.HasEdit},
		{"show", &def.Capabilities.HasShow},
		{"delete", &def.Capabilities.HasDelete},
	}
	for _, c := range caps {
		if *c.dst, err = optionalBool(v, c.name); err != nil {
			return def, err
		}
	}

	if def.PerPage, err = optionalPerPage(v, path); err != nil {
		return def, err
	}
	if def.Sort, err = optionalSort(v, path); err != nil {
		return def, err
	}
	if def.Filter, err = optionalFilter(v, path); err != nil {
		return def, err
	}

	refsVal := v.LookupPath(cue.ParsePath("references"))
	if refsVal.Exists() {
		refs, err := parseReferences(refsVal, path+".references")
		if err != nil {
			return def, err
		}
		def.References = refs
	}
	return def, nil
}

func parseReferences(v cue.Value, path string) (map[string]model.ReferenceDefinition, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	refs := make(map[string]model.ReferenceDefinition)
	for iter.Next() {
		field := iter.Label()
		ref, err := parseReference(iter.Value(), field, path+"."+field)
		if err != nil {
			return nil, err
		}
		refs[field] = ref
	}
	return refs, nil
}

func parseReference(v cue.Value, field, path string) (model.ReferenceDefinition, error) {
	ref := model.ReferenceDefinition{Field: field}
	if err := checkFields(v, path, referenceFields); err != nil {
		return ref, err
	}

	var err error
	if ref.Reference, err = requiredString(v, "reference", path); err != nil {
		return ref, err
	}
	kind, err := optionalString(v, "kind")
	if err != nil {
		return ref, err
	}
	if kind == "" {
		kind = string(model.ReferenceSingle)
	}
	ref.Kind = model.ReferenceKind(kind)
	if ref.Target, err = optionalString(v, "target"); err != nil {
		return ref, err
	}
	if ref.AllowEmpty, err = optionalBool(v, "allowEmpty"); err != nil {
		return ref, err
	}
	if ref.Cascade, err = optionalBool(v, "cascade"); err != nil {
		return ref, err
	}
	if ref.PerPage, err = optionalPerPage(v, path); err != nil {
		return ref, err
	}
	if ref.Sort, err = optionalSort(v, path); err != nil {
		return ref, err
	}
	if ref.Filter, err = optionalFilter(v, path); err != nil {
		return ref, err
	}
	return ref, nil
}

func optionalSort(v cue.Value, path string) (model.Sort, error) {
	sortVal := v.LookupPath(cue.ParsePath("sort"))
	if !sortVal.Exists() {
		return model.Sort{}, nil
	}
	if err := checkFields(sortVal, path+".sort", []string{"field", "order"}); err != nil {
		return model.Sort{}, err
	}
	field, err := requiredString(sortVal, "field", path+".sort")
	if err != nil {
		return model.Sort{}, err
	}
	order, err := optionalString(sortVal, "order")
	if err != nil {
		return model.Sort{}, err
	}
	if order == "" {
		order = string(model.SortASC)
	}
	// An invalid order is kept as written and reported by Validate.
	if parsed, err := model.ParseSortOrder(order); err == nil {
		return model.Sort{Field: field, Order: parsed}, nil
	}
	return model.Sort{Field: field, Order: model.SortOrder(order)}, nil
}

func optionalPerPage(v cue.Value, path string) (int, error) {
	ppVal := v.LookupPath(cue.ParsePath("perPage"))
	if !ppVal.Exists() {
		return 0, nil
	}
	if ppVal.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{Field: path + ".perPage", Message: "perPage must be an int", Pos: ppVal.Pos()}
	}
	n, err := ppVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n <= 0 {
		return 0, &CompileError{Field: path + ".perPage", Message: "perPage must be positive", Pos: ppVal.Pos()}
	}
	return int(n), nil
}

func optionalFilter(v cue.Value, path string) (model.Filter, error) {
	fVal := v.LookupPath(cue.ParsePath("filter"))
	if !fVal.Exists() {
		return nil, nil
	}
	iter, err := fVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	filter := model.Filter{}
	for iter.Next() {
		key := iter.Label()
		val, err := filterValue(iter.Value(), path+".filter."+key, true)
		if err != nil {
			return nil, err
		}
		filter[key] = val
	}
	return filter, nil
}

// filterValue converts a concrete CUE value to a filter value. Floats are
// rejected so that filters compare exactly against stored integers.
func filterValue(v cue.Value, path string, allowList bool) (any, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.NullKind:
		return nil, nil
	case cue.ListKind:
		if !allowList {
			break
		}
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out []any
		for i := 0; iter.Next(); i++ {
			item, err := filterValue(iter.Value(), fmt.Sprintf("%s[%d]", path, i), false)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: path, Message: "float values are forbidden in filters - use int instead", Pos: v.Pos()}
	}
	return nil, &CompileError{Field: path, Message: fmt.Sprintf("unsupported filter value kind: %v", v.IncompleteKind()), Pos: v.Pos()}
}

func requiredString(v cue.Value, name, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: path + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{Field: path + "." + name, Message: name + " must be non-empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// checkFields rejects labels outside allowed, which are most often typos.
func checkFields(v cue.Value, path string, allowed []string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if !slices.Contains(allowed, iter.Label()) {
			return &CompileError{
				Field:   path + "." + iter.Label(),
				Message: fmt.Sprintf("unknown field (allowed: %s)", strings.Join(allowed, ", ")),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	sel := sels[len(sels)-1]
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// CompileError is a compilation error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
