package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/queryir"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateResource = "E201" // resource declared twice
	ErrUnknownReference  = "E202" // reference names an undeclared resource
	ErrReferenceTarget   = "E203" // kind and target do not fit together
	ErrInvalidSortOrder  = "E204" // sort order is not ASC or DESC
	ErrInvalidPerPage    = "E205" // perPage is negative
	ErrInvalidFilter     = "E206" // filter does not compile to a query
)

// ValidationError is one problem in a set of resource definitions.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a non-empty result of Validate used as an error.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks definitions against each other. It returns every
// problem found, in declaration order.
func Validate(defs []model.ResourceDefinition) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(defs))
	for i, def := range defs {
		if declared[def.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("resources[%d]", i),
				Message: fmt.Sprintf("duplicate resource %q", def.Name),
				Code:    ErrDuplicateResource,
			})
		}
		declared[def.Name] = true
	}

	for _, def := range defs {
		path := "resources." + def.Name
		errs = append(errs, validateList(path, def.PerPage, def.Sort, def.Filter)...)

		fields := make([]string, 0, len(def.References))
		for field := range def.References {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			ref := def.References[field]
			refPath := path + ".references." + field
			if ref.Field == "" {
				ref.Field = field
			}
			if !declared[ref.Reference] {
				errs = append(errs, ValidationError{
					Field:   refPath + ".reference",
					Message: fmt.Sprintf("reference to undeclared resource %q", ref.Reference),
					Code:    ErrUnknownReference,
				})
			}
			if err := ref.Validate(); err != nil {
				errs = append(errs, ValidationError{
					Field:   refPath,
					Message: err.Error(),
					Code:    ErrReferenceTarget,
				})
			}
			errs = append(errs, validateList(refPath, ref.PerPage, ref.Sort, ref.Filter)...)
		}
	}
	return errs
}

func validateList(path string, perPage int, s model.Sort, filter model.Filter) []ValidationError {
	var errs []ValidationError
	if perPage < 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".perPage",
			Message: fmt.Sprintf("perPage must be positive, got %d", perPage),
			Code:    ErrInvalidPerPage,
		})
	}
	if s.Field != "" && s.Order != model.SortASC && s.Order != model.SortDESC {
		errs = append(errs, ValidationError{
			Field:   path + ".sort.order",
			Message: fmt.Sprintf("invalid sort order %q, must be \"ASC\" or \"DESC\"", s.Order),
			Code:    ErrInvalidSortOrder,
		})
	}
	if len(filter) > 0 {
		if _, err := queryir.FromFilter(filter); err != nil {
			errs = append(errs, ValidationError{
				Field:   path + ".filter",
				Message: err.Error(),
				Code:    ErrInvalidFilter,
			})
		}
	}
	return errs
}
