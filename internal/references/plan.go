package references

import (
	"fmt"
	"sort"

	"github.com/roach88/admincache/internal/model"
)

// FieldIDs reads the ids held by a reference field of a record. Scalar
// fields yield one id, arrays yield their elements. Missing and null fields
// yield nothing.
func FieldIDs(rec model.Record, field string) ([]model.ID, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return nil, nil
	}
	switch val := raw.(type) {
	case []any:
		return model.NormalizeIDs(val)
	case []model.ID:
		return model.UniqueIDs(val), nil
	case []string:
		elems := make([]any, len(val))
		for i, s := range val {
			elems[i] = s
		}
		return model.NormalizeIDs(elems)
	default:
		id, err := model.NormalizeID(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		return []model.ID{id}, nil
	}
}

// ManyNeed is a batch of ids of one referenced resource.
type ManyNeed struct {
	Reference string
	IDs       []model.ID
}

// ReverseNeed is a one-to-many query for one owning record.
type ReverseNeed struct {
	Field      string
	Reference  string
	Target     string
	ID         model.ID
	Key        string
	ListParams model.ListParams
}

// Plan lists what must be fetched to render the reference fields of
// records. Single and array references of the same referenced resource are
// combined into one ManyNeed; many references yield one ReverseNeed per
// record.
func Plan(def model.ResourceDefinition, records []model.Record) ([]ManyNeed, []ReverseNeed, error) {
	byReference := make(map[string][]model.ID)
	var reverse []ReverseNeed

	fields := make([]string, 0, len(def.References))
	for field := range def.References {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		ref := def.References[field]
		if ref.Field == "" {
			ref.Field = field
		}
		if err := ref.Validate(); err != nil {
			return nil, nil, err
		}
		for _, rec := range records {
			switch ref.Kind {
			case model.ReferenceSingle, model.ReferenceArray:
				ids, err := FieldIDs(rec, ref.Field)
				if err != nil {
					return nil, nil, err
				}
				byReference[ref.Reference] = append(byReference[ref.Reference], ids...)
			case model.ReferenceMany:
				id, err := rec.ID()
				if err != nil {
					return nil, nil, err
				}
				reverse = append(reverse, ReverseNeed{
					Field:      ref.Field,
					Reference:  ref.Reference,
					Target:     ref.Target,
					ID:         id,
					Key:        NameRelatedTo(ref.Reference, id, def.Name, ref.Target, ref.Filter),
					ListParams: reverseParams(ref),
				})
			}
		}
	}

	refs := make([]string, 0, len(byReference))
	for r := range byReference {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	many := make([]ManyNeed, 0, len(refs))
	for _, r := range refs {
		ids := model.UniqueIDs(byReference[r])
		if len(ids) == 0 {
			continue
		}
		many = append(many, ManyNeed{Reference: r, IDs: ids})
	}
	return many, reverse, nil
}

func reverseParams(ref model.ReferenceDefinition) model.ListParams {
	perPage := ref.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	order := ref.Sort
	if order.Field == "" {
		order = model.DefaultSort
	}
	lp := model.DefaultListParams(perPage, order)
	lp.Filter = ref.Filter.Clone()
	return lp
}
