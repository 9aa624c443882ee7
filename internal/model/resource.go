package model

import "fmt"

// Capabilities are the views a resource exposes.
type Capabilities struct {
	HasList   bool `json:"hasList"`
	HasCreate bool `json:"hasCreate"`
	HasEdit   bool `json:"hasEdit"`
	HasShow   bool `json:"hasShow"`
	HasDelete bool `json:"hasDelete"`
}

// ReferenceKind selects the join strategy of a reference field.
type ReferenceKind string

const (
	// ReferenceSingle is a scalar foreign key.
	ReferenceSingle ReferenceKind = "single"
	// ReferenceArray is an array-of-ids field.
	ReferenceArray ReferenceKind = "array"
	// ReferenceMany is a reverse foreign key on the referenced resource.
	ReferenceMany ReferenceKind = "many"
)

// ReferenceDefinition describes one reference field of a resource.
type ReferenceDefinition struct {
	Field      string        `json:"field"`
	Reference  string        `json:"reference"`
	Kind       ReferenceKind `json:"kind"`
	Target     string        `json:"target,omitempty"`
	AllowEmpty bool          `json:"allowEmpty,omitempty"`
	// Cascade deletes the referencing records with their parent. Only
	// kind many may set it.
	Cascade bool   `json:"cascade,omitempty"`
	PerPage int    `json:"perPage,omitempty"`
	Sort    Sort   `json:"sort,omitempty"`
	Filter  Filter `json:"filter,omitempty"`
}

// Validate checks the kind/target/cascade combination.
func (r ReferenceDefinition) Validate() error {
	if r.Reference == "" {
		return fmt.Errorf("reference %q: reference resource is required", r.Field)
	}
	switch r.Kind {
	case ReferenceMany:
		if r.Target == "" {
			return fmt.Errorf("reference %q: kind many requires a target", r.Field)
		}
	case ReferenceSingle, ReferenceArray:
		if r.Target != "" {
			return fmt.Errorf("reference %q: kind %s does not take a target", r.Field, r.Kind)
		}
		if r.Cascade {
			return fmt.Errorf("reference %q: kind %s cannot cascade", r.Field, r.Kind)
		}
	default:
		return fmt.Errorf("reference %q: unknown kind %q", r.Field, r.Kind)
	}
	return nil
}

// ResourceDefinition is the static description of a resource.
type ResourceDefinition struct {
	Name         string                         `json:"name"`
	Capabilities Capabilities                   `json:"capabilities"`
	PerPage      int                            `json:"perPage"`
	Sort         Sort                           `json:"sort"`
	Filter       Filter                         `json:"filter,omitempty"`
	References   map[string]ReferenceDefinition `json:"references,omitempty"`
}

// DefaultPerPage is the page size of a resource that does not set one.
const DefaultPerPage = 10

// DefaultSort is the sort of a resource that does not set one.
var DefaultSort = Sort{Field: IDField, Order: SortDESC}

// ListDefaults returns the initial list params of the resource.
func (d ResourceDefinition) ListDefaults() ListParams {
	perPage := d.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	sort := d.Sort
	if sort.Field == "" {
		sort = DefaultSort
	}
	lp := DefaultListParams(perPage, sort)
	if len(d.Filter) > 0 {
		lp.Filter = d.Filter.Clone()
	}
	return lp
}
