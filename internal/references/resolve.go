package references

import (
	"github.com/roach88/admincache/internal/model"
)

// ManyResult is the resolution of a multi-record reference.
type ManyResult struct {
	Ready bool
	Data  map[model.ID]model.Record
	IDs   []model.ID
	Total int
}

// ResolveMany resolves a one-to-many reference cached under key. It is not
// ready until the key has a result and every id of it is in the store.
func ResolveMany(r Reader, reference, key string) ManyResult {
	entry, ok := r.OneToMany(key)
	if !ok {
		return ManyResult{}
	}
	data := r.GetByIDs(reference, entry.IDs)
	if len(data) != len(model.UniqueIDs(entry.IDs)) {
		return ManyResult{}
	}
	return ManyResult{
		Ready: true,
		Data:  data,
		IDs:   append([]model.ID(nil), entry.IDs...),
		Total: entry.Total,
	}
}

// ResolveArray resolves an array-of-ids reference. An empty array is ready
// at once. Otherwise the result is ready as soon as one referenced record is
// cached; Data holds the records found and IDs keeps the array order.
func ResolveArray(r Reader, reference string, ids []model.ID) ManyResult {
	if len(ids) == 0 {
		return ManyResult{Ready: true, Data: map[model.ID]model.Record{}, IDs: []model.ID{}}
	}
	data := r.GetByIDs(reference, ids)
	if len(data) == 0 {
		return ManyResult{IDs: append([]model.ID(nil), ids...)}
	}
	return ManyResult{
		Ready: true,
		Data:  data,
		IDs:   append([]model.ID(nil), ids...),
		Total: len(ids),
	}
}

// Missing returns the ids of a resolution that are not in Data.
func (m ManyResult) Missing() []model.ID {
	var out []model.ID
	for _, id := range m.IDs {
		if _, ok := m.Data[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// OneStatus is the render state of a single reference.
type OneStatus string

const (
	OneEmpty   OneStatus = "EMPTY"
	OneLoading OneStatus = "LOADING"
	OneReady   OneStatus = "READY"
)

// OneResult is the resolution of a scalar foreign key.
type OneResult struct {
	Status OneStatus
	Record model.Record
}

// ResolveOne resolves a scalar foreign key. A zero id is empty. A record not
// yet cached renders as empty with allowEmpty and as loading otherwise.
func ResolveOne(r Reader, reference string, id model.ID, allowEmpty bool) OneResult {
	if id.IsZero() {
		return OneResult{Status: OneEmpty}
	}
	if rec, ok := r.GetByID(reference, id); ok {
		return OneResult{Status: OneReady, Record: rec}
	}
	if allowEmpty {
		return OneResult{Status: OneEmpty}
	}
	return OneResult{Status: OneLoading}
}
