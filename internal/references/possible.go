package references

import (
	"github.com/roach88/admincache/internal/model"
)

// GetPossibleReferences returns the candidate ids with every selected id
// guaranteed present. Selected ids missing from candidates are placed at
// the front in the order they appear in selected; candidate order is kept.
func GetPossibleReferences(candidates, selected []model.ID) []model.ID {
	inCandidates := make(map[model.ID]struct{}, len(candidates))
	for _, id := range candidates {
		inCandidates[id] = struct{}{}
	}

	out := make([]model.ID, 0, len(candidates)+len(selected))
	for _, id := range selected {
		if _, ok := inCandidates[id]; ok {
			continue
		}
		inCandidates[id] = struct{}{}
		out = append(out, id)
	}
	return append(out, candidates...)
}

// PossibleResult is the choice list of a reference input.
type PossibleResult struct {
	// Ready is false until a matching query has completed for the key.
	Ready bool
	// Err is the error of the last matching query, if it failed.
	Err     error
	IDs     []model.ID
	Records []model.Record
}

// ResolvePossible returns the choices cached under key with the selected
// ids merged in. Ids without a cached record are left out of Records.
func ResolvePossible(r Reader, reference, key string, selected []model.ID) PossibleResult {
	entry, ok := r.PossibleValues(key)
	if !ok {
		return PossibleResult{}
	}
	if entry.Err != nil {
		return PossibleResult{Ready: true, Err: entry.Err}
	}
	ids := GetPossibleReferences(entry.IDs, selected)
	data := r.GetByIDs(reference, ids)
	records := make([]model.Record, 0, len(data))
	for _, id := range ids {
		if rec, ok := data[id]; ok {
			records = append(records, rec)
		}
	}
	return PossibleResult{Ready: true, IDs: ids, Records: records}
}
