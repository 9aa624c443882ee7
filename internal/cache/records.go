package cache

import "github.com/roach88/admincache/internal/model"

// RecordStore is the normalized record map of one resource.
//
// No operation on the store can fail: merges upsert by id and shallowly
// replace the previous value, deletes remove the entry if present.
type RecordStore struct {
	records   map[model.ID]model.Record
	fetchedAt map[model.ID]int64
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records:   make(map[model.ID]model.Record),
		fetchedAt: make(map[model.ID]int64),
	}
}

// Merge upserts records and stamps each with now. A record deep-equal to
// the cached one keeps the cached value so readers holding it see no change,
// but its fetchedAt is still refreshed. Records without a usable id are
// skipped and returned.
func (s *RecordStore) Merge(records []model.Record, now int64) (skipped []model.Record) {
	for _, rec := range records {
		id, err := rec.ID()
		if err != nil {
			skipped = append(skipped, rec)
			continue
		}
		s.fetchedAt[id] = now
		if prev, ok := s.records[id]; ok && prev.Equal(rec) {
			continue
		}
		s.records[id] = rec
	}
	return skipped
}

// Delete removes the record and its fetchedAt entry.
func (s *RecordStore) Delete(id model.ID) {
	delete(s.records, id)
	delete(s.fetchedAt, id)
}

// GetByID returns the record with the given id.
func (s *RecordStore) GetByID(id model.ID) (model.Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// GetByIDs returns the records for the ids that are present. Missing ids are
// silently dropped; the result never has keys outside ids.
func (s *RecordStore) GetByIDs(ids []model.ID) map[model.ID]model.Record {
	out := make(map[model.ID]model.Record, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out[id] = rec
		}
	}
	return out
}

// FetchedAt returns the time the record was last confirmed by a fetch.
func (s *RecordStore) FetchedAt(id model.ID) (int64, bool) {
	t, ok := s.fetchedAt[id]
	return t, ok
}

// Len returns the number of cached records.
func (s *RecordStore) Len() int {
	return len(s.records)
}

// IDs returns the cached ids in canonical order.
func (s *RecordStore) IDs() []model.ID {
	keys := make(map[string]struct{}, len(s.records))
	for id := range s.records {
		keys[string(id)] = struct{}{}
	}
	sorted := model.SortedKeys(keys)
	out := make([]model.ID, len(sorted))
	for i, k := range sorted {
		out[i] = model.ID(k)
	}
	return out
}
