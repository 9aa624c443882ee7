package model

import (
	"fmt"
	"reflect"
)

// IDField is the key every record must carry.
const IDField = "id"

// Record is one entity instance as returned by a data provider.
// The "id" key is required; the rest is opaque to the cache.
type Record map[string]any

// ID returns the normalized id of the record.
func (r Record) ID() (ID, error) {
	raw, ok := r[IDField]
	if !ok {
		return "", fmt.Errorf("record has no %q key", IDField)
	}
	return NormalizeID(raw)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether two records hold deep-equal values.
func (r Record) Equal(other Record) bool {
	return reflect.DeepEqual(map[string]any(r), map[string]any(other))
}

// RecordIDs returns the normalized ids of records in order.
func RecordIDs(records []Record) ([]ID, error) {
	ids := make([]ID, len(records))
	for i, rec := range records {
		id, err := rec.ID()
		if err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// ToRecord converts a decoded JSON value into a Record.
func ToRecord(v any) (Record, error) {
	switch val := v.(type) {
	case Record:
		return val, nil
	case map[string]any:
		return Record(val), nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

// ToRecords converts a decoded JSON array into records.
func ToRecords(v any) ([]Record, error) {
	switch val := v.(type) {
	case []Record:
		return val, nil
	case []map[string]any:
		out := make([]Record, len(val))
		for i, m := range val {
			out[i] = Record(m)
		}
		return out, nil
	case []any:
		out := make([]Record, len(val))
		for i, elem := range val {
			rec, err := ToRecord(elem)
			if err != nil {
				return nil, fmt.Errorf("data[%d]: %w", i, err)
			}
			out[i] = rec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}
