package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID is the canonical identifier of a record within its resource.
//
// Providers return ids as numbers or strings; routes carry them as strings.
// Every id is normalized to its string form at the store boundary so that
// 42 and "42" refer to the same record.
type ID string

// String returns the id text.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// NormalizeID converts a provider or caller supplied id to its canonical form.
//
// Accepted inputs: strings, Go integer types, integral floats (JSON numbers
// decoded into float64), json.Number and ID. Everything else is rejected.
func NormalizeID(v any) (ID, error) {
	switch val := v.(type) {
	case ID:
		return val, nil
	case string:
		return ID(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return ID(strconv.FormatInt(i, 10)), nil
		}
		return ID(val.String()), nil
	case int:
		return ID(strconv.Itoa(val)), nil
	case int32:
		return ID(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return ID(strconv.FormatInt(val, 10)), nil
	case uint:
		return ID(strconv.FormatUint(uint64(val), 10)), nil
	case uint32:
		return ID(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return ID(strconv.FormatUint(val, 10)), nil
	case float64:
		return floatID(val)
	case float32:
		return floatID(float64(val))
	case nil:
		return "", fmt.Errorf("id is null")
	default:
		return "", fmt.Errorf("unsupported id type %T", v)
	}
}

func floatID(f float64) (ID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", fmt.Errorf("id %v is not an integer", f)
	}
	if math.Abs(f) > 1<<53 {
		return "", fmt.Errorf("id %v exceeds exact float range", f)
	}
	return ID(strconv.FormatInt(int64(f), 10)), nil
}

// MustID is NormalizeID for literals in tests and static configuration.
func MustID(v any) ID {
	id, err := NormalizeID(v)
	if err != nil {
		panic(err)
	}
	return id
}

// NormalizeIDs normalizes a list of ids, preserving order and dropping
// duplicates after normalization.
func NormalizeIDs(vs []any) ([]ID, error) {
	out := make([]ID, 0, len(vs))
	seen := make(map[ID]struct{}, len(vs))
	for i, v := range vs {
		id, err := NormalizeID(v)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// IDs builds a list of ids from literals.
func IDs(vs ...any) []ID {
	out := make([]ID, len(vs))
	for i, v := range vs {
		out[i] = MustID(v)
	}
	return out
}

// UniqueIDs returns ids with duplicates removed, keeping first occurrences.
func UniqueIDs(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []ID, id ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// JSONValue returns the id as a JSON number when it is a canonical integer
// and as a string otherwise, the form foreign keys usually take in records.
func (id ID) JSONValue() any {
	if i, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(i, 10) == string(id) {
		return i
	}
	return string(id)
}
