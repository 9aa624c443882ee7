package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/admincache/internal/model"
)

// marshalRecord converts a record to canonical JSON TEXT for storage, so an
// unchanged record is stored byte for byte the same.
func marshalRecord(rec model.Record) (string, error) {
	data, err := model.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses stored JSON TEXT. Numbers decode as float64, the
// way every JSON provider delivers them.
func unmarshalRecord(data string) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}
