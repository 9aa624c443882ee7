package model

// Version constants for the cache engine.
const (
	// EngineVersion is the admincache engine version.
	EngineVersion = "0.1.0"

	// SchemaVersion is the resource schema format version.
	SchemaVersion = "1"
)
