package ir

// Version constants for the declaration format and engine.
const (
	// SchemaVersion is the declaration format version.
	SchemaVersion = "1"

	// EngineVersion is the relgraph engine version.
	EngineVersion = "0.1.0"
)
