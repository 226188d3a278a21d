package ir

// Version constants for the scenario document and the engine identity.
const (
	// EngineID is the default engine identifier recorded on every scenario.
	EngineID = "ABE"

	// EngineName is the default human readable engine name.
	EngineName = "ABE Flag"

	// EngineVersion is the default engine version recorded on every scenario.
	EngineVersion = "1.0"

	// ToolVersion is the abeflag binary version.
	ToolVersion = "0.1.0"
)
