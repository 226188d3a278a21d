package ir

import "time"

// Top-level namespaces of the scenario document.
const (
	NSEngine       = "engine"
	NSCreatedAt    = "created_at"
	NSUpdatedAt    = "updated_at"
	NSInputs       = "inputs"
	NSDerived      = "derived"
	NSModuleStatus = "module_status"
	NSHashes       = "hashes"
	NSReceipts     = "receipts"

	// NSModuleOutput prefixes hash names for module outputs that have no
	// declared destination path. It is not a document namespace.
	NSModuleOutput = "module_output"
)

// ReceiptPath is where the audit certificate lives in the document.
const ReceiptPath = NSReceipts + ".audit_certificate"

// EngineInfo identifies the engine that owns a scenario.
type EngineInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultEngine returns the built-in engine identity.
func DefaultEngine() EngineInfo {
	return EngineInfo{ID: EngineID, Name: EngineName, Version: EngineVersion}
}

// ModuleStatusEntry is the latest lifecycle state of one module.
type ModuleStatusEntry struct {
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Scenario is the single mutable document holding everything a pass reads
// and writes.
//
// Inputs, Derived and Receipts hold JSON trees produced by Normalize.
// Hashes is keyed by the dotted path (or module_output.<key>) of the value
// it certifies.
type Scenario struct {
	Engine       EngineInfo                   `json:"engine"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
	Inputs       map[string]any               `json:"inputs"`
	Derived      map[string]any               `json:"derived"`
	ModuleStatus map[string]ModuleStatusEntry `json:"module_status"`
	Hashes       map[string]string            `json:"hashes"`
	Receipts     map[string]any               `json:"receipts"`
}

// NewScenario returns an empty scenario stamped with now.
func NewScenario(engine EngineInfo, now time.Time) *Scenario {
	now = now.UTC()
	s := &Scenario{
		Engine:    engine,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.ensureMaps()
	return s
}

// ensureMaps replaces nil namespaces with empty ones so a decoded document
// never serializes a namespace as null.
func (s *Scenario) ensureMaps() {
	if s.Inputs == nil {
		s.Inputs = map[string]any{}
	}
	if s.Derived == nil {
		s.Derived = map[string]any{}
	}
	if s.ModuleStatus == nil {
		s.ModuleStatus = map[string]ModuleStatusEntry{}
	}
	if s.Hashes == nil {
		s.Hashes = map[string]string{}
	}
	if s.Receipts == nil {
		s.Receipts = map[string]any{}
	}
}

// Touch sets UpdatedAt.
func (s *Scenario) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}
