package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotScenario is returned when a document parses as JSON but lacks the
// engine identity every scenario carries.
var ErrNotScenario = errors.New("document is not a scenario")

// EncodeScenario serializes s for persistence.
func EncodeScenario(s *Scenario) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode scenario: %w", err)
	}
	return data, nil
}

// DecodeScenario parses a persisted scenario. Numbers inside the JSON
// namespaces decode as json.Number.
func DecodeScenario(data []byte) (*Scenario, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if s.Engine.ID == "" {
		return nil, ErrNotScenario
	}
	for key, entry := range s.ModuleStatus {
		if !entry.Status.Valid() {
			return nil, fmt.Errorf("decode scenario: module %q has unknown status %q", key, entry.Status)
		}
	}
	s.ensureMaps()
	return &s, nil
}

// Clone returns a deep copy of s.
func (s *Scenario) Clone() *Scenario {
	data, err := EncodeScenario(s)
	if err != nil {
		// Every value in s went through Normalize, so this cannot fail
		// unless a caller bypassed Assign.
		panic(fmt.Sprintf("Clone: %v", err))
	}
	out, err := DecodeScenario(data)
	if err != nil {
		panic(fmt.Sprintf("Clone: %v", err))
	}
	return out
}
