package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditCertificate is the standalone proof of one pass: what ran, how it
// ended, and the digest of everything it produced.
type AuditCertificate struct {
	Engine         EngineInfo                   `json:"engine"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
	ModuleStatus   map[string]ModuleStatusEntry `json:"module_status"`
	Hashes         map[string]string            `json:"hashes"`
	InputsPresent  []string                     `json:"inputs_present"`
	DerivedPresent []string                     `json:"derived_present"`
}

// CertificateFor captures s as an audit certificate.
//
// The hash of a previous certificate is left out of Hashes: it describes
// the document being replaced, and including it would make two identical
// passes produce different receipts.
func CertificateFor(s *Scenario) AuditCertificate {
	status := make(map[string]ModuleStatusEntry, len(s.ModuleStatus))
	for k, v := range s.ModuleStatus {
		status[k] = v
	}
	hashes := make(map[string]string, len(s.Hashes))
	for k, v := range s.Hashes {
		if k == ReceiptPath {
			continue
		}
		hashes[k] = v
	}
	return AuditCertificate{
		Engine:         s.Engine,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		ModuleStatus:   status,
		Hashes:         hashes,
		InputsPresent:  SortedKeys(s.Inputs),
		DerivedPresent: SortedKeys(s.Derived),
	}
}

// DecodeCertificate reads a certificate back out of a JSON tree such as
// scenario.receipts.audit_certificate.
func DecodeCertificate(tree any) (AuditCertificate, error) {
	var cert AuditCertificate
	data, err := MarshalCanonical(tree)
	if err != nil {
		return cert, err
	}
	if err := json.Unmarshal(data, &cert); err != nil {
		return cert, fmt.Errorf("decode certificate: %w", err)
	}
	return cert, nil
}
