package ir

import (
	"errors"
	"time"
)

// ErrPassExists is returned when a pass id has already been recorded.
var ErrPassExists = errors.New("pass id already recorded")

// PassOutcome summarizes how a pass ended.
type PassOutcome string

const (
	// PassCompleted means every module in the firing order reached a
	// terminal state.
	PassCompleted PassOutcome = "completed"

	// PassHalted means a required module failed and later modules were
	// never attempted.
	PassHalted PassOutcome = "halted"

	// PassCancelled means the caller's context ended between modules.
	PassCancelled PassOutcome = "cancelled"
)

// PassEvent is one module status transition inside a pass.
// Seq orders events within and across passes; At is informational.
type PassEvent struct {
	PassID string    `json:"pass_id"`
	Seq    int64     `json:"seq"`
	Module string    `json:"module"`
	Status Status    `json:"status"`
	Notes  string    `json:"notes"`
	At     time.Time `json:"at"`
}

// PassRecord is the durable summary of a finished pass.
type PassRecord struct {
	PassID      string           `json:"pass_id"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Outcome     PassOutcome      `json:"outcome"`
	HaltedAt    string           `json:"halted_at,omitempty"`
	ReceiptHash string           `json:"receipt_hash"`
	Certificate AuditCertificate `json:"certificate"`
}
