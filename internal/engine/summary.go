package engine

import (
	"time"

	"github.com/roach88/abeflag/internal/ir"
)

// PassSummary is the JSON form of a PassResult.
type PassSummary struct {
	PassID      string          `json:"pass_id"`
	Outcome     ir.PassOutcome  `json:"outcome"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	HaltedAt    string          `json:"halted_at,omitempty"`
	Fault       string          `json:"fault,omitempty"`
	ReceiptHash string          `json:"receipt_hash"`
	Modules     []ModuleSummary `json:"modules"`
}

// ModuleSummary is the JSON form of a ModuleOutcome.
type ModuleSummary struct {
	Module     string    `json:"module"`
	Status     ir.Status `json:"status"`
	Notes      string    `json:"notes"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Written    []string  `json:"written,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Summary flattens r for encoding.
func (r *PassResult) Summary() PassSummary {
	s := PassSummary{
		PassID:      r.PassID,
		Outcome:     r.Outcome,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		HaltedAt:    r.HaltedAt,
		ReceiptHash: r.ReceiptHash,
		Modules:     make([]ModuleSummary, 0, len(r.Outcomes)),
	}
	if r.Fault != nil {
		s.Fault = r.Fault.Error()
	}
	for _, o := range r.Outcomes {
		m := ModuleSummary{
			Module:     o.Module,
			Status:     o.Status,
			Notes:      o.Notes,
			Written:    o.Written,
			DurationMS: o.Duration.Milliseconds(),
		}
		if kind, ok := kindOf(o.Err); ok {
			m.Kind = kind
		}
		s.Modules = append(s.Modules, m)
	}
	return s
}
