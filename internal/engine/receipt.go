package engine

import (
	"context"
	"fmt"

	"github.com/roach88/abeflag/internal/ir"
)

// BuildCertificate captures the audit certificate of sc. The hash of a
// previous certificate is not part of it.
func BuildCertificate(sc *ir.Scenario) ir.AuditCertificate {
	return ir.CertificateFor(sc)
}

// finish stores the certificate at receipts.audit_certificate, hashes it,
// and reports the pass.
func (e *Engine) finish(pctx context.Context, res *PassResult) error {
	switch {
	case res.Halted:
		res.Outcome = ir.PassHalted
	case res.Cancelled:
		res.Outcome = ir.PassCancelled
	default:
		res.Outcome = ir.PassCompleted
	}

	cert := BuildCertificate(e.store.Snapshot(pctx))
	if err := e.store.Set(pctx, ir.ReceiptPath, cert); err != nil {
		return fmt.Errorf("store audit certificate: %w", err)
	}
	stored, _ := e.store.Get(pctx, ir.ReceiptPath)
	digest, err := e.store.StoreHash(pctx, ir.ReceiptPath, stored)
	if err != nil {
		return fmt.Errorf("hash audit certificate: %w", err)
	}
	res.Certificate = cert
	res.ReceiptHash = digest
	res.FinishedAt = e.store.Now()

	e.metrics.pass(res.Outcome)
	rec := ir.PassRecord{
		PassID:      res.PassID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Outcome:     res.Outcome,
		HaltedAt:    res.HaltedAt,
		ReceiptHash: res.ReceiptHash,
		Certificate: cert,
	}
	if err := e.observer.PassFinished(pctx, rec); err != nil {
		e.logger.Warn("observer rejected pass record", "pass", res.PassID, "err", err)
	}
	return nil
}
