package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/abeflag/internal/ir"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPass builds a finished pass record with one OK module.
func createTestPass(id string, outcome ir.PassOutcome) ir.PassRecord {
	sc := ir.NewScenario(ir.DefaultEngine(), testTime)
	sc.ModuleStatus["a"] = ir.ModuleStatusEntry{Status: ir.StatusOK, Notes: "Completed", GeneratedAt: testTime}
	sc.Hashes["derived.a"] = "digest-a"
	return ir.PassRecord{
		PassID:      id,
		StartedAt:   testTime,
		FinishedAt:  testTime.Add(time.Second),
		Outcome:     outcome,
		ReceiptHash: "receipt-" + id,
		Certificate: ir.CertificateFor(sc),
	}
}
