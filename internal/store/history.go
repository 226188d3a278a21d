package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/abeflag/internal/ir"
)

// ErrPassNotFound is returned by ReadPass for unknown pass ids.
var ErrPassNotFound = errors.New("pass not found")

// PassStarting refuses a pass id that already has events or a record,
// under any scenario key.
func (s *Store) PassStarting(ctx context.Context, passID string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM passes WHERE id = ?) +
			(SELECT COUNT(*) FROM module_events WHERE pass_id = ?)
	`, passID, passID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check pass id: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ir.ErrPassExists, passID)
	}
	return nil
}

// LastSeq returns the highest recorded event seq, or 0 when there is none.
// An engine clock started there keeps seq increasing across processes.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM module_events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

// ModuleTransition appends one module status change to the history.
// Replaying the same (pass_id, seq) pair is a no-op.
func (s *Store) ModuleTransition(ctx context.Context, ev ir.PassEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module_events (pass_id, seq, scenario_key, module, status, notes, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pass_id, seq) DO NOTHING
	`, ev.PassID, ev.Seq, s.key, ev.Module, string(ev.Status), ev.Notes, formatTime(ev.At))
	if err != nil {
		return fmt.Errorf("write module event: %w", err)
	}
	return nil
}

// PassFinished records the summary and certificate of a finished pass.
// A second record for the same id fails with ir.ErrPassExists.
func (s *Store) PassFinished(ctx context.Context, rec ir.PassRecord) error {
	cert, err := ir.MarshalCanonical(rec.Certificate)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO passes
		(id, scenario_key, started_at, finished_at, outcome, halted_at, receipt_hash, certificate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.PassID,
		s.key,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		string(rec.Outcome),
		rec.HaltedAt,
		rec.ReceiptHash,
		string(cert),
	)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("write pass: %w: %s", ir.ErrPassExists, rec.PassID)
	}
	return nil
}

// ListPasses returns every recorded pass for the bound scenario in the order
// they finished. Returns an empty slice (not nil) if there are none.
func (s *Store) ListPasses(ctx context.Context) ([]ir.PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, outcome, halted_at, receipt_hash, certificate
		FROM passes
		WHERE scenario_key = ?
		ORDER BY seq ASC
	`, s.key)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	passes := []ir.PassRecord{}
	for rows.Next() {
		rec, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("list passes: %w", err)
		}
		passes = append(passes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return passes, nil
}

// ReadPass returns one recorded pass of the bound scenario.
func (s *Store) ReadPass(ctx context.Context, passID string) (ir.PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, outcome, halted_at, receipt_hash, certificate
		FROM passes
		WHERE id = ? AND scenario_key = ?
	`, passID, s.key)
	rec, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.PassRecord{}, fmt.Errorf("%w: %s", ErrPassNotFound, passID)
	}
	if err != nil {
		return ir.PassRecord{}, fmt.Errorf("read pass %s: %w", passID, err)
	}
	return rec, nil
}

// ReadPassEvents returns the module transitions of one pass ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadPassEvents(ctx context.Context, passID string) ([]ir.PassEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, seq, module, status, notes, at
		FROM module_events
		WHERE pass_id = ? AND scenario_key = ?
		ORDER BY seq ASC
	`, passID, s.key)
	if err != nil {
		return nil, fmt.Errorf("read pass events: %w", err)
	}
	defer rows.Close()

	events := []ir.PassEvent{}
	for rows.Next() {
		var (
			ev     ir.PassEvent
			status string
			at     string
		)
		if err := rows.Scan(&ev.PassID, &ev.Seq, &ev.Module, &status, &ev.Notes, &at); err != nil {
			return nil, fmt.Errorf("read pass events: %w", err)
		}
		ev.Status = ir.Status(status)
		if ev.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("read pass events: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pass events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (ir.PassRecord, error) {
	var (
		rec                  ir.PassRecord
		started, finished    string
		outcome, certificate string
	)
	if err := row.Scan(&rec.PassID, &started, &finished, &outcome, &rec.HaltedAt, &rec.ReceiptHash, &certificate); err != nil {
		return rec, err
	}
	rec.Outcome = ir.PassOutcome(outcome)

	var err error
	if rec.StartedAt, err = parseTime(started); err != nil {
		return rec, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(certificate), &rec.Certificate); err != nil {
		return rec, fmt.Errorf("decode certificate: %w", err)
	}
	return rec, nil
}
