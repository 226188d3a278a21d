package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/scenario"
)

var _ scenario.Repository = (*Store)(nil)

// Load reads the bound scenario row.
func (s *Store) Load(ctx context.Context) (*ir.Scenario, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM scenarios WHERE key = ?`, s.key,
	).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scenario.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", s.key, err)
	}
	return ir.DecodeScenario([]byte(document))
}

// Save upserts the bound scenario row.
func (s *Store) Save(ctx context.Context, sc *ir.Scenario) error {
	data, err := ir.EncodeScenario(sc)
	if err != nil {
		return fmt.Errorf("save scenario %s: %w", s.key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenarios (key, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, s.key, string(data), formatTime(sc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save scenario %s: %w", s.key, err)
	}
	return nil
}

// Delete removes the bound scenario row. Pass history is kept.
func (s *Store) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("delete scenario %s: %w", s.key, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
