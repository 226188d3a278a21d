package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/scenario"
)

// DefaultFilePath is where the file repository keeps the scenario when no
// path is configured.
var DefaultFilePath = filepath.Join(".abeflag", "scenario.json")

// FileRepository persists the scenario as one indented JSON document.
type FileRepository struct {
	Path string
}

var _ scenario.Repository = (*FileRepository)(nil)

// NewFileRepository creates a FileRepository. An empty path selects
// DefaultFilePath.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileRepository{Path: path}
}

// Load reads and decodes the document.
func (f *FileRepository) Load(_ context.Context) (*ir.Scenario, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scenario.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ir.DecodeScenario(data)
}

// Save writes the document to a temporary file and renames it over the old
// one, so readers never observe a half-written scenario.
func (f *FileRepository) Save(_ context.Context, sc *ir.Scenario) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure scenario directory: %w", err)
	}

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace scenario file: %w", err)
	}
	return nil
}

// Delete removes the document.
func (f *FileRepository) Delete(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete scenario file: %w", err)
	}
	return nil
}
