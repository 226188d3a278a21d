package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abeflag/internal/ir"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	sc, err := LoadScenario("testdata/required-then-optional.yaml")
	require.NoError(t, err)

	assert.Equal(t, "required-then-optional", sc.Name)
	assert.NotEmpty(t, sc.Description)
	assert.Len(t, sc.Runners, 2)
	assert.Equal(t, ir.PassCompleted, sc.Expect.Outcome)
	assert.Equal(t, map[string]string{"a": "OK", "b": "OK"}, sc.Expect.Status)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, sc.Expect.Calls)

	m, err := sc.ParsedManifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.FiringOrder)
	assert.True(t, m.Modules["a"].Required)
	assert.Equal(t, []string{"derived.a"}, m.Modules["b"].Requires)
	assert.Equal(t, "B", m.Modules["b"].Runner)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_AllTestdataParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)
			_, err = sc.ParsedManifest()
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "name: [unterminated",
			wantErr: "failed to parse YAML",
		},
		{
			name: "unknown field",
			content: `
name: x
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
flo: []
`,
			wantErr: "field flo not found",
		},
		{
			name: "missing name",
			content: `
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
manifest: {firing_order: [a], modules: {a: {runner: A}}}
`,
			wantErr: "description is required",
		},
		{
			name: "missing manifest",
			content: `
name: x
description: y
`,
			wantErr: "manifest is required",
		},
		{
			name: "negative passes",
			content: `
name: x
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
passes: -1
`,
			wantErr: "passes must be non-negative",
		},
		{
			name: "conflicting runner script",
			content: `
name: x
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
runners:
  A:
    returns: 1
    error: boom
`,
			wantErr: "runners.A: set at most one",
		},
		{
			name: "unknown status",
			content: `
name: x
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
expect:
  status: {a: DONE}
`,
			wantErr: `unknown status "DONE"`,
		},
		{
			name: "unknown outcome",
			content: `
name: x
description: y
manifest: {firing_order: [a], modules: {a: {runner: A}}}
expect:
  outcome: finished
`,
			wantErr: `unknown outcome "finished"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsedManifest_InvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := `
name: bad
description: manifest has an unknown field
manifest:
  firing_order: [a]
  modules:
    a:
      runner: A
      priority: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = sc.ParsedManifest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.manifest")
}
