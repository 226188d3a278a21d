package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const householdManifest = `firing_order: [intake, profile, merged, fingerprint]
modules:
  intake:
    name: Household intake
    required: true
    requires: [inputs.household]
    produces: [derived.intake]
    runner: copy
    config:
      from: inputs.household
  profile:
    produces: [derived.profile]
    runner: static
    config:
      value: {tier: standard}
  merged:
    requires: [derived.intake, derived.profile]
    produces: [derived.merged]
    runner: merge
    config:
      from: [derived.intake, derived.profile]
  fingerprint:
    requires: [derived.merged]
    produces: [derived.fingerprint]
    runner: digest
    config:
      from: derived.merged
`

// project is a temp directory holding a manifest and backend state.
type project struct {
	dir      string
	manifest string
	backend  []string
}

func newProject(t *testing.T, manifestBody string) *project {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestBody), 0o644))
	return &project{
		dir:      dir,
		manifest: path,
		backend:  []string{"--backend", "file", "--state", filepath.Join(dir, "scenario.json")},
	}
}

// withSQLite switches the project to the sqlite backend.
func (p *project) withSQLite() *project {
	p.backend = []string{"--backend", "sqlite", "--state", filepath.Join(p.dir, "state", "abeflag.db")}
	return p
}

// execute runs the root command with the project's backend flags first.
// stderr (logs) is discarded so JSON on stdout stays parseable.
func (p *project) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(append([]string{}, p.backend...), args...))
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// decodeData re-decodes resp.Data into T.
func decodeData[T any](t *testing.T, resp CLIResponse) T {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}
