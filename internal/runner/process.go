package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/roach88/abeflag/internal/ir"
)

// ProcessConfig allow-lists one external command as a runner.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	Dir         string            `yaml:"dir" json:"dir"`
	Description string            `yaml:"description" json:"description"`
	// Multi declares that stdout is an envelope {"writes": {path: value}}
	// rather than one value.
	Multi bool `yaml:"multi" json:"multi"`
}

// processRequest is written to the command's stdin.
type processRequest struct {
	Scenario *ir.Scenario `json:"scenario"`
	PassID   string       `json:"pass_id"`
	Module   string       `json:"module"`
	Config   Config       `json:"config"`
	Files    []FileMeta   `json:"files"`
}

// ProcessRunner executes an allow-listed command. The scenario view and the
// invocation go to stdin as JSON; stdout must be one JSON value. Manifest
// config is passed as JSON on stdin only, never as command-line flags.
type ProcessRunner struct {
	cfg ProcessConfig
}

// NewProcessRunner creates a runner for cfg.
func NewProcessRunner(cfg ProcessConfig) (*ProcessRunner, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("process %s: command is required", cfg.Name)
	}
	return &ProcessRunner{cfg: cfg}, nil
}

// RegisterProcesses installs each process under its name.
func RegisterProcesses(r *Registry, procs []ProcessConfig) error {
	for _, p := range procs {
		proc, err := NewProcessRunner(p)
		if err != nil {
			return err
		}
		if err := r.RegisterRunner(p.Name, proc); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the command once.
func (p *ProcessRunner) Run(ctx context.Context, view *ir.Scenario, inv Invocation) (Output, error) {
	files := inv.Files
	if files == nil {
		files = []FileMeta{}
	}
	stdin, err := json.Marshal(processRequest{
		Scenario: view,
		PassID:   inv.PassID,
		Module:   inv.Module,
		Config:   inv.Config,
		Files:    files,
	})
	if err != nil {
		return Output{}, fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, p.cfg.Args...)
	cmd.Dir = p.cfg.Dir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(cmd.Environ(),
		"ABEFLAG_PASS_ID="+inv.PassID,
		"ABEFLAG_MODULE="+inv.Module,
	)
	keys := make([]string, 0, len(p.cfg.Env))
	for k := range p.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+p.cfg.Env[k])
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return Output{}, fmt.Errorf("%s: %w", p.cfg.Command, err)
		}
		return Output{}, fmt.Errorf("%s: %w: %s", p.cfg.Command, err, msg)
	}

	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) == 0 {
		if p.cfg.Multi {
			return Output{}, fmt.Errorf("%s: empty output, expected an object of writes", p.cfg.Command)
		}
		return Single(nil), nil
	}
	tree, err := ir.DecodeValue(trimmed)
	if err != nil {
		return Output{}, fmt.Errorf("%s: stdout is not JSON: %w", p.cfg.Command, err)
	}
	if !p.cfg.Multi {
		return Single(tree), nil
	}
	env, ok := tree.(map[string]any)
	if !ok {
		return Output{}, fmt.Errorf("%s: expected an object of writes, got %T", p.cfg.Command, tree)
	}
	for k := range env {
		if k != "writes" {
			return Output{}, fmt.Errorf("%s: unexpected field %q beside writes", p.cfg.Command, k)
		}
	}
	writes, ok := env["writes"].(map[string]any)
	if !ok {
		return Output{}, fmt.Errorf("%s: expected an object of writes under \"writes\", got %T", p.cfg.Command, env["writes"])
	}
	return Multi(writes), nil
}
