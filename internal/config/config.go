// Package config loads the optional project file (abeflag.yaml or .json).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/runner"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "abeflag.yaml"

// Backend names a scenario repository.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Default state locations per backend.
const (
	DefaultSQLitePath = ".abeflag/abeflag.db"
	DefaultFilePath   = ".abeflag/scenario.json"
)

// Config is the project configuration.
type Config struct {
	Backend       Backend                `yaml:"backend" json:"backend"`
	StatePath     string                 `yaml:"state_path" json:"state_path"`
	ScenarioKey   string                 `yaml:"scenario_key" json:"scenario_key"`
	Manifest      string                 `yaml:"manifest" json:"manifest"`
	HashAlgorithm string                 `yaml:"hash_algorithm" json:"hash_algorithm"`
	LogLevel      string                 `yaml:"log_level" json:"log_level"`
	ListenAddr    string                 `yaml:"listen_addr" json:"listen_addr"`
	Redis         RedisConfig            `yaml:"redis" json:"redis"`
	Engine        EngineConfig           `yaml:"engine" json:"engine"`
	Processes     []runner.ProcessConfig `yaml:"processes" json:"processes"`
}

// RedisConfig locates the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`

	// TTL expires the scenario key, as a Go duration ("72h"). Empty keeps it.
	TTL string `yaml:"ttl" json:"ttl"`

	// KeepPasses caps the pass records kept; 0 uses the repository default.
	KeepPasses int64 `yaml:"keep_passes" json:"keep_passes"`
}

// Expiration parses TTL.
func (r RedisConfig) Expiration() (time.Duration, error) {
	if r.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 0, fmt.Errorf("redis.ttl: %w", err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("redis.ttl: must not be negative, got %s", r.TTL)
	}
	return ttl, nil
}

// EngineConfig overrides the identity stamped on new scenarios.
type EngineConfig struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend:       BackendSQLite,
		ScenarioKey:   "default",
		HashAlgorithm: string(ir.SHA256),
		LogLevel:      "info",
		ListenAddr:    ":8080",
		Redis:         RedisConfig{Addr: "localhost:6379"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless required is set, which is the case for an explicit --config.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown backend %q (want memory, file, sqlite or redis)", c.Backend)
	}
	if _, err := ir.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return err
	}
	if _, err := c.Redis.Expiration(); err != nil {
		return err
	}
	if c.Redis.KeepPasses < 0 {
		return fmt.Errorf("redis.keep_passes: must not be negative, got %d", c.Redis.KeepPasses)
	}
	seen := make(map[string]bool, len(c.Processes))
	for i, p := range c.Processes {
		if p.Name == "" {
			return fmt.Errorf("processes[%d]: name is required", i)
		}
		if p.Command == "" {
			return fmt.Errorf("processes[%d] %s: command is required", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("processes[%d]: duplicate name %s", i, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// ResolvedStatePath returns StatePath or the backend's default location.
func (c *Config) ResolvedStatePath() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	if c.Backend == BackendFile {
		return DefaultFilePath
	}
	return DefaultSQLitePath
}

// Hasher returns the configured digest.
func (c *Config) Hasher() (ir.Hasher, error) {
	alg, err := ir.ParseAlgorithm(c.HashAlgorithm)
	if err != nil {
		return ir.Hasher{}, err
	}
	return ir.NewHasher(alg)
}

// EngineInfo returns the engine identity with defaults for unset fields.
func (c *Config) EngineInfo() ir.EngineInfo {
	info := ir.DefaultEngine()
	if c.Engine.ID != "" {
		info.ID = c.Engine.ID
	}
	if c.Engine.Name != "" {
		info.Name = c.Engine.Name
	}
	if c.Engine.Version != "" {
		info.Version = c.Engine.Version
	}
	return info
}
