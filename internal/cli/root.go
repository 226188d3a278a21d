package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/config"
	"github.com/roach88/abeflag/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // project file; empty reads config.DefaultPath if present
	Backend    string // overrides config backend
	StatePath  string // overrides config state_path
	RedisAddr  string // overrides config redis.addr
	Hash       string // overrides config hash_algorithm
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the abeflag CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "abeflag",
		Short:   "abeflag - manifest-driven module orchestration",
		Long:    "Runs the modules of a manifest in order over one scenario document and records a hash receipt of everything they computed.",
		Version: ir.ToolVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Backend != "" {
				switch config.Backend(opts.Backend) {
				case config.BackendMemory, config.BackendFile, config.BackendSQLite, config.BackendRedis:
				default:
					return fmt.Errorf("invalid backend %q: must be one of memory, file, sqlite, redis", opts.Backend)
				}
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "project file (default "+config.DefaultPath+" when present)")
	pf.StringVar(&opts.Backend, "backend", "", "scenario backend (memory|file|sqlite|redis)")
	pf.StringVar(&opts.StatePath, "state", "", "state file or database path for the file and sqlite backends")
	pf.StringVar(&opts.RedisAddr, "redis-addr", "", "redis address for the redis backend")
	pf.StringVar(&opts.Hash, "hash", "", "digest algorithm for new hashes (sha256|blake3)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReceiptCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
