package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	statusStyles = map[ir.Status]lipgloss.Style{
		ir.StatusOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		ir.StatusWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		ir.StatusFail:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		ir.StatusSkip:    lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")),
		ir.StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		ir.StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")),
	}
	notesStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// StatusRow is one module in status output. Name is the manifest's display
// name for the module, or its key.
type StatusRow struct {
	Module      string    `json:"module"`
	Name        string    `json:"name"`
	Status      ir.Status `json:"status"`
	Notes       string    `json:"notes"`
	GeneratedAt string    `json:"generated_at"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the module status table",
		Long: `Show the latest status of every module recorded in the scenario.

Rows follow the manifest's firing order when --manifest is given (or a
manifest is configured), otherwise module keys in sorted order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, manifestPath, cmd)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "order rows by this manifest's firing order")

	return cmd
}

func runStatus(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts, cmd)

	ws, err := openWorkspace(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer ws.Close()

	if manifestPath == "" {
		manifestPath = ws.cfg.Manifest
	}
	var m *manifest.Manifest
	if manifestPath != "" {
		if m, err = manifest.ParseFile(manifestPath); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeManifestLoad, "failed to load manifest", err)
		}
	}

	rows := statusRows(ws.store.Snapshot(ctx), m)
	if formatter.JSON() {
		return formatter.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No modules have run yet.")
		return nil
	}
	renderStatusTable(formatter.Writer, rows)
	return nil
}

// statusRows lists module_status in the manifest's order, then any recorded
// modules the manifest does not mention, sorted. m may be nil.
func statusRows(sc *ir.Scenario, m *manifest.Manifest) []StatusRow {
	var order []string
	if m != nil {
		order = m.Keys()
	}
	rows := make([]StatusRow, 0, len(sc.ModuleStatus))
	seen := make(map[string]bool, len(sc.ModuleStatus))
	add := func(key string) {
		entry, ok := sc.ModuleStatus[key]
		if !ok || seen[key] {
			return
		}
		seen[key] = true
		name := key
		if m != nil {
			if spec, ok := m.Modules[key]; ok {
				name = spec.Label(key)
			}
		}
		rows = append(rows, StatusRow{
			Module:      key,
			Name:        name,
			Status:      entry.Status,
			Notes:       entry.Notes,
			GeneratedAt: entry.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	for _, key := range order {
		add(key)
	}
	for _, key := range ir.SortedKeys(sc.ModuleStatus) {
		add(key)
	}
	return rows
}

// renderStatusTable writes rows as aligned columns.
func renderStatusTable(w io.Writer, rows []StatusRow) {
	moduleWidth, statusWidth := len("MODULE"), len("STATUS")
	for _, r := range rows {
		moduleWidth = max(moduleWidth, lipgloss.Width(r.Name))
		statusWidth = max(statusWidth, lipgloss.Width(string(r.Status)))
	}
	col := func(s string, width int, style lipgloss.Style) string {
		return style.Render(s) + strings.Repeat(" ", width-lipgloss.Width(s)+2)
	}

	fmt.Fprintln(w, col("MODULE", moduleWidth, headerStyle)+col("STATUS", statusWidth, headerStyle)+headerStyle.Render("NOTES"))
	for _, r := range rows {
		style, ok := statusStyles[r.Status]
		if !ok {
			style = lipgloss.NewStyle()
		}
		fmt.Fprintln(w, col(r.Name, moduleWidth, lipgloss.NewStyle())+col(string(r.Status), statusWidth, style)+notesStyle.Render(r.Notes))
	}
}
