// Package report renders deployment summaries for the terminal and for logs.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/artpar/chainforge/internal/engine"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	phaseStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Padding(0, 1)
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Padding(0, 1)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

const (
	statusColumn  = 2
	addressColumn = 3
)

// Render writes a human-readable summary of r.
func Render(w io.Writer, r *engine.Report) error {
	_, err := io.WriteString(w, String(r))
	return err
}

// String renders r with one table per phase.
func String(r *engine.Report) string {
	var b strings.Builder

	title := "Deployment summary"
	if r.DryRun {
		title = "Dry run"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("network %s  deployer %s", orDash(r.Network), orDash(r.Deployer))))
	if r.RunID != "" {
		b.WriteString(detailStyle.Render("  run " + r.RunID))
	}
	b.WriteString("\n\n")

	for _, ph := range r.Phases {
		heading := ph.Name
		if ph.Status != "" {
			heading += " (" + string(ph.Status) + ")"
		}
		b.WriteString(phaseStyle.Render(heading))
		b.WriteString("\n")

		if len(ph.Missing) > 0 {
			b.WriteString(warningStyle.Render("missing: " + strings.Join(ph.Missing, ", ")))
			b.WriteString("\n")
		}

		b.WriteString(phaseTable(ph).String())
		b.WriteString("\n")

		for _, s := range ph.PostSteps {
			line := "post-step " + s.Name + ": ok"
			style := detailStyle
			if s.Error != "" {
				line = "post-step " + s.Name + ": " + s.Error
				style = warningStyle
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func phaseTable(ph engine.PhaseReport) *table.Table {
	rows := make([][]string, 0, len(ph.Artifacts))
	for _, a := range ph.Artifacts {
		rows = append(rows, []string{
			a.Name,
			string(a.Category),
			string(a.Status),
			a.DisplayAddress(),
			orDash(a.Verification),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ARTIFACT", "CATEGORY", "STATUS", "ADDRESS", "VERIFIED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(ph.Artifacts) {
				return cellStyle
			}
			a := ph.Artifacts[row]
			switch {
			case col == addressColumn && a.Address == "":
				return missingStyle
			case col == statusColumn && a.Status == engine.StatusSkipped:
				return mutedStyle
			case col == statusColumn && (a.Status == engine.StatusDeployed || a.Status == engine.StatusRedeployed):
				return okStyle
			case col == statusColumn && a.Status == engine.StatusFailed:
				return missingStyle
			}
			return cellStyle
		})
}

// Log writes one structured line per artifact and a per-phase summary.
func Log(logger *slog.Logger, r *engine.Report) {
	for _, ph := range r.Phases {
		deployed := 0
		for _, a := range ph.Artifacts {
			logger.Info("artifact",
				"phase", ph.Name,
				"name", a.Name,
				"category", a.Category,
				"status", a.Status,
				"address", a.DisplayAddress(),
			)
			if a.Address != "" {
				deployed++
			}
		}
		logger.Info("phase summary",
			"phase", ph.Name,
			"status", ph.Status,
			"recorded", deployed,
			"artifacts", len(ph.Artifacts),
			"missing", ph.Missing,
		)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
