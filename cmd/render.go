package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HashemBader/lccn-harvester/internal/harvest"
	"github.com/HashemBader/lccn-harvester/internal/target"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func renderSummary(s harvest.Summary) string {
	rows := []string{
		titleStyle.Render("Harvest summary"),
		"",
		summaryRow("Total ISBNs", fmt.Sprintf("%d", s.TotalISBNs), labelStyle),
		summaryRow("Cached hits", fmt.Sprintf("%d", s.CachedHits), labelStyle),
		summaryRow("Skipped (recent fail)", fmt.Sprintf("%d", s.SkippedRecentFail), labelStyle),
		summaryRow("Attempted", fmt.Sprintf("%d", s.Attempted), labelStyle),
		summaryRow("Successes", goodStyle.Render(fmt.Sprintf("%d", s.Successes)), labelStyle),
		summaryRow("Failures", badStyle.Render(fmt.Sprintf("%d", s.Failures)), labelStyle),
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func summaryRow(label, value string, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s", style.Render(fmt.Sprintf("%-22s", label)), value)
}

func renderTargets(cfgs []target.Config) string {
	rows := []string{
		titleStyle.Render("Configured targets"),
		"",
	}

	for _, c := range cfgs {
		status := goodStyle.Render("enabled")
		if !c.Selected {
			status = dimStyle.Render("disabled")
		}

		line := fmt.Sprintf("%2d. %-14s %-8s %s", c.Rank, c.Name, c.Type, status)
		if c.Type == target.TypeZ3950 {
			line += dimStyle.Render(fmt.Sprintf("  %s:%d/%s", c.Host, c.Port, c.Database))
		}
		rows = append(rows, line)
	}

	return boxStyle.Render(strings.Join(rows, "\n"))
}

func renderCacheStats(main, attempted int) string {
	rows := []string{
		titleStyle.Render("Cache"),
		"",
		summaryRow("Resolved ISBNs", fmt.Sprintf("%d", main), labelStyle),
		summaryRow("Pending retries", fmt.Sprintf("%d", attempted), labelStyle),
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}
