package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ─── Help Overlay ───────────────────────────────────────────────────────────

// renderHelpOverlay draws a centered popup with gauge meanings and key
// bindings. Dismissed by ? or esc.
func (m Model) renderHelpOverlay(screenW, screenH int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	descStyle := lipgloss.NewStyle().Foreground(colorSubtext)
	dimHintStyle := lipgloss.NewStyle().Foreground(colorDim).Italic(true)

	var lines []string
	lines = append(lines, titleStyle.Render("  PromptPetrol Help"))
	lines = append(lines, "")

	lines = append(lines, sectionHeaderStyle.Render("  Gauges"))
	gauges := []struct{ label, desc string }{
		{"LOW FUEL", "budget left after all recorded spend"},
		{"HIGH RPM", "provider tokens against the busiest provider"},
		{"OVERBURN", "provider cost against the most expensive provider"},
		{"TRAFFIC JAM", "provider share of all requests"},
		{"5H LIMIT", "codex 5-hour window usage"},
		{"WEEKLY", "codex weekly window usage"},
	}
	for _, g := range gauges {
		lines = append(lines, "    "+helpKeyStyle.Render(padRight(g.label, 13))+descStyle.Render(g.desc))
	}
	lines = append(lines, "")

	lines = append(lines, sectionHeaderStyle.Render("  Freshness"))
	lines = append(lines, "    "+descStyle.Render("LIVE under 30s, STALE under 2m, OLD after that"))
	lines = append(lines, "")

	lines = append(lines, sectionHeaderStyle.Render("  Keys"))
	keys := []struct{ key, desc string }{
		{"q", "quit"},
		{"r", "reload now"},
		{"← h k", "previous provider"},
		{"→ l j", "next provider"},
		{"?", "toggle this help"},
	}
	for _, k := range keys {
		lines = append(lines, "    "+helpKeyStyle.Render(padRight(k.key, 8))+descStyle.Render(k.desc))
	}
	lines = append(lines, "")
	lines = append(lines, dimHintStyle.Render("  press ? or esc to close"))

	box := panelStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(screenW, screenH, lipgloss.Center, lipgloss.Center, box)
}
