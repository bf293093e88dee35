package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// RenderGauge draws a ratio in [0,1] as a bar colored by alert level,
// followed by the percentage. An unavailable level renders a dimmed track
// with "N/A".
func RenderGauge(ratio float64, width int, level core.AlertLevel) string {
	if width < 5 {
		width = 5
	}
	if level == core.AlertUnavailable || ratio < 0 {
		return gaugeTrackStyle.Render(strings.Repeat("─", width)) + dimStyle.Render("   N/A")
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(width))
	empty := width - filled
	color := alertColor(level)

	filledStyle := lipgloss.NewStyle().Foreground(color)
	trackStyle := lipgloss.NewStyle().Foreground(colorSurface1)

	bar := filledStyle.Render(strings.Repeat("━", filled)) +
		trackStyle.Render(strings.Repeat("━", empty))

	pctStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	return fmt.Sprintf("%s %s", bar, pctStyle.Render(fmt.Sprintf("%5.1f%%", ratio*100)))
}

// RenderAlertRow is one labeled gauge line: "LOW FUEL  ━━━━━━  42.0%  NOMINAL".
func RenderAlertRow(a core.Alert, labelW, barW int) string {
	label := labelStyle.Render(padRight(a.Label, labelW))
	badge := lipgloss.NewStyle().Foreground(alertColor(a.Level)).Bold(true).Render(string(a.Level))
	return label + RenderGauge(a.Ratio, barW, a.Level) + "  " + badge
}

func padRight(s string, w int) string {
	if n := lipgloss.Width(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}
