package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

// ─── Color Palette (Catppuccin Mocha) ───────────────────────────────────────

var (
	colorMantle   = lipgloss.Color("#181825") // deeper bg
	colorSurface0 = lipgloss.Color("#313244") // card bg
	colorSurface1 = lipgloss.Color("#45475A") // lighter surface
	colorText     = lipgloss.Color("#CDD6F4") // primary text
	colorSubtext  = lipgloss.Color("#A6ADC8") // secondary text
	colorDim      = lipgloss.Color("#585B70") // muted, borders

	colorAccent   = lipgloss.Color("#CBA6F7") // mauve
	colorBlue     = lipgloss.Color("#89B4FA") // section headers
	colorSapphire = lipgloss.Color("#74C7EC")
	colorGreen    = lipgloss.Color("#A6E3A1")
	colorYellow   = lipgloss.Color("#F9E2AF")
	colorRed      = lipgloss.Color("#F38BA8")
	colorPeach    = lipgloss.Color("#FAB387")
	colorTeal     = lipgloss.Color("#94E2D5")
	colorLavender = lipgloss.Color("#B4BEFE")

	colorOK   = colorGreen
	colorWarn = colorYellow
	colorCrit = colorRed
)

// ─── Reusable Styles ────────────────────────────────────────────────────────

var (
	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorSapphire).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	tealStyle = lipgloss.NewStyle().
			Foreground(colorTeal)

	gaugeTrackStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	cardNormalStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1)

	cardSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				PaddingRight(1).
				Background(colorSurface0)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorLavender)

	metricValueStyle = lipgloss.NewStyle().
				Foreground(colorPeach).
				Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorMantle).
				Background(colorRed).
				Bold(true).
				Padding(0, 1)
)

// ─── Status helpers ─────────────────────────────────────────────────────────

func alertColor(level core.AlertLevel) lipgloss.Color {
	switch level {
	case core.AlertNominal:
		return colorOK
	case core.AlertWatch:
		return colorWarn
	case core.AlertAlert:
		return colorCrit
	default:
		return colorDim
	}
}

func freshnessColor(f core.Freshness) lipgloss.Color {
	switch f {
	case core.FreshnessLive:
		return colorOK
	case core.FreshnessStale:
		return colorWarn
	case core.FreshnessOld:
		return colorCrit
	default:
		return colorDim
	}
}

func pillStyle(color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(colorMantle).
		Background(color).
		Bold(true).
		Padding(0, 1)
}
