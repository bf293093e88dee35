package tui

import (
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
)

// RenderSparkline draws daily values as a one-row ntcharts sparkline. The
// newest value is on the right.
func RenderSparkline(values []float64, w int, color lipgloss.Color) string {
	if len(values) == 0 || w < 1 {
		return ""
	}
	if len(values) > w {
		values = values[len(values)-w:]
	}

	var maxV float64
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}
	if maxV == 0 {
		return dimStyle.Render(strings.Repeat("▁", len(values)))
	}

	sl := sparkline.New(len(values), 1,
		sparkline.WithStyle(lipgloss.NewStyle().Foreground(color)),
		sparkline.WithMaxValue(maxV),
	)
	sl.PushAll(values)
	sl.Draw()
	return sl.View()
}
