package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
)

const (
	minListWidth = 24
	maxListWidth = 34
	sparkDays    = 14
)

func (m Model) View() string {
	if m.width < 30 || m.height < 8 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Render("\n  Terminal too small. Resize to at least 30×8.")
	}
	if m.snap == nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			dimStyle.Render("reading usage…"))
	}
	if m.showHelp {
		return m.renderHelpOverlay(m.width, m.height)
	}
	return m.renderDashboard()
}

func (m Model) renderDashboard() string {
	w, h := m.width, m.height

	header := m.renderHeader(w)
	footer := m.renderFooter(w)
	contentH := h - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentH < 3 {
		contentH = 3
	}

	listW := w / 3
	listW = max(minListWidth, min(maxListWidth, listW))
	if listW > w-20 {
		listW = w / 2
	}
	list := lipgloss.NewStyle().Width(listW).Height(contentH).Render(m.renderList(listW))
	detail := lipgloss.NewStyle().Width(w - listW).Height(contentH).Render(m.renderDetail(w - listW))
	content := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)

	return header + "\n" + content + "\n" + footer
}

func (m Model) renderHeader(w int) string {
	now := m.now()
	brand := headerBrandStyle.Render("⛽ PromptPetrol")

	fresh := m.snap.Diagnostics.Freshness(now)
	pill := pillStyle(freshnessColor(fresh)).Render(string(fresh))

	spent := core.TotalCost(m.snap.Data)
	budget := "no budget"
	if b, ok := m.snap.Data.Budget(); ok {
		budget = fmt.Sprintf("$%.2f / $%.2f", spent, b)
	}
	info := labelStyle.Render(budget)
	if m.refreshing {
		info = tealStyle.Render("reloading… ") + info
	}

	left := brand + " " + pill
	gap := w - lipgloss.Width(left) - lipgloss.Width(info)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + info
	sep := lipgloss.NewStyle().Foreground(colorSurface1).Render(strings.Repeat("━", w))

	out := line + "\n" + sep
	if m.snap.Halted {
		msg := "CONFIG INVALID: " + m.snap.Diagnostics.ConfigError
		out += "\n" + errorBannerStyle.Render(ansi.Truncate(msg, w-2, "…"))
	}
	return out
}

func (m Model) renderList(w int) string {
	if len(m.providers) == 0 {
		return dimStyle.Render("\n  no usage recorded")
	}
	var rows []string
	rows = append(rows, sectionHeaderStyle.Render(" Providers"))
	for _, s := range m.snap.Summaries() {
		style := cardNormalStyle
		name := valueStyle.Render(s.Provider)
		if s.Provider == m.selected {
			style = cardSelectedStyle
			name = detailTitleStyle.Render("▸ " + s.Provider)
		}
		cost := metricValueStyle.Render(fmt.Sprintf("$%.3f", s.TotalCostUSD))
		tokens := dimStyle.Render(formatTokens(s.TotalTokens) + " tok")
		inner := w - 2
		gap := inner - lipgloss.Width(name) - lipgloss.Width(cost)
		if gap < 1 {
			gap = 1
		}
		rows = append(rows, style.Width(w).Render(name+strings.Repeat(" ", gap)+cost+"\n"+tokens))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderDetail(w int) string {
	if m.selected == "" {
		return ""
	}
	inner := w - 4
	barW := max(10, inner-30)

	var lines []string
	lines = append(lines, detailTitleStyle.Render(m.selected))
	if stats, ok := core.StatsFor(m.snap.Data, m.selected); ok {
		summary := fmt.Sprintf("%s tokens · $%.3f · %d requests",
			formatTokens(stats.TotalTokens), stats.TotalCostUSD, stats.Requests)
		lines = append(lines, labelStyle.Render(summary))
		if stats.Unestimated > 0 {
			lines = append(lines, lipgloss.NewStyle().Foreground(colorPeach).
				Render(fmt.Sprintf("%d entries without pricing", stats.Unestimated)))
		}
	}
	lines = append(lines, "")

	gauges := core.ComputeGauges(m.snap.Data, m.selected)
	for _, a := range core.GaugeAlerts(gauges, m.snap.Alerts) {
		lines = append(lines, RenderAlertRow(a, 13, barW))
	}
	lines = append(lines, "")

	lines = append(lines, sectionHeaderStyle.Render(fmt.Sprintf("Spend, last %d days", sparkDays)))
	spark := RenderSparkline(core.DailyCost(m.snap.Data, m.selected, sparkDays), min(inner, sparkDays*2), colorSapphire)
	lines = append(lines, spark)
	lines = append(lines, "")

	lines = append(lines, sectionHeaderStyle.Render("Codex limits"))
	for _, a := range core.LimitAlerts(m.snap.Limits, m.snap.Alerts) {
		row := RenderAlertRow(a, 13, barW)
		if snap, ok := core.LimitFor(m.snap.Limits, windowFor(a.Label)); ok && snap.ResetsAt != nil {
			row += dimStyle.Render("  resets " + formatUntil(*snap.ResetsAt, m.now()))
		}
		lines = append(lines, row)
	}

	return panelStyle.Width(w - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter(w int) string {
	sep := lipgloss.NewStyle().Foreground(colorSurface1).Render(strings.Repeat("━", w))
	return sep + "\n" + m.renderFooterStatusLine(w)
}

func (m Model) renderFooterStatusLine(w int) string {
	now := m.now()
	status := m.snap.Diagnostics.StatusLine(now)
	st := m.snap.Scheduler
	if st.Interval > 0 {
		status += fmt.Sprintf(" · %s %s", st.Mode, st.Interval)
	}
	if d := m.snap.Diagnostics; d.StoreError != "" {
		status += " · store: " + d.StoreError
	}
	hint := helpStyle.Render("? help")
	room := w - lipgloss.Width(hint) - 3
	if room < 0 {
		room = 0
	}
	return " " + dimStyle.Render(ansi.Truncate(status, room, "…")) + " " + hint
}

func windowFor(label string) core.Window {
	if label == core.WindowWeekly.Label() {
		return core.WindowWeekly
	}
	return core.WindowFiveHour
}

func formatTokens(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatUntil(t, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	if d <= 0 {
		return "now"
	}
	if d >= 24*time.Hour {
		return fmt.Sprintf("in %dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
	return "in " + strings.TrimSuffix(d.String(), "0s")
}
