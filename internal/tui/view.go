package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	sections = append(sections, m.renderHeader())

	if m.haveSnap {
		sections = append(sections, m.renderThroughputStats())
		sections = append(sections, m.renderLatencyStats())
		sections = append(sections, m.renderBackpressureStats())
	} else {
		sections = append(sections, boxStyle.Width(m.width-2).Render(mutedStyle.Render("waiting for first sample...")))
	}

	if m.adaptiveState != nil {
		sections = append(sections, m.renderAdaptiveStats())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	backpressureLabel := GetBackpressureLabel(m.DropRate())

	stateLabel := "unknown"
	if m.engineSource != nil {
		stateLabel = engineStateLabel(m.engineState)
	}

	header := fmt.Sprintf(
		" %s │ %s │ %s │ %s │ Elapsed: %s ",
		productNameStyle.Render("vajrapulse"),
		backpressureLabel,
		stateLabel,
		taskLabelStyle.Render("Task: "+m.taskType),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

func engineStateLabel(s engine.State) string {
	switch s {
	case engine.StateRunning:
		return statusOK.Render("● running")
	case engine.StateStarting:
		return statusInfo.Render("● starting")
	case engine.StateStopping:
		return statusWarning.Render("● stopping")
	default:
		return dimStyle.Render("● stopped")
	}
}

// =============================================================================
// Throughput
// =============================================================================

func (m Model) renderThroughputStats() string {
	s := m.snap

	rows := []string{
		renderStatRow("Target rate", RenderValueWithUnit(formatNumber(int64(m.targetRate)), "req/s"), ""),
		renderStatRow("Success", formatNumber(s.Success), formatSuccessRate(m.SuccessRate(), s.Success)),
		renderStatRow("Failure", formatNumber(s.Failure), formatSuccessRate(m.FailureRate(), s.Failure)),
	}

	failureRatio := m.FailureRatio()
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Failure ratio:"),
		GetErrorRateStyle(failureRatio).Render(formatPercent(failureRatio)),
	))

	if m.targetRate > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Rate achieved:"),
			RenderProgressBar(m.SuccessRate()/m.targetRate, 24),
		))
	}

	if m.showDetail {
		rows = append(rows, renderStatRow("Total (exact)", formatNumberWithCommas(s.Total), ""))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Throughput")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Latency
// =============================================================================

func (m Model) renderLatencyStats() string {
	s := m.snap
	if len(s.SuccessPercentiles) == 0 {
		return ""
	}

	keys := make([]float64, 0, len(s.SuccessPercentiles))
	for k := range s.SuccessPercentiles {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	var rows []string
	for _, k := range keys {
		label := fmt.Sprintf("p%g", k*100)
		rows = append(rows, renderLatencyRow(label, s.SuccessPercentiles[k]))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Latency (success)")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

func renderLatencyRow(label string, nanos float64) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(formatNanos(nanos)),
	)
}

// =============================================================================
// Backpressure
// =============================================================================

func (m Model) renderBackpressureStats() string {
	s := m.snap
	dropStyle := GetBackpressureStyle(GetBackpressureStatus(m.DropRate()))

	rows := []string{
		renderStatRow("Queue depth", formatNumber(s.QueueDepth), ""),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Dropped:"),
			dropStyle.Render(formatNumber(s.Dropped)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Rejected:"),
			dropStyle.Render(formatNumber(s.Rejected)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Shed ratio:"),
			dropStyle.Render(formatPercent(m.DropRate())),
		),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Backpressure")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Adaptive controller
// =============================================================================

func (m Model) renderAdaptiveStats() string {
	st := m.adaptiveState

	rows := []string{
		renderStatRow("Phase", st.Phase.String(), ""),
		renderStatRow("Current rate", RenderValueWithUnit(formatNumber(int64(st.CurrentRate)), "req/s"), ""),
		renderStatRow("Stable rate", RenderValueWithUnit(formatNumber(int64(st.StableRate)), "req/s"), ""),
		renderStatRow("Transitions", fmt.Sprintf("%d", st.TransitionCount), ""),
		RenderKeyValueWide("Consecutive stable intervals", fmt.Sprintf("%d", st.ConsecutiveStable)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Adaptive Controller")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Shared row helper
// =============================================================================

func renderStatRow(label, value, rate string) string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
	if rate != "" {
		row = lipgloss.JoinHorizontal(lipgloss.Left, row, "  ", mutedStyle.Render(rate))
	}
	return row
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"d: detail",
		"p: pause",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := dimStyle.Render("Metrics: " + m.metricsAddr)
	if m.paused {
		right = statusWarning.Render("paused") + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
