// Package tui provides a live terminal dashboard for a load generation run.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It displays real-time metrics including:
// - Target vs actual rate
// - Success/failure counts and percentile latencies
// - Backpressure drops and queue depth
// - Adaptive controller phase, when the run uses adaptive mode
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#06B6D4")

	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")

	colorText       = lipgloss.Color("#E5E7EB")
	colorTextMuted  = lipgloss.Color("#9CA3AF")
	colorTextDim    = lipgloss.Color("#6B7280")
	colorBorder     = lipgloss.Color("#374151")
)

// =============================================================================
// Text styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().Foreground(colorTextMuted)
	dimStyle   = lipgloss.NewStyle().Foreground(colorTextDim)

	// productNameStyle renders the "vajrapulse" token at the head of the
	// header bar. headerStyle sets a colorPrimary background, so this
	// stays on colorText rather than colorPrimary to remain legible.
	productNameStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true).Underline(true)

	// taskLabelStyle renders the "Task:" segment of the header in the
	// header bar's secondary accent, distinct from the plain text around
	// it but still legible against the colorPrimary background.
	taskLabelStyle = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)

	statusOK      = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	statusWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	statusError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	statusInfo    = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
)

// =============================================================================
// Layout
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder).
				MarginTop(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Values
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)

	valueGoodStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	valueBadStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	valueWarnStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)

	labelStyle     = lipgloss.NewStyle().Foreground(colorTextMuted).Width(20)
	labelWideStyle = lipgloss.NewStyle().Foreground(colorTextMuted).Width(28)

	// unitStyle dims a value's trailing unit (req/s, ms, etc.) so the
	// number itself carries the visual weight.
	unitStyle = lipgloss.NewStyle().Foreground(colorTextDim)
)

// =============================================================================
// Progress bar
// =============================================================================

var (
	progressBarStyle      = lipgloss.NewStyle().Foreground(colorPrimary)
	progressBarEmptyStyle = lipgloss.NewStyle().Foreground(colorBorder)
	progressPercentStyle  = lipgloss.NewStyle().Foreground(colorText).Bold(true)
)

// =============================================================================
// Backpressure status
// =============================================================================

// BackpressureStatus summarizes how much of a run's offered load is being
// shed, derived from the combined drop+reject ratio Model.DropRate
// computes from the Aggregated Snapshot.
type BackpressureStatus int

const (
	// BackpressureNominal means the engine is accepting everything it's
	// offered; no iterations are being dropped or rejected.
	BackpressureNominal BackpressureStatus = iota
	// BackpressureShedding means some iterations are being dropped or
	// rejected, but below the saturation threshold.
	BackpressureShedding
	// BackpressureSaturated means the shed ratio has crossed 10%, the
	// point at which the engine is structurally unable to keep up with
	// the pattern's target rate.
	BackpressureSaturated
)

const backpressureSaturationThreshold = 0.10

// GetBackpressureStatus classifies a drop+reject ratio into a
// BackpressureStatus tier.
func GetBackpressureStatus(dropRate float64) BackpressureStatus {
	switch {
	case dropRate > backpressureSaturationThreshold:
		return BackpressureSaturated
	case dropRate > 0:
		return BackpressureShedding
	default:
		return BackpressureNominal
	}
}

// GetBackpressureLabel renders a styled status dot plus label for the
// header bar.
func GetBackpressureLabel(dropRate float64) string {
	switch GetBackpressureStatus(dropRate) {
	case BackpressureSaturated:
		return statusError.Render("● backpressure (saturated)")
	case BackpressureShedding:
		return statusWarning.Render("● backpressure (shedding)")
	default:
		return statusOK.Render("● backpressure (nominal)")
	}
}

// GetBackpressureStyle returns the style matching a BackpressureStatus,
// for callers that want to color something other than the default label.
func GetBackpressureStyle(status BackpressureStatus) lipgloss.Style {
	switch status {
	case BackpressureSaturated:
		return statusError
	case BackpressureShedding:
		return statusWarning
	default:
		return statusOK
	}
}

// GetErrorRateStyle returns a style based on a task's failure ratio.
func GetErrorRateStyle(errorRate float64) lipgloss.Style {
	switch {
	case errorRate == 0:
		return valueGoodStyle
	case errorRate < 0.01:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// =============================================================================
// Render helpers
// =============================================================================

// RenderKeyValue renders a label-value pair using the standard label
// width.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderKeyValueWide renders a label-value pair using the wide label
// width, for labels that don't fit the standard 20 columns (e.g.
// "Consecutive stable intervals").
func RenderKeyValueWide(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderValueWithUnit renders a numeric value with a dimmed unit suffix,
// e.g. "250" + "req/s".
func RenderValueWithUnit(value, unit string) string {
	return valueStyle.Render(value) + " " + unitStyle.Render(unit)
}

// RenderProgressBar renders a filled/empty bar plus a percentage label.
// The bar's fill is clamped to [0, width] and width to a minimum of 10
// columns; the percentage label shows progress unclamped.
func RenderProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := progressBarStyle.Render(repeatChar('█', filled)) +
		progressBarEmptyStyle.Render(repeatChar('░', width-filled))

	percent := progressPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))

	return bar + percent
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
