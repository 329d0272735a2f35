package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries an updated snapshot, for callers that push updates
// instead of letting the model pull them on tick.
type StatsMsg struct {
	Snapshot aggregator.Snapshot
	Adaptive *adaptive.State
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Sources
// =============================================================================

// StatsSource provides the current aggregated snapshot for a run.
// runner.Runner implements it via Snapshot().
type StatsSource interface {
	Snapshot() aggregator.Snapshot
}

// EngineStateSource optionally reports the engine's lifecycle state.
type EngineStateSource interface {
	State() engine.State
}

// AdaptiveSource optionally reports the adaptive controller's phase
// state, when the run uses adaptive mode.
type AdaptiveSource interface {
	Snapshot() adaptive.State
}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	taskType    string
	targetRate  float64
	metricsAddr string

	// Current state
	snap          aggregator.Snapshot
	haveSnap      bool
	engineState   engine.State
	adaptiveState *adaptive.State
	startTime     time.Time
	lastUpdate    time.Time
	showDetail    bool
	paused        bool

	// Display options
	width  int
	height int

	statsSource    StatsSource
	engineSource   EngineStateSource
	adaptiveSource AdaptiveSource

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	TaskType       string
	TargetRate     float64
	MetricsAddr    string
	StatsSource    StatsSource
	EngineSource   EngineStateSource
	AdaptiveSource AdaptiveSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		taskType:       cfg.TaskType,
		targetRate:     cfg.TargetRate,
		metricsAddr:    cfg.MetricsAddr,
		statsSource:    cfg.StatsSource,
		engineSource:   cfg.EngineSource,
		adaptiveSource: cfg.AdaptiveSource,
		startTime:      time.Now(),
		lastUpdate:     time.Now(),
		width:          80,
		height:         24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init starts the dashboard's refresh ticker. Bubble Tea calls this once
// before the first Update.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages. Pausing only affects what's displayed, never
// the underlying Engine or Runner, which keep going regardless of
// whether anyone is watching. Quitting returns tea.Quit; cmd/vajrapulse
// cancels the run when the dashboard program exits.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.showDetail = !m.showDetail
			return m, nil
		case "p":
			m.paused = !m.paused
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.paused {
			return m, tickCmd()
		}
		if m.statsSource != nil {
			m.snap = m.statsSource.Snapshot()
			m.haveSnap = true
		}
		if m.engineSource != nil {
			m.engineState = m.engineSource.State()
		}
		if m.adaptiveSource != nil {
			s := m.adaptiveSource.Snapshot()
			m.adaptiveState = &s
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatsMsg:
		if m.paused {
			return m, nil
		}
		m.snap = msg.Snapshot
		m.haveSnap = true
		if msg.Adaptive != nil {
			m.adaptiveState = msg.Adaptive
		}
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickRefreshInterval is the dashboard's own redraw cadence. It's
// decoupled from runner.Reporter's interval (which governs exporter
// output, not the TUI) so the display stays smooth even when a run is
// configured to export stats only once a minute.
const tickRefreshInterval = 500 * time.Millisecond

// tickCmd returns a command that sends a tick after tickRefreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickRefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// SuccessRate returns the observed successful-iterations-per-second rate
// over the run's elapsed wall clock.
func (m Model) SuccessRate() float64 {
	if !m.haveSnap || m.snap.ElapsedMillis <= 0 {
		return 0
	}
	return float64(m.snap.Success) / (float64(m.snap.ElapsedMillis) / 1000)
}

// FailureRate is the failed-iterations-per-second analogue of SuccessRate.
func (m Model) FailureRate() float64 {
	if !m.haveSnap || m.snap.ElapsedMillis <= 0 {
		return 0
	}
	return float64(m.snap.Failure) / (float64(m.snap.ElapsedMillis) / 1000)
}

// DropRate returns the fraction of all accepted-plus-shed iterations
// (Total + Dropped + Rejected) that were dropped or rejected by
// backpressure.
func (m Model) DropRate() float64 {
	if !m.haveSnap {
		return 0
	}
	denom := m.snap.Total + m.snap.Dropped + m.snap.Rejected
	if denom == 0 {
		return 0
	}
	return float64(m.snap.Dropped+m.snap.Rejected) / float64(denom)
}

// FailureRatio returns the fraction of completed iterations that failed.
func (m Model) FailureRatio() float64 {
	if !m.haveSnap || m.snap.Total == 0 {
		return 0
	}
	return float64(m.snap.Failure) / float64(m.snap.Total)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a snapshot update to the TUI.
func SendStats(p *tea.Program, snap aggregator.Snapshot) {
	if p != nil {
		p.Send(StatsMsg{Snapshot: snap})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================
//
// These render plain numeric strings; view.go decides which carry a
// color (GetErrorRateStyle), a unit suffix (RenderValueWithUnit), or a
// bar (RenderProgressBar) rather than baking presentation into the
// numbers themselves.

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a count with K/M suffixes, for compact inline
// display (e.g. inside renderStatRow).
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatNumberWithCommas formats an exact count with thousand
// separators, for the detail view (m.showDetail) where the abbreviated
// K/M form of formatNumber loses precision an operator may want.
func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "0"
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatNanos formats a nanosecond latency value as milliseconds.
func formatNanos(ns float64) string {
	ms := ns / 1e6
	if ms < 1.0 {
		return fmt.Sprintf("%.2f ms", ms)
	}
	return fmt.Sprintf("%.1f ms", ms)
}

// formatSuccessRate formats a rate with a + prefix, falling back to a
// "calculating..."/"(stalled)" label while the run has no throughput yet.
func formatSuccessRate(rate float64, count int64) string {
	if rate >= 1000 {
		return fmt.Sprintf("+%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("+%.0f/s", rate)
	}
	if rate > 0 {
		return fmt.Sprintf("+%.1f/s", rate)
	}
	if count > 0 {
		return "(calculating...)"
	}
	return "(stalled)"
}

// formatPercent formats a ratio in [0,1] as a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
