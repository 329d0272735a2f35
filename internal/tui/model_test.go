package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
)

type fakeStatsSource struct {
	snap aggregator.Snapshot
}

func (f fakeStatsSource) Snapshot() aggregator.Snapshot { return f.snap }

type fakeEngineSource struct {
	state engine.State
}

func (f fakeEngineSource) State() engine.State { return f.state }

type fakeAdaptiveSource struct {
	state adaptive.State
}

func (f fakeAdaptiveSource) Snapshot() adaptive.State { return f.state }

func TestNew_DefaultsSizeAndStartTime(t *testing.T) {
	m := New(Config{TaskType: "echo.noop", TargetRate: 100})
	if m.width != 80 || m.height != 24 {
		t.Errorf("default size = %dx%d, want 80x24", m.width, m.height)
	}
	if m.haveSnap {
		t.Error("model should have no snapshot before the first tick")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	m := New(Config{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	mm := updated.(Model)
	if mm.width != 120 || mm.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", mm.width, mm.height)
	}
}

func TestModel_Update_Quit(t *testing.T) {
	m := New(Config{})
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	mm := updated.(Model)
	if !mm.quitting {
		t.Error("esc should set quitting")
	}
	if cmd == nil {
		t.Error("esc should return tea.Quit command")
	}
}

func TestModel_Update_StatsMsgAndTick(t *testing.T) {
	snap := aggregator.Snapshot{Total: 100, Success: 90, Failure: 10, ElapsedMillis: 1000}
	src := fakeStatsSource{snap: snap}
	m := New(Config{StatsSource: src})

	updated, _ := m.Update(TickMsg(time.Now()))
	mm := updated.(Model)
	if !mm.haveSnap {
		t.Fatal("tick should populate the snapshot")
	}
	if mm.snap.Success != 90 {
		t.Errorf("Success = %d, want 90", mm.snap.Success)
	}

	updated2, _ := mm.Update(StatsMsg{Snapshot: aggregator.Snapshot{Success: 5}})
	mm2 := updated2.(Model)
	if mm2.snap.Success != 5 {
		t.Errorf("StatsMsg should replace the snapshot, got Success=%d", mm2.snap.Success)
	}
}

func TestModel_Update_EngineAndAdaptiveSources(t *testing.T) {
	m := New(Config{
		EngineSource:   fakeEngineSource{state: engine.StateRunning},
		AdaptiveSource: fakeAdaptiveSource{state: adaptive.State{Phase: adaptive.PhaseSustain, CurrentRate: 42}},
	})
	updated, _ := m.Update(TickMsg(time.Now()))
	mm := updated.(Model)
	if mm.engineState != engine.StateRunning {
		t.Errorf("engineState = %v, want StateRunning", mm.engineState)
	}
	if mm.adaptiveState == nil || mm.adaptiveState.Phase != adaptive.PhaseSustain {
		t.Error("adaptiveState should reflect the source's snapshot")
	}
}

func TestModel_SuccessRate(t *testing.T) {
	m := New(Config{})
	if rate := m.SuccessRate(); rate != 0 {
		t.Errorf("SuccessRate before any snapshot = %v, want 0", rate)
	}
	m.snap = aggregator.Snapshot{Success: 200, ElapsedMillis: 2000}
	m.haveSnap = true
	if rate := m.SuccessRate(); rate != 100 {
		t.Errorf("SuccessRate = %v, want 100", rate)
	}
}

func TestModel_DropRate(t *testing.T) {
	m := New(Config{})
	m.snap = aggregator.Snapshot{Total: 90, Dropped: 10}
	m.haveSnap = true
	if rate := m.DropRate(); rate != 0.1 {
		t.Errorf("DropRate = %v, want 0.1", rate)
	}
}

func TestModel_FailureRatio(t *testing.T) {
	m := New(Config{})
	m.snap = aggregator.Snapshot{Total: 100, Failure: 25}
	m.haveSnap = true
	if rate := m.FailureRatio(); rate != 0.25 {
		t.Errorf("FailureRatio = %v, want 0.25", rate)
	}
}

func TestModel_View_QuittingIsEmpty(t *testing.T) {
	m := New(Config{})
	m.quitting = true
	if m.View() != "" {
		t.Error("View() while quitting should be empty")
	}
}

func TestModel_View_RendersWithoutPanic(t *testing.T) {
	m := New(Config{TaskType: "echo.noop", TargetRate: 50})
	m.haveSnap = true
	m.snap = aggregator.Snapshot{
		Total: 10, Success: 9, Failure: 1, ElapsedMillis: 1000,
		SuccessPercentiles: map[float64]float64{0.5: 1_000_000, 0.99: 5_000_000},
	}
	if out := m.View(); out == "" {
		t.Error("View() with a snapshot should not be empty")
	}
}

func TestFormatDuration(t *testing.T) {
	got := formatDuration(90*time.Second + 5*time.Minute)
	if got != "00:06:30" {
		t.Errorf("formatDuration = %q, want 00:06:30", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{500, "500"},
		{1500, "1.5K"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSuccessRate_Stalled(t *testing.T) {
	if got := formatSuccessRate(0, 0); got != "(stalled)" {
		t.Errorf("formatSuccessRate(0,0) = %q, want (stalled)", got)
	}
	if got := formatSuccessRate(0, 5); got != "(calculating...)" {
		t.Errorf("formatSuccessRate(0,5) = %q, want (calculating...)", got)
	}
}

func TestFormatNanos(t *testing.T) {
	if got := formatNanos(500_000); got != "0.50 ms" {
		t.Errorf("formatNanos(500000) = %q, want 0.50 ms", got)
	}
	if got := formatNanos(2_500_000); got != "2.5 ms" {
		t.Errorf("formatNanos(2500000) = %q, want 2.5 ms", got)
	}
}

func TestFormatNumberWithCommas(t *testing.T) {
	if got := formatNumberWithCommas(1234567); got != "1,234,567" {
		t.Errorf("formatNumberWithCommas = %q, want 1,234,567", got)
	}
	if got := formatNumberWithCommas(-5); got != "0" {
		t.Errorf("formatNumberWithCommas(-5) = %q, want 0", got)
	}
}

func TestModel_Update_PauseFreezesSnapshot(t *testing.T) {
	src := fakeStatsSource{snap: aggregator.Snapshot{Total: 1}}
	m := New(Config{StatsSource: src})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	mm := updated.(Model)
	if !mm.paused {
		t.Fatal("p should toggle paused on")
	}

	updated2, _ := mm.Update(TickMsg(time.Now()))
	mm2 := updated2.(Model)
	if mm2.haveSnap {
		t.Error("tick while paused should not populate the snapshot")
	}

	updated3, _ := mm2.Update(StatsMsg{Snapshot: aggregator.Snapshot{Total: 2}})
	mm3 := updated3.(Model)
	if mm3.haveSnap {
		t.Error("StatsMsg while paused should be ignored")
	}
}

func TestModel_Update_ToggleDetail(t *testing.T) {
	m := New(Config{})
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	mm := updated.(Model)
	if !mm.showDetail {
		t.Fatal("d should toggle showDetail on")
	}
}

func TestSendStatsAndQuit_NilProgramIsSafe(t *testing.T) {
	SendStats(nil, aggregator.Snapshot{})
	SendQuit(nil)
}
