package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/homeroom/internal/clock"
	"github.com/ldi/homeroom/internal/store"
	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

func newTimerFixture(t *testing.T) (TimerModel, *tracker.Tracker, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	tr := tracker.New(store.NewMemory(), clk, nil, "fam1")
	return NewTimerModel(tr), tr, clk
}

func TestTimerViewIdle(t *testing.T) {
	m, _, _ := newTimerFixture(t)
	if !strings.Contains(m.View(), "No session is running") {
		t.Errorf("expected idle message, got %q", m.View())
	}
}

func TestTimerSessionSync(t *testing.T) {
	m, tr, clk := newTimerFixture(t)
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	clk.Advance(5 * time.Minute)

	// Drive the sync command by hand and feed its message back in
	msg := m.syncCmd(false)()
	model, _ := m.Update(msg)
	m = model.(TimerModel)

	if m.session == nil {
		t.Fatal("expected session after sync")
	}
	if m.session.RemainingSeconds != 20*60 {
		t.Errorf("expected 1200 remaining, got %d", m.session.RemainingSeconds)
	}

	view := m.View()
	if !strings.Contains(view, "20:00") {
		t.Errorf("expected 20:00 in view, got %q", view)
	}
	if !strings.Contains(view, "Focus") {
		t.Errorf("expected Focus label in view")
	}
	if !strings.Contains(view, "general") {
		t.Errorf("expected subject in view")
	}
}

func TestTimerExpiryStopsSession(t *testing.T) {
	m, tr, clk := newTimerFixture(t)
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	clk.Advance(25 * time.Minute)

	msg := m.syncCmd(false)()
	model, cmd := m.Update(msg)
	m = model.(TimerModel)
	if cmd == nil {
		t.Fatal("expected a stop command at expiry")
	}

	// Run the stop command; it records the session and returns nil
	model, _ = m.Update(cmd())
	m = model.(TimerModel)
	if !m.done {
		t.Error("expected model done after stop")
	}

	history, err := tr.SessionHistory(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 recorded session, got %d", len(history))
	}
}

func TestTimerCheckInKey(t *testing.T) {
	m, tr, _ := newTimerFixture(t)
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	model, _ := m.Update(m.syncCmd(false)())
	m = model.(TimerModel)

	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}
	model, cmd := m.Update(keyMsg)
	m = model.(TimerModel)
	if cmd == nil {
		t.Fatal("expected a check-in command")
	}
	model, _ = m.Update(cmd())
	m = model.(TimerModel)

	if len(m.session.Checkins) != 1 || m.session.Checkins[0].Mood != models.MoodDistracted {
		t.Errorf("expected a distracted check-in, got %+v", m.session.Checkins)
	}
	if !strings.Contains(m.View(), "distracted") {
		t.Errorf("expected last check-in in view")
	}
}

func TestTimerHeartbeatPersists(t *testing.T) {
	m, tr, clk := newTimerFixture(t)
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	model, _ := m.Update(m.syncCmd(false)())
	m = model.(TimerModel)

	clk.Advance(2 * time.Minute)
	model, _ = m.Update(m.syncCmd(true)())
	m = model.(TimerModel)

	as, err := tr.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	if !as.LastTickAt.Equal(clk.Now()) {
		t.Error("expected heartbeat persisted")
	}
	if as.DurationSeconds != 23*60 {
		t.Errorf("expected persisted remaining 1380, got %d", as.DurationSeconds)
	}

	// Progress still measures against the original length
	if m.totalSeconds != 25*60 {
		t.Errorf("expected total 1500, got %d", m.totalSeconds)
	}
}

func TestTimerQuitKey(t *testing.T) {
	m, _, _ := newTimerFixture(t)

	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
	model, cmd := m.Update(keyMsg)
	m = model.(TimerModel)
	if !m.quitting {
		t.Error("expected quitting after 'q'")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if m.View() != "" {
		t.Errorf("expected empty view when quitting, got %q", m.View())
	}
}
