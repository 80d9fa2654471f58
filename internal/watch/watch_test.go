package watch

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/homeroom/internal/clock"
	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/internal/store"
	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

type recordingNotifier struct {
	kinds []notify.Kind
}

func (r *recordingNotifier) Send(ctx context.Context, ev notify.Event) {
	r.kinds = append(r.kinds, ev.Kind)
}

func newWatcher() (*Watcher, *tracker.Tracker, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	tr := tracker.New(store.NewMemory(), clk, nil, "fam1")
	return New(tr, nil), tr, clk
}

func TestSweepIdle(t *testing.T) {
	w, _, _ := newWatcher()
	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("Expected no error on idle sweep, got %v", err)
	}
}

func TestSweepLeavesRunningSession(t *testing.T) {
	w, tr, clk := newWatcher()
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	clk.Advance(10 * time.Minute)

	if err := w.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	as, err := tr.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("Failed to read active session: %v", err)
	}
	if as == nil {
		t.Fatal("Expected running session to survive the sweep")
	}
}

func TestSweepStopsExpiredSession(t *testing.T) {
	w, tr, clk := newWatcher()
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	clk.Advance(26 * time.Minute)

	if err := w.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	as, err := tr.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("Failed to read active session: %v", err)
	}
	if as != nil {
		t.Fatal("Expected expired session to be stopped")
	}

	history, err := tr.SessionHistory(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 recorded session, got %d", len(history))
	}
	if history[0].DurationMs != 26*60*1000 {
		t.Errorf("Expected full wall-clock duration, got %d", history[0].DurationMs)
	}
}

func TestSweepAutoBreak(t *testing.T) {
	w, tr, clk := newWatcher()
	w.AutoBreak = true
	ctx := context.Background()

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 25, "", ""); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	clk.Advance(25 * time.Minute)

	if err := w.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	as, err := tr.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("Failed to read active session: %v", err)
	}
	if as == nil || as.Type != models.SessionTypeBreak {
		t.Fatalf("Expected a break to follow the expired focus session, got %+v", as)
	}
	if as.DurationSeconds != 5*60 {
		t.Errorf("Expected default 5 minute break, got %d seconds", as.DurationSeconds)
	}

	// The break itself expires without spawning another session
	clk.Advance(6 * time.Minute)
	if err := w.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	as, err = tr.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("Failed to read active session: %v", err)
	}
	if as != nil {
		t.Fatal("Expected no session after the break expired")
	}
}

func TestCheckAlertsOnStaleHeartbeat(t *testing.T) {
	// Morning start so the afternoon study window stays closed throughout.
	clk := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	n := &recordingNotifier{}
	tr := tracker.New(store.NewMemory(), clk, n, "fam1")
	w := New(tr, nil)
	ctx := context.Background()

	if err := w.Check(ctx); err != nil {
		t.Fatalf("Idle check failed: %v", err)
	}
	if len(n.kinds) != 0 {
		t.Fatalf("Expected no events from an idle check, got %v", n.kinds)
	}

	if _, err := tr.StartSession(ctx, models.SessionTypeFocus, 50, "", ""); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	clk.Advance(20 * time.Minute)

	if err := w.Check(ctx); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(n.kinds) != 2 || n.kinds[1] != notify.KindInactivity {
		t.Fatalf("Expected an inactivity alert after the start event, got %v", n.kinds)
	}
}

func TestCheckRemindsInStartWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 15, 45, 0, 0, time.UTC))
	n := &recordingNotifier{}
	tr := tracker.New(store.NewMemory(), clk, n, "fam1")
	w := New(tr, nil)

	if err := w.Check(context.Background()); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(n.kinds) != 1 || n.kinds[0] != notify.KindStartReminder {
		t.Fatalf("Expected a start reminder, got %v", n.kinds)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _ := newWatcher()
	w.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
