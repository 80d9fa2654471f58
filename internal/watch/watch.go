// Package watch runs the timer-end handler. The tracker itself never stops
// an expired session; a watcher polls for expiry and drives the stop, so a
// session outlives any one client but not the daemon.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

type Watcher struct {
	tracker *tracker.Tracker
	logger  *slog.Logger

	// PollInterval defaults to one second.
	PollInterval time.Duration

	// CheckInterval is the slower cadence for the inactivity and
	// start-window checks. Defaults to five minutes.
	CheckInterval time.Duration

	// AutoBreak starts a break when a focus session runs out.
	AutoBreak bool
}

func New(tr *tracker.Tracker, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		tracker:       tr,
		logger:        logger,
		PollInterval:  time.Second,
		CheckInterval: 5 * time.Minute,
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()
	checks := time.NewTicker(w.CheckInterval)
	defer checks.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Warn("sweep failed", "error", err)
			}
		case <-checks.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Warn("check failed", "error", err)
			}
		}
	}
}

// Check runs the slow-cadence reminders: a stale-heartbeat alert for the
// running session and a start reminder while the study window is open with
// nothing running.
func (w *Watcher) Check(ctx context.Context) error {
	stale, err := w.tracker.CheckInactivity(ctx)
	if err != nil {
		return err
	}
	if stale {
		w.logger.Info("stale heartbeat, parent alerted")
	}

	reminded, err := w.tracker.CheckStartWindow(ctx)
	if err != nil {
		return err
	}
	if reminded {
		w.logger.Info("start window reminder sent")
	}
	return nil
}

// Sweep stops the active session if its countdown has run out. Returns the
// tracker error, if any; an idle tracker is not an error.
func (w *Watcher) Sweep(ctx context.Context) error {
	as, err := w.tracker.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if as == nil || as.RemainingSeconds > 0 {
		return nil
	}

	session, err := w.tracker.StopSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	w.logger.Info("session expired",
		"session_id", session.ID,
		"type", session.Type,
		"duration_ms", session.DurationMs)

	if w.AutoBreak && session.Type == models.SessionTypeFocus {
		settings, err := w.tracker.Settings(ctx)
		if err != nil {
			return err
		}
		if _, err := w.tracker.StartSession(ctx, models.SessionTypeBreak, settings.PomodoroBreakMins, "", ""); err != nil {
			return err
		}
	}
	return nil
}
