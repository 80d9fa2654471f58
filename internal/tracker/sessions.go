package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/internal/store"
	"github.com/ldi/homeroom/pkg/models"
)

// StartSession begins a focus or break session. Any session already running
// is stopped first and its partial duration recorded; no time is silently
// discarded. If taskID is given the task moves to in_progress and its subject
// overrides any passed subjectID.
func (tr *Tracker) StartSession(ctx context.Context, typ models.SessionType, durationMinutes int, taskID, subjectID string) (*models.ActiveSession, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("session duration must be positive, got %d", durationMinutes)
	}

	if taskID != "" {
		t, err := tr.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		// Reject up front so a doomed start doesn't tear down the
		// session currently running.
		if err := validateStatusTransition(t.Status, models.TaskStatusInProgress); err != nil {
			return nil, err
		}
		subjectID = t.SubjectID
	} else if subjectID == "" {
		subjectID = GeneralSubjectID
	}

	// Stop-then-start saga. A crash after the stop leaves no active
	// session, which the next start heals; there is no window with two.
	if _, err := tr.StopSession(ctx); err != nil {
		return nil, err
	}

	now := tr.clock.Now()
	as := &models.ActiveSession{
		ID:               uuid.New().String(),
		TaskID:           taskID,
		SubjectID:        subjectID,
		StartedAt:        now,
		LastTickAt:       now,
		DurationSeconds:  durationMinutes * 60,
		Type:             typ,
		Checkins:         []models.CheckIn{},
		RemainingSeconds: durationMinutes * 60,
	}
	if err := tr.putDoc(ctx, collActive, activeDocID, as); err != nil {
		return nil, err
	}

	if taskID != "" {
		if _, err := tr.transitionTask(ctx, taskID, models.TaskStatusInProgress, nil); err != nil {
			return nil, err
		}
	}

	title := "Study Session Started"
	body := "Started studying"
	if typ == models.SessionTypeBreak {
		title = "Break Started"
		body = "Taking a break"
	}
	tr.emit(ctx, notify.Event{
		Kind:  notify.KindSessionStarted,
		Title: title,
		Body:  body,
		Data:  map[string]string{"type": string(typ)},
	})

	return as, nil
}

// StopSession converts the active session into an immutable history record
// and deletes the singleton. Returns (nil, nil) when nothing is running.
// The recorded duration is wall-clock elapsed since start, not the countdown.
func (tr *Tracker) StopSession(ctx context.Context) (*models.Session, error) {
	as, err := tr.getActive(ctx)
	if err != nil {
		return nil, err
	}
	if as == nil {
		return nil, nil
	}

	now := tr.clock.Now()
	session := &models.Session{
		ID:         uuid.New().String(),
		TaskID:     as.TaskID,
		SubjectID:  as.SubjectID,
		StartedAt:  as.StartedAt,
		EndedAt:    now,
		DurationMs: now.Sub(as.StartedAt).Milliseconds(),
		Type:       as.Type,
		Checkins:   as.Checkins,
	}
	if err := tr.putDoc(ctx, collSessions, session.ID, session); err != nil {
		return nil, err
	}

	err = tr.store.Delete(ctx, tr.namespace, collActive, activeDocID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if session.Type == models.SessionTypeFocus {
		minutes := int(math.Round(float64(session.DurationMs) / 60000))
		tr.emit(ctx, notify.Event{
			Kind:  notify.KindSessionCompleted,
			Title: "Study Session Complete",
			Body:  fmt.Sprintf("Completed %d minutes of focused work", minutes),
			Data:  map[string]string{"duration_mins": strconv.Itoa(minutes)},
		})
	}

	return session, nil
}

// ActiveSession returns the running session with remaining time recomputed
// from the persisted heartbeat, or (nil, nil) when nothing is running.
func (tr *Tracker) ActiveSession(ctx context.Context) (*models.ActiveSession, error) {
	as, err := tr.getActive(ctx)
	if err != nil || as == nil {
		return nil, err
	}
	as.RemainingSeconds = remainingSeconds(as, tr.clock.Now())
	return as, nil
}

// Tick persists the current remaining time and advances the heartbeat so
// later reconciliations measure elapsed time from now.
func (tr *Tracker) Tick(ctx context.Context) (*models.ActiveSession, error) {
	as, err := tr.getActive(ctx)
	if err != nil || as == nil {
		return nil, err
	}

	now := tr.clock.Now()
	as.DurationSeconds = remainingSeconds(as, now)
	as.LastTickAt = now
	as.RemainingSeconds = as.DurationSeconds

	if err := tr.putDoc(ctx, collActive, activeDocID, as); err != nil {
		return nil, err
	}
	return as, nil
}

// AddCheckIn appends a mood report to the active session. Check-ins are
// advisory: with no session running this is a no-op returning (nil, nil).
func (tr *Tracker) AddCheckIn(ctx context.Context, mood models.Mood) (*models.ActiveSession, error) {
	as, err := tr.getActive(ctx)
	if err != nil || as == nil {
		return nil, err
	}

	now := tr.clock.Now()
	as.Checkins = append(as.Checkins, models.CheckIn{At: now, Mood: mood})
	if err := tr.putDoc(ctx, collActive, activeDocID, as); err != nil {
		return nil, err
	}

	if mood == models.MoodNeedHelp {
		tr.emit(ctx, notify.Event{
			Kind:  notify.KindHelpNeeded,
			Title: "Help Needed",
			Body:  "Needs assistance with homework",
			Data:  map[string]string{"session_id": as.ID},
		})
	}

	as.RemainingSeconds = remainingSeconds(as, now)
	return as, nil
}

// SessionHistory returns finished sessions, most recent first. limit <= 0
// defaults to 50.
func (tr *Tracker) SessionHistory(ctx context.Context, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	sessions, err := tr.allSessions(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[j].StartedAt.Before(sessions[i].StartedAt) })
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (tr *Tracker) allSessions(ctx context.Context) ([]*models.Session, error) {
	records, err := tr.store.List(ctx, tr.namespace, collSessions)
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(records))
	for _, r := range records {
		var s models.Session
		if err := json.Unmarshal(r.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", r.ID, err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

// LiveStatus is the parent dashboard view: what the student is doing and
// against which task.
func (tr *Tracker) LiveStatus(ctx context.Context) (*models.LiveStatus, error) {
	as, err := tr.getActive(ctx)
	if err != nil {
		return nil, err
	}

	if as == nil {
		return &models.LiveStatus{
			StudentState: "Idle",
			LastActivity: tr.clock.Now().Format("15:04"),
		}, nil
	}

	state := "Focusing"
	if as.Type == models.SessionTypeBreak {
		state = "On a break"
	}

	activeTask := "General Study"
	if as.TaskID != "" {
		t, err := tr.GetTask(ctx, as.TaskID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			activeTask = t.Title
		}
	}

	return &models.LiveStatus{
		StudentState: state,
		LastActivity: as.StartedAt.Format("15:04"),
		ActiveTask:   activeTask,
	}, nil
}

// SubscribeActiveSession invokes fn with the reconciled active session on
// every change, and with nil when the session ends. fn fires immediately
// with the current state.
func (tr *Tracker) SubscribeActiveSession(fn func(*models.ActiveSession)) (cancel func()) {
	return tr.store.Subscribe(tr.namespace, collActive, activeDocID, func(data []byte) {
		if data == nil {
			fn(nil)
			return
		}
		var as models.ActiveSession
		if err := json.Unmarshal(data, &as); err != nil {
			return
		}
		if as.LastTickAt.IsZero() {
			as.LastTickAt = as.StartedAt
		}
		as.RemainingSeconds = remainingSeconds(&as, tr.clock.Now())
		fn(&as)
	})
}

// CheckInactivity alerts the parent when the active session's heartbeat has
// gone stale for longer than the configured threshold. The tracker keeps no
// alarm state; the caller's schedule bounds how often the alert repeats.
// Returns whether an alert was sent.
func (tr *Tracker) CheckInactivity(ctx context.Context) (bool, error) {
	as, err := tr.getActive(ctx)
	if err != nil || as == nil {
		return false, err
	}

	settings, err := tr.Settings(ctx)
	if err != nil {
		return false, err
	}
	mins := settings.InactivityMins
	if mins <= 0 {
		mins = 15
	}

	if tr.clock.Now().Sub(as.LastTickAt) <= time.Duration(mins)*time.Minute {
		return false, nil
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindInactivity,
		Title: "Inactivity Detected",
		Body:  fmt.Sprintf("Student has been inactive for more than %d minutes", mins),
		Data:  map[string]string{"session_id": as.ID},
	})
	return true, nil
}

// CheckStartWindow reminds the student to begin when the daily study window
// is open and no session is running. Returns whether a reminder was sent.
func (tr *Tracker) CheckStartWindow(ctx context.Context) (bool, error) {
	settings, err := tr.Settings(ctx)
	if err != nil {
		return false, err
	}
	if settings.StartWindow == "" {
		return false, nil
	}
	window, err := time.Parse("15:04", settings.StartWindow)
	if err != nil {
		return false, fmt.Errorf("invalid start window %q: %w", settings.StartWindow, err)
	}

	now := tr.clock.Now()
	opens := time.Date(now.Year(), now.Month(), now.Day(), window.Hour(), window.Minute(), 0, 0, now.Location())
	if now.Before(opens) || !now.Before(opens.Add(time.Hour)) {
		return false, nil
	}

	as, err := tr.getActive(ctx)
	if err != nil {
		return false, err
	}
	if as != nil {
		return false, nil
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindStartReminder,
		Title: "Time to Start!",
		Body:  "Your study window is open. Ready to focus?",
	})
	return true, nil
}

func (tr *Tracker) getActive(ctx context.Context) (*models.ActiveSession, error) {
	var as models.ActiveSession
	found, err := tr.getDoc(ctx, collActive, activeDocID, &as)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if as.LastTickAt.IsZero() {
		as.LastTickAt = as.StartedAt
	}
	return &as, nil
}

// remainingSeconds recomputes the countdown from the persisted heartbeat.
// Never trusts a client-supplied elapsed time, never goes negative.
func remainingSeconds(as *models.ActiveSession, now time.Time) int {
	elapsed := now.Sub(as.LastTickAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := as.DurationSeconds - int(elapsed/time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
