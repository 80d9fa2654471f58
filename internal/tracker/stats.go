package tracker

import (
	"context"
	"math"

	"github.com/ldi/homeroom/pkg/models"
)

const streakLookbackDays = 30

func defaultSettings() *models.Settings {
	return &models.Settings{
		DailyGoalMinutes:  90,
		DailyGoalTasks:    3,
		PomodoroFocusMins: 25,
		PomodoroBreakMins: 5,
		InactivityMins:    15,
		StartWindow:       "15:30",
	}
}

// Settings returns the family settings, falling back to defaults when none
// have been saved yet.
func (tr *Tracker) Settings(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	found, err := tr.getDoc(ctx, collSettings, settingsDocID, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultSettings(), nil
	}
	return &s, nil
}

func (tr *Tracker) UpdateSettings(ctx context.Context, s *models.Settings) error {
	return tr.putDoc(ctx, collSettings, settingsDocID, s)
}

// DailyGoal is derived from settings.
func (tr *Tracker) DailyGoal(ctx context.Context) (*models.DailyGoal, error) {
	s, err := tr.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DailyGoal{Minutes: s.DailyGoalMinutes, Tasks: s.DailyGoalTasks}, nil
}

// DailyStats computes today's focused minutes, tasks completed today and the
// current streak, all in the viewer's local calendar day.
func (tr *Tracker) DailyStats(ctx context.Context) (*models.DailyStats, error) {
	now := tr.clock.Now()
	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Aggregation reads every record; a display limit here would quietly
	// shorten the streak once the history outgrows it.
	sessions, err := tr.allSessions(ctx)
	if err != nil {
		return nil, err
	}

	var focusedMs int64
	sessionDays := make(map[string]bool)
	for _, s := range sessions {
		local := s.StartedAt.In(now.Location())
		sessionDays[local.Format("2006-01-02")] = true
		if s.Type == models.SessionTypeFocus && !local.Before(dayStart) && local.Before(dayEnd) {
			focusedMs += s.DurationMs
		}
	}

	tasks, err := tr.allTasks(ctx)
	if err != nil {
		return nil, err
	}
	completed := 0
	for _, t := range tasks {
		if t.Status != models.TaskStatusDone || t.CompletedAt == nil {
			continue
		}
		local := t.CompletedAt.In(now.Location())
		if !local.Before(dayStart) && local.Before(dayEnd) {
			completed++
		}
	}

	// Streak: walk backward day by day. A quiet today doesn't end the
	// streak; any earlier gap does.
	streak := 0
	for i := 0; i < streakLookbackDays; i++ {
		day := dayStart.AddDate(0, 0, -i).Format("2006-01-02")
		if sessionDays[day] {
			streak++
		} else if i > 0 {
			break
		}
	}

	return &models.DailyStats{
		FocusedMinutes: int(math.Round(float64(focusedMs) / 60000)),
		TasksCompleted: completed,
		Streak:         streak,
	}, nil
}
