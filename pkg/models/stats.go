package models

type DailyGoal struct {
	Minutes int `json:"minutes"`
	Tasks   int `json:"tasks"`
}

type DailyStats struct {
	FocusedMinutes int `json:"focused_minutes"`
	TasksCompleted int `json:"tasks_completed"`
	Streak         int `json:"streak"`
}

type Settings struct {
	DailyGoalMinutes  int `json:"daily_goal_minutes"`
	DailyGoalTasks    int `json:"daily_goal_tasks"`
	PomodoroFocusMins int `json:"pomodoro_focus_mins"`
	PomodoroBreakMins int `json:"pomodoro_break_mins"`

	// InactivityMins is how long the session heartbeat may go stale before
	// the parent is alerted.
	InactivityMins int `json:"inactivity_mins"`

	// StartWindow is the local HH:MM time when the daily study window opens.
	// For one hour after it, an idle student gets a start reminder.
	StartWindow string `json:"start_window,omitempty"`

	WebhookURL string `json:"webhook_url,omitempty"`
}

// LiveStatus is the parent-facing view of what the student is doing right now.
type LiveStatus struct {
	StudentState string `json:"student_state"`
	LastActivity string `json:"last_activity"`
	ActiveTask   string `json:"active_task,omitempty"`
}
