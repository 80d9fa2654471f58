package models

import "time"

type SessionType string

const (
	SessionTypeFocus SessionType = "focus"
	SessionTypeBreak SessionType = "break"
)

type Mood string

const (
	MoodFocused    Mood = "focused"
	MoodDistracted Mood = "distracted"
	MoodNeedHelp   Mood = "need_help"
)

type CheckIn struct {
	At   time.Time `json:"at"`
	Mood Mood      `json:"mood"`
}

// Session is a finished focus or break interval. Records are immutable once
// written: ended_at is set exactly once, at stop time.
type Session struct {
	ID         string      `json:"id"`
	TaskID     string      `json:"task_id,omitempty"`
	SubjectID  string      `json:"subject_id"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
	DurationMs int64       `json:"duration_ms"`
	Type       SessionType `json:"type"`
	Checkins   []CheckIn   `json:"checkins"`
}

// ActiveSession is the per-family singleton for the session currently
// running. last_tick_at is the persisted heartbeat that remaining time is
// recomputed from; clients never supply elapsed time themselves.
type ActiveSession struct {
	ID              string      `json:"id"`
	TaskID          string      `json:"task_id,omitempty"`
	SubjectID       string      `json:"subject_id"`
	StartedAt       time.Time   `json:"started_at"`
	LastTickAt      time.Time   `json:"last_tick_at"`
	DurationSeconds int         `json:"duration_seconds"`
	Type            SessionType `json:"type"`
	Checkins        []CheckIn   `json:"checkins"`

	// RemainingSeconds is derived on every read; the persisted value is
	// never trusted.
	RemainingSeconds int `json:"remaining_seconds"`
}
