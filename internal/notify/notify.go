// Package notify carries semantic events from the tracker to whatever push
// delivery the family has configured. Delivery is fire-and-forget; the
// tracker never observes success or failure.
package notify

import (
	"context"
	"log/slog"
)

// Kind is the closed set of event kinds the tracker emits.
type Kind string

const (
	KindTaskAssigned     Kind = "task_assigned"
	KindTaskSubmitted    Kind = "task_submitted"
	KindTaskApproved     Kind = "task_approved"
	KindTaskRework       Kind = "task_rework"
	KindSessionStarted   Kind = "session_started"
	KindSessionCompleted Kind = "session_completed"
	KindHelpNeeded       Kind = "help_needed"
	KindInactivity       Kind = "inactivity_detected"
	KindStartReminder    Kind = "start_reminder"
)

type Event struct {
	Kind  Kind              `json:"kind"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, ev Event)
}

// Logger writes events to structured logs. It is the default when no webhook
// is configured.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Send(ctx context.Context, ev Event) {
	l.log.InfoContext(ctx, "notification",
		"kind", string(ev.Kind),
		"title", ev.Title,
		"body", ev.Body,
	)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Send(ctx, ev)
	}
}

// Discard drops every event. Useful in tests that don't assert on events.
type Discard struct{}

func (Discard) Send(ctx context.Context, ev Event) {}
