package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

var (
	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	breakTimerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	subjectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	moodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	timerHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// heartbeatEvery is how many ticks pass between persisted heartbeats. The
// display refreshes every second; the store is only written occasionally.
const heartbeatEvery = 15

type tickMsg time.Time

type sessionMsg *models.ActiveSession

type timerErrMsg struct{ err error }

// TimerModel renders the running session as a countdown with a progress bar.
// Remaining time always comes from the tracker, never from counting locally,
// so two timers on the same family agree.
type TimerModel struct {
	tracker  *tracker.Tracker
	progress progress.Model
	session  *models.ActiveSession
	taskName string

	// totalSeconds is the countdown length at first sight of the session.
	// Heartbeats rewrite the persisted duration, so the bar scales against
	// this instead.
	totalSeconds int
	ticks        int
	done         bool
	quitting     bool
	err          error
}

func NewTimerModel(tr *tracker.Tracker) TimerModel {
	return TimerModel{
		tracker:  tr,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m TimerModel) Init() tea.Cmd {
	return tea.Batch(m.syncCmd(false), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// syncCmd refreshes the session from the tracker. With heartbeat set it also
// persists the remaining time, so a crashed client costs at most a few
// seconds of drift.
func (m TimerModel) syncCmd(heartbeat bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var (
			as  *models.ActiveSession
			err error
		)
		if heartbeat {
			as, err = m.tracker.Tick(ctx)
		} else {
			as, err = m.tracker.ActiveSession(ctx)
		}
		if err != nil {
			return timerErrMsg{err}
		}
		return sessionMsg(as)
	}
}

func (m TimerModel) stopCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.tracker.StopSession(context.Background()); err != nil {
			return timerErrMsg{err}
		}
		return sessionMsg(nil)
	}
}

func (m TimerModel) checkInCmd(mood models.Mood) tea.Cmd {
	return func() tea.Msg {
		as, err := m.tracker.AddCheckIn(context.Background(), mood)
		if err != nil {
			return timerErrMsg{err}
		}
		return sessionMsg(as)
	}
}

func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "s":
			return m, m.stopCmd()
		case "f":
			return m, m.checkInCmd(models.MoodFocused)
		case "d":
			return m, m.checkInCmd(models.MoodDistracted)
		case "h":
			return m, m.checkInCmd(models.MoodNeedHelp)
		}

	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.ticks++
		return m, tea.Batch(m.syncCmd(m.ticks%heartbeatEvery == 0), tickCmd())

	case sessionMsg:
		m.session = msg
		if m.session == nil {
			m.done = true
			return m, tea.Quit
		}
		if m.totalSeconds == 0 {
			m.totalSeconds = m.session.DurationSeconds
		}
		if m.session.RemainingSeconds == 0 {
			// Countdown ran out; record the session and finish.
			return m, m.stopCmd()
		}
		if m.session.TaskID != "" && m.taskName == "" {
			return m, m.taskNameCmd(m.session.TaskID)
		}
		return m, nil

	case taskNameMsg:
		m.taskName = string(msg)
		return m, nil

	case timerErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

type taskNameMsg string

func (m TimerModel) taskNameCmd(taskID string) tea.Cmd {
	return func() tea.Msg {
		t, err := m.tracker.GetTask(context.Background(), taskID)
		if err != nil || t == nil {
			return taskNameMsg("")
		}
		return taskNameMsg(t.Title)
	}
}

func (m TimerModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}
	if m.session == nil {
		if m.done {
			return "Session complete!\n"
		}
		return "No session is running.\n"
	}

	var s strings.Builder

	label := "Focus"
	style := timerStyle
	if m.session.Type == models.SessionTypeBreak {
		label = "Break"
		style = breakTimerStyle
	}

	remaining := m.session.RemainingSeconds
	s.WriteString(style.Render(fmt.Sprintf("%s  %02d:%02d", label, remaining/60, remaining%60)))
	s.WriteString("\n")

	what := m.taskName
	if what == "" {
		what = m.session.SubjectID
	}
	s.WriteString(subjectStyle.Render(what))
	s.WriteString("\n\n")

	pct := 0.0
	if m.totalSeconds > 0 {
		pct = 1 - float64(remaining)/float64(m.totalSeconds)
	}
	s.WriteString(m.progress.ViewAs(pct))
	s.WriteString("\n")

	if n := len(m.session.Checkins); n > 0 {
		last := m.session.Checkins[n-1]
		s.WriteString(moodStyle.Render(fmt.Sprintf("last check-in: %s", last.Mood)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(timerHelpStyle.Render("(f: focused, d: distracted, h: need help, s: stop, q: quit)"))
	s.WriteString("\n")

	return s.String()
}

// RunTimer shows the countdown for the running session.
func RunTimer(tr *tracker.Tracker) error {
	p := tea.NewProgram(NewTimerModel(tr))
	_, err := p.Run()
	return err
}
