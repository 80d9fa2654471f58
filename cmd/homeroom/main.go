package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ldi/homeroom/internal/mcp"
	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/internal/server"
	"github.com/ldi/homeroom/internal/store"
	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/internal/ui"
	"github.com/ldi/homeroom/internal/watch"
	"github.com/ldi/homeroom/pkg/models"
)

var (
	dbPath       string
	snapshotPath string
	family       string
	verbose      bool
)

func main() {
	flag.StringVar(&dbPath, "db-path", ".homeroom/homeroom.db", "Path to database file")
	flag.StringVar(&snapshotPath, "snapshot-path", ".homeroom/snapshot.jsonl", "Path to snapshot file")
	flag.StringVar(&family, "family", "default", "Family code (namespace)")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var command string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "mcp":
		err = runMCP(args)
	case "web":
		err = runWeb(args)
	case "timer":
		err = runTimer(args)
	case "status":
		err = runStatus(args)
	case "list-tasks":
		err = runListTasks(args)
	case "add-task":
		err = runAddTask(args)
	case "start":
		err = runStart(args)
	case "stop":
		err = runStop(args)
	case "checkin":
		err = runCheckin(args)
	case "stats":
		err = runStats(args)
	case "history":
		err = runHistory(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openTracker opens the store and binds a tracker to the family namespace.
// The notifier is assembled from settings: a webhook when configured, the
// structured log otherwise.
func openTracker(ctx context.Context) (*tracker.Tracker, *store.SQLite, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	settings, err := tracker.New(st, nil, nil, family).Settings(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	var notifier notify.Notifier = notify.NewLogger(slog.Default())
	if settings.WebhookURL != "" {
		notifier = notify.Multi{notifier, notify.NewWebhook(settings.WebhookURL, slog.Default())}
	}

	return tracker.New(st, nil, notifier, family), st, nil
}

func runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	homeroomDir := filepath.Join(targetDir, ".homeroom")
	if err := os.MkdirAll(homeroomDir, 0755); err != nil {
		return fmt.Errorf("failed to create .homeroom directory: %w", err)
	}
	fmt.Println("✓ Created .homeroom/ directory")

	gitignorePath := filepath.Join(homeroomDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("homeroom.db*\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Println("✓ Created .homeroom/.gitignore")

	// Default paths if not overridden by flags
	finalDbPath := dbPath
	if dbPath == ".homeroom/homeroom.db" {
		finalDbPath = filepath.Join(homeroomDir, "homeroom.db")
	}

	finalSnapshotPath := snapshotPath
	if snapshotPath == ".homeroom/snapshot.jsonl" {
		finalSnapshotPath = filepath.Join(homeroomDir, "snapshot.jsonl")
	}

	st, err := store.Open(finalDbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Printf("✓ Initialized database at %s\n", finalDbPath)

	ctx := context.Background()

	// Check if snapshot exists and import it
	if _, err := os.Stat(finalSnapshotPath); err == nil {
		if err := st.ImportSnapshot(ctx, finalSnapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Printf("✓ Imported snapshot from %s\n", finalSnapshotPath)
	} else {
		// Seed default settings so the family shows up with sane goals
		tr := tracker.New(st, nil, nil, family)
		settings, err := tr.Settings(ctx)
		if err != nil {
			return err
		}
		if err := tr.UpdateSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
		fmt.Println("✓ Seeded default settings")
	}

	fmt.Println("✓ Homeroom initialized successfully")
	return nil
}

func runMCP(args []string) error {
	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	st.EnableAutoSnapshot(snapshotPath)

	s := mcp.NewServer(tr)
	return mcp.Serve(s)
}

func runWeb(args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	port := webFlags.String("port", "8000", "Port to listen on")
	sweep := webFlags.Bool("sweep", true, "Stop expired sessions automatically")
	autoBreak := webFlags.Bool("auto-break", false, "Start a break when a focus session expires")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	st.EnableAutoSnapshot(snapshotPath)

	if *sweep {
		w := watch.New(tr, slog.Default())
		w.AutoBreak = *autoBreak
		go func() {
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
			}
		}()
	}

	srv := server.NewServer(tr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Homeroom dashboard API on http://localhost:%s\n", *port)
	if err := srv.Start(fmt.Sprintf(":%s", *port)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runTimer(args []string) error {
	timerFlags := flag.NewFlagSet("timer", flag.ContinueOnError)
	minutes := timerFlags.Int("minutes", 0, "Session length (defaults to settings)")
	taskID := timerFlags.String("task", "", "Task to work on")
	subject := timerFlags.String("subject", "", "Subject when no task is given")
	isBreak := timerFlags.Bool("break", false, "Start a break instead of a focus session")
	if err := timerFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	as, err := tr.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if as == nil {
		typ := models.SessionTypeFocus
		if *isBreak {
			typ = models.SessionTypeBreak
		}
		mins := *minutes
		if mins == 0 {
			settings, err := tr.Settings(ctx)
			if err != nil {
				return err
			}
			mins = settings.PomodoroFocusMins
			if *isBreak {
				mins = settings.PomodoroBreakMins
			}
		}
		if _, err := tr.StartSession(ctx, typ, mins, *taskID, *subject); err != nil {
			return err
		}
	}

	return ui.RunTimer(tr)
}

func runStatus(args []string) error {
	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	status, err := tr.LiveStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Homeroom Status")
	fmt.Println("===============")
	fmt.Printf("Student:       %s\n", status.StudentState)
	fmt.Printf("Since:         %s\n", status.LastActivity)
	if status.ActiveTask != "" {
		fmt.Printf("Working on:    %s\n", status.ActiveTask)
	}

	as, err := tr.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if as != nil {
		fmt.Printf("Remaining:     %02d:%02d\n", as.RemainingSeconds/60, as.RemainingSeconds%60)
		fmt.Printf("Check-ins:     %d\n", len(as.Checkins))
	}

	stats, err := tr.DailyStats(ctx)
	if err != nil {
		return err
	}
	goal, err := tr.DailyGoal(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\nToday:")
	fmt.Printf("  Focused:     %d/%d min\n", stats.FocusedMinutes, goal.Minutes)
	fmt.Printf("  Tasks done:  %d/%d\n", stats.TasksCompleted, goal.Tasks)
	fmt.Printf("  Streak:      %d days\n", stats.Streak)
	return nil
}

func runListTasks(args []string) error {
	taskFlags := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	statusFilter := taskFlags.String("status", "", "Filter by status (todo, in_progress, submitted, rework, done)")
	todayOnly := taskFlags.Bool("today", false, "Only unfinished tasks due today")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var tasks []*models.Task
	if *todayOnly {
		tasks, err = tr.TodaysTasks(ctx)
	} else {
		var status *models.TaskStatus
		if *statusFilter != "" {
			s := models.TaskStatus(*statusFilter)
			status = &s
		}
		tasks, err = tr.ListTasks(ctx, status)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-25s %-10s %-12s %-12s\n", "ID", "TITLE", "SUBJECT", "DUE", "STATUS")
	fmt.Println("-------------------------------------------------------------------------------------------------")
	for _, t := range tasks {
		fmt.Printf("%-36s %-25s %-10s %-12s %-12s\n", t.ID, t.Title, t.SubjectID, t.DueDate.Format("Jan 2 15:04"), t.Status)
	}
	return nil
}

func runAddTask(args []string) error {
	taskFlags := flag.NewFlagSet("add-task", flag.ContinueOnError)
	title := taskFlags.String("title", "", "Task title")
	subject := taskFlags.String("subject", tracker.GeneralSubjectID, "Subject")
	description := taskFlags.String("description", "", "Task description")
	due := taskFlags.String("due", "", "Due date (RFC 3339 or YYYY-MM-DD)")
	estimate := taskFlags.Int("estimate", 0, "Estimated minutes")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("-title is required")
	}

	dueDate, err := parseDue(*due)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	t := &models.Task{
		SubjectID:    *subject,
		Title:        *title,
		Description:  *description,
		DueDate:      dueDate,
		EstimateMins: *estimate,
	}
	if err := tr.AddTask(ctx, t); err != nil {
		return err
	}
	fmt.Printf("✓ Added task %s (due %s)\n", t.ID, t.DueDate.Format("Jan 2"))
	return nil
}

func parseDue(s string) (time.Time, error) {
	if s == "" {
		// End of today
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location()), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", s)
}

func runStart(args []string) error {
	startFlags := flag.NewFlagSet("start", flag.ContinueOnError)
	minutes := startFlags.Int("minutes", 0, "Session length (defaults to settings)")
	taskID := startFlags.String("task", "", "Task to work on")
	subject := startFlags.String("subject", "", "Subject when no task is given")
	isBreak := startFlags.Bool("break", false, "Start a break instead of a focus session")
	if err := startFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	typ := models.SessionTypeFocus
	if *isBreak {
		typ = models.SessionTypeBreak
	}
	mins := *minutes
	if mins == 0 {
		settings, err := tr.Settings(ctx)
		if err != nil {
			return err
		}
		mins = settings.PomodoroFocusMins
		if *isBreak {
			mins = settings.PomodoroBreakMins
		}
	}

	as, err := tr.StartSession(ctx, typ, mins, *taskID, *subject)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Started %s session: %d minutes on %s\n", as.Type, mins, as.SubjectID)
	return nil
}

func runStop(args []string) error {
	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := tr.StopSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("No session is running")
		return nil
	}
	fmt.Printf("✓ Stopped after %d minutes\n", session.DurationMs/60000)
	return nil
}

func runCheckin(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: homeroom checkin <focused|distracted|need_help>")
	}
	mood := models.Mood(args[0])
	switch mood {
	case models.MoodFocused, models.MoodDistracted, models.MoodNeedHelp:
	default:
		return fmt.Errorf("invalid mood %q", args[0])
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	as, err := tr.AddCheckIn(ctx, mood)
	if err != nil {
		return err
	}
	if as == nil {
		fmt.Println("No session is running")
		return nil
	}
	fmt.Printf("✓ Checked in: %s\n", mood)
	return nil
}

func runStats(args []string) error {
	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := tr.DailyStats(ctx)
	if err != nil {
		return err
	}
	goal, err := tr.DailyGoal(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Today's Stats")
	fmt.Println("=============")
	fmt.Printf("Focused:     %d/%d min\n", stats.FocusedMinutes, goal.Minutes)
	fmt.Printf("Tasks done:  %d/%d\n", stats.TasksCompleted, goal.Tasks)
	fmt.Printf("Streak:      %d days\n", stats.Streak)
	return nil
}

func runHistory(args []string) error {
	histFlags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := histFlags.Int("limit", 20, "Maximum sessions to show")
	if err := histFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	tr, st, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := tr.SessionHistory(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-18s %-7s %-10s %-8s %-9s\n", "STARTED", "TYPE", "SUBJECT", "MINUTES", "CHECK-INS")
	fmt.Println("--------------------------------------------------------")
	for _, s := range sessions {
		fmt.Printf("%-18s %-7s %-10s %-8d %-9d\n",
			s.StartedAt.Local().Format("Jan 2 15:04"),
			s.Type, s.SubjectID, s.DurationMs/60000, len(s.Checkins))
	}
	return nil
}
