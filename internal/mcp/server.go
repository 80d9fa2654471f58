package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

// NewServer creates a new MCP server.
func NewServer(tr *tracker.Tracker) *server.MCPServer {
	s := server.NewMCPServer("Homeroom", "0.1.0")

	// Task Management
	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Assign a new homework task."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("subject_id", mcp.Description("Subject the task belongs to"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("due_date", mcp.Description("Due date (RFC 3339)"), mcp.Required()),
		mcp.WithNumber("estimate_mins", mcp.Description("Estimated minutes of work")),
	), addTaskHandler(tr))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by ID."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(tr))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with an optional status filter, ordered by due date."),
		mcp.WithString("status", mcp.Description("Filter by status (todo|in_progress|submitted|rework|done)")),
	), listTasksHandler(tr))

	s.AddTool(mcp.NewTool("todays_tasks",
		mcp.WithDescription("List unfinished tasks due today, overdue first."),
	), todaysTasksHandler(tr))

	s.AddTool(mcp.NewTool("submitted_tasks",
		mcp.WithDescription("List tasks waiting on parent review."),
	), submittedTasksHandler(tr))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(tr))

	s.AddTool(mcp.NewTool("update_checklist_item",
		mcp.WithDescription("Check or uncheck one checklist item on a task."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("item_id", mcp.Description("Checklist item ID"), mcp.Required()),
		mcp.WithBoolean("done", mcp.Description("New done state"), mcp.Required()),
	), updateChecklistItemHandler(tr))

	s.AddTool(mcp.NewTool("submit_evidence",
		mcp.WithDescription("Submit proof of work and move the task to submitted."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("evidence_url", mcp.Description("URL of the evidence (photo, document)"), mcp.Required()),
	), submitEvidenceHandler(tr))

	s.AddTool(mcp.NewTool("approve_task",
		mcp.WithDescription("Approve submitted work and mark the task done."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), approveTaskHandler(tr))

	s.AddTool(mcp.NewTool("request_rework",
		mcp.WithDescription("Send submitted work back to the student with a note."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("note", mcp.Description("What needs fixing"), mcp.Required()),
	), requestReworkHandler(tr))

	// Session Management
	s.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a focus or break session. Replaces any session already running."),
		mcp.WithString("type", mcp.Description("Session type (focus|break)")),
		mcp.WithNumber("duration_minutes", mcp.Description("Countdown length in minutes")),
		mcp.WithString("task_id", mcp.Description("Task to work on; moves it to in_progress")),
		mcp.WithString("subject_id", mcp.Description("Subject when no task is given")),
	), startSessionHandler(tr))

	s.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Stop the running session and record it."),
	), stopSessionHandler(tr))

	s.AddTool(mcp.NewTool("get_active_session",
		mcp.WithDescription("Get the running session with remaining time recomputed."),
	), getActiveSessionHandler(tr))

	s.AddTool(mcp.NewTool("tick",
		mcp.WithDescription("Persist the session heartbeat so remaining time survives restarts."),
	), tickHandler(tr))

	s.AddTool(mcp.NewTool("check_in",
		mcp.WithDescription("Report the student's mood during the running session."),
		mcp.WithString("mood", mcp.Description("Mood (focused|distracted|need_help)"), mcp.Required()),
	), checkInHandler(tr))

	s.AddTool(mcp.NewTool("session_history",
		mcp.WithDescription("List finished sessions, most recent first."),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 50)")),
	), sessionHistoryHandler(tr))

	// Stats and Settings
	s.AddTool(mcp.NewTool("daily_stats",
		mcp.WithDescription("Today's focused minutes, tasks completed and the current streak."),
	), dailyStatsHandler(tr))

	s.AddTool(mcp.NewTool("daily_goal",
		mcp.WithDescription("The configured daily goal in minutes and tasks."),
	), dailyGoalHandler(tr))

	s.AddTool(mcp.NewTool("live_status",
		mcp.WithDescription("What the student is doing right now."),
	), liveStatusHandler(tr))

	s.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Update family settings."),
		mcp.WithNumber("daily_goal_minutes", mcp.Description("Daily focus goal in minutes")),
		mcp.WithNumber("daily_goal_tasks", mcp.Description("Daily task completion goal")),
		mcp.WithNumber("pomodoro_focus_mins", mcp.Description("Default focus session length")),
		mcp.WithNumber("pomodoro_break_mins", mcp.Description("Default break length")),
		mcp.WithNumber("inactivity_mins", mcp.Description("Minutes of stale heartbeat before the parent is alerted")),
		mcp.WithString("start_window", mcp.Description("Local HH:MM when the daily study window opens")),
		mcp.WithString("webhook_url", mcp.Description("Notification webhook URL")),
	), updateSettingsHandler(tr))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTaskHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		subjectID := mcp.ParseString(request, "subject_id", "")
		description := mcp.ParseString(request, "description", "")
		dueDate := mcp.ParseString(request, "due_date", "")
		estimate := mcp.ParseInt(request, "estimate_mins", 0)

		due, err := time.Parse(time.RFC3339, dueDate)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid due_date: %v", err)), nil
		}

		t := &models.Task{
			SubjectID:    subjectID,
			Title:        title,
			Description:  description,
			DueDate:      due,
			EstimateMins: estimate,
		}
		if err := tr.AddTask(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func getTaskHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		t, err := tr.GetTask(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", taskID)), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listTasksHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		var status *models.TaskStatus
		if s, ok := args["status"].(string); ok && s != "" {
			ts := models.TaskStatus(s)
			status = &ts
		}

		tasks, err := tr.ListTasks(ctx, status)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func todaysTasksHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := tr.TodaysTasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func submittedTasksHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := tr.SubmittedTasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func deleteTaskHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		if err := tr.DeleteTask(ctx, taskID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func updateChecklistItemHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		itemID := mcp.ParseString(request, "item_id", "")
		done := mcp.ParseBoolean(request, "done", false)

		t, err := tr.UpdateChecklistItem(ctx, taskID, itemID, done)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func submitEvidenceHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		evidenceURL := mcp.ParseString(request, "evidence_url", "")

		t, err := tr.SubmitEvidence(ctx, taskID, evidenceURL)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func approveTaskHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")

		t, err := tr.MarkTaskDone(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func requestReworkHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		note := mcp.ParseString(request, "note", "")

		t, err := tr.RequestRework(ctx, taskID, note)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func startSessionHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typ := models.SessionType(mcp.ParseString(request, "type", string(models.SessionTypeFocus)))
		taskID := mcp.ParseString(request, "task_id", "")
		subjectID := mcp.ParseString(request, "subject_id", "")

		if typ != models.SessionTypeFocus && typ != models.SessionTypeBreak {
			return mcp.NewToolResultError(fmt.Sprintf("invalid session type '%s'", typ)), nil
		}

		minutes := mcp.ParseInt(request, "duration_minutes", 0)
		if minutes == 0 {
			settings, err := tr.Settings(ctx)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			minutes = settings.PomodoroFocusMins
			if typ == models.SessionTypeBreak {
				minutes = settings.PomodoroBreakMins
			}
		}

		as, err := tr.StartSession(ctx, typ, minutes, taskID, subjectID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(as)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func stopSessionHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		session, err := tr.StopSession(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if session == nil {
			return mcp.NewToolResultText("No session is running"), nil
		}

		data, err := json.Marshal(session)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func getActiveSessionHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		as, err := tr.ActiveSession(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if as == nil {
			return mcp.NewToolResultText("No session is running"), nil
		}

		data, err := json.Marshal(as)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func tickHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		as, err := tr.Tick(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if as == nil {
			return mcp.NewToolResultText("No session is running"), nil
		}

		data, err := json.Marshal(as)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func checkInHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mood := models.Mood(mcp.ParseString(request, "mood", ""))
		switch mood {
		case models.MoodFocused, models.MoodDistracted, models.MoodNeedHelp:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid mood '%s'", mood)), nil
		}

		as, err := tr.AddCheckIn(ctx, mood)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if as == nil {
			return mcp.NewToolResultText("No session is running"), nil
		}

		data, err := json.Marshal(as)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func sessionHistoryHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := mcp.ParseInt(request, "limit", 0)

		sessions, err := tr.SessionHistory(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"sessions": sessions})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func dailyStatsHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := tr.DailyStats(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(stats)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func dailyGoalHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		goal, err := tr.DailyGoal(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(goal)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func liveStatusHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := tr.LiveStatus(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(status)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func updateSettingsHandler(tr *tracker.Tracker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		settings, err := tr.Settings(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if v, ok := args["daily_goal_minutes"].(float64); ok {
			settings.DailyGoalMinutes = int(v)
		}
		if v, ok := args["daily_goal_tasks"].(float64); ok {
			settings.DailyGoalTasks = int(v)
		}
		if v, ok := args["pomodoro_focus_mins"].(float64); ok {
			settings.PomodoroFocusMins = int(v)
		}
		if v, ok := args["pomodoro_break_mins"].(float64); ok {
			settings.PomodoroBreakMins = int(v)
		}
		if v, ok := args["inactivity_mins"].(float64); ok {
			settings.InactivityMins = int(v)
		}
		if v, ok := args["start_window"].(string); ok {
			settings.StartWindow = v
		}
		if v, ok := args["webhook_url"].(string); ok {
			settings.WebhookURL = v
		}

		if err := tr.UpdateSettings(ctx, settings); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(settings)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
