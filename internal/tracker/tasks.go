package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/pkg/models"
)

// AddTask creates a task in status todo. If t.ID is empty, a new UUID is
// generated.
func (tr *Tracker) AddTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Checklist == nil {
		t.Checklist = []models.ChecklistItem{}
	}
	now := tr.clock.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := tr.putDoc(ctx, collTasks, t.ID, t); err != nil {
		return err
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindTaskAssigned,
		Title: "New Task Assigned",
		Body:  fmt.Sprintf("%s - due %s", t.Title, t.DueDate.Format("Jan 2")),
		Data:  map[string]string{"task_id": t.ID},
	})
	return nil
}

// GetTask retrieves a task by its ID. Returns (nil, nil) if it does not
// exist.
func (tr *Tracker) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	found, err := tr.getDoc(ctx, collTasks, id, &t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

// ListTasks returns tasks, optionally filtered by status, ordered by due
// date.
func (tr *Tracker) ListTasks(ctx context.Context, status *models.TaskStatus) ([]*models.Task, error) {
	tasks, err := tr.allTasks(ctx)
	if err != nil {
		return nil, err
	}

	if status != nil {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == *status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// TodaysTasks returns unfinished tasks due today, with overdue tasks first.
func (tr *Tracker) TodaysTasks(ctx context.Context) ([]*models.Task, error) {
	tasks, err := tr.ListTasks(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := tr.clock.Now()
	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []*models.Task
	for _, t := range tasks {
		if t.Status == models.TaskStatusDone {
			continue
		}
		if t.DueDate.Before(dayEnd) {
			out = append(out, t)
		}
	}
	return out, nil
}

// SubmittedTasks returns tasks waiting on parent review (submitted or sent
// back for rework), most recently due first.
func (tr *Tracker) SubmittedTasks(ctx context.Context) ([]*models.Task, error) {
	tasks, err := tr.allTasks(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.Task
	for _, t := range tasks {
		if t.Status == models.TaskStatusSubmitted || t.Status == models.TaskStatusRework {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].DueDate.Before(out[i].DueDate) })
	return out, nil
}

// UpdateTask replaces an existing task's editable fields.
func (tr *Tracker) UpdateTask(ctx context.Context, t *models.Task) error {
	existing, err := tr.GetTask(ctx, t.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = tr.clock.Now()
	return tr.putDoc(ctx, collTasks, t.ID, t)
}

// DeleteTask removes a task. This is an explicit parent action; the common
// lifecycle never deletes.
func (tr *Tracker) DeleteTask(ctx context.Context, id string) error {
	t, err := tr.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return tr.store.Delete(ctx, tr.namespace, collTasks, id)
}

// UpdateChecklistItem toggles one checklist item. Checklist edits never drive
// status transitions.
func (tr *Tracker) UpdateChecklistItem(ctx context.Context, taskID, itemID string, done bool) (*models.Task, error) {
	t, err := tr.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	for i := range t.Checklist {
		if t.Checklist[i].ID == itemID {
			t.Checklist[i].Done = done
		}
	}
	t.UpdatedAt = tr.clock.Now()

	if err := tr.putDoc(ctx, collTasks, taskID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SubmitEvidence attaches proof of work and moves the task to submitted.
func (tr *Tracker) SubmitEvidence(ctx context.Context, taskID, evidenceURL string) (*models.Task, error) {
	now := tr.clock.Now()
	t, err := tr.transitionTask(ctx, taskID, models.TaskStatusSubmitted, func(t *models.Task) {
		t.EvidenceURL = evidenceURL
		t.SubmittedAt = &now
	})
	if err != nil {
		return nil, err
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindTaskSubmitted,
		Title: "Work Submitted",
		Body:  fmt.Sprintf("%s is ready for review", t.Title),
		Data:  map[string]string{"task_id": t.ID},
	})
	return t, nil
}

// MarkTaskDone is the parent approving submitted work.
func (tr *Tracker) MarkTaskDone(ctx context.Context, taskID string) (*models.Task, error) {
	now := tr.clock.Now()
	t, err := tr.transitionTask(ctx, taskID, models.TaskStatusDone, func(t *models.Task) {
		t.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindTaskApproved,
		Title: "Task Approved",
		Body:  fmt.Sprintf("Great work on %s!", t.Title),
		Data:  map[string]string{"task_id": t.ID},
	})
	return t, nil
}

// RequestRework sends submitted work back to the student with a note.
func (tr *Tracker) RequestRework(ctx context.Context, taskID, note string) (*models.Task, error) {
	now := tr.clock.Now()
	t, err := tr.transitionTask(ctx, taskID, models.TaskStatusRework, func(t *models.Task) {
		t.ReworkNote = note
		t.ReworkRequestedAt = &now
	})
	if err != nil {
		return nil, err
	}

	tr.emit(ctx, notify.Event{
		Kind:  notify.KindTaskRework,
		Title: "Revision Requested",
		Body:  fmt.Sprintf("%s: %s", t.Title, note),
		Data:  map[string]string{"task_id": t.ID, "note": note},
	})
	return t, nil
}

// transitionTask loads a task, validates the status change, applies mutate
// and writes the result back.
func (tr *Tracker) transitionTask(ctx context.Context, taskID string, to models.TaskStatus, mutate func(*models.Task)) (*models.Task, error) {
	t, err := tr.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if err := validateStatusTransition(t.Status, to); err != nil {
		return nil, err
	}

	t.Status = to
	if mutate != nil {
		mutate(t)
	}
	t.UpdatedAt = tr.clock.Now()

	if err := tr.putDoc(ctx, collTasks, taskID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// validateStatusTransition is the single interlock for task status changes.
// The allowed moves are:
//
//	todo/rework -> in_progress  (focus session started against the task)
//	any         -> submitted    (evidence submitted, incl. resubmission)
//	submitted/rework -> done    (parent approval)
//	submitted   -> rework       (parent sends work back)
func validateStatusTransition(from, to models.TaskStatus) error {
	if from == to {
		return nil
	}

	switch to {
	case models.TaskStatusInProgress:
		if from != models.TaskStatusTodo && from != models.TaskStatusRework {
			return fmt.Errorf("invalid transition from %s to %s", from, to)
		}
	case models.TaskStatusSubmitted:
		// Evidence may be submitted from any state.
	case models.TaskStatusDone:
		if from != models.TaskStatusSubmitted && from != models.TaskStatusRework {
			return fmt.Errorf("invalid transition from %s to %s", from, to)
		}
	case models.TaskStatusRework:
		if from != models.TaskStatusSubmitted {
			return fmt.Errorf("invalid transition from %s to %s", from, to)
		}
	default:
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}

	return nil
}

func (tr *Tracker) allTasks(ctx context.Context) ([]*models.Task, error) {
	records, err := tr.store.List(ctx, tr.namespace, collTasks)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0, len(records))
	for _, r := range records {
		var t models.Task
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode task %s: %w", r.ID, err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
