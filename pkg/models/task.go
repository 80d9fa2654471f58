package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusRework     TaskStatus = "rework"
	TaskStatusDone       TaskStatus = "done"
)

type ChecklistItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

type Task struct {
	ID           string          `json:"id"`
	SubjectID    string          `json:"subject_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	DueDate      time.Time       `json:"due_date"`
	EstimateMins int             `json:"estimate_mins"`
	Checklist    []ChecklistItem `json:"checklist"`
	Status       TaskStatus      `json:"status"`
	EvidenceURL  string          `json:"evidence_url,omitempty"`
	ReworkNote   string          `json:"rework_note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ReworkRequestedAt *time.Time `json:"rework_requested_at,omitempty"`
}
