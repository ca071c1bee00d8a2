package dto

import (
	"time"

	"github.com/noah-isme/gema-tasks-api/internal/progress"
)

// TaskOverviewStudent is one assigned student's state on a task.
type TaskOverviewStudent struct {
	StudentID     uint           `json:"student_id"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	NeedsHelp     bool           `json:"needs_help"`
	HasUnreadHelp bool           `json:"has_unread_help"`
	Badge         progress.Badge `json:"badge"`
	LastSaved     *time.Time     `json:"last_saved,omitempty"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
}

// TaskOverviewSummary aggregates the per-student rows.
type TaskOverviewSummary struct {
	Assigned        int     `json:"assigned"`
	NotStarted      int     `json:"not_started"`
	InProgress      int     `json:"in_progress"`
	Completed       int     `json:"completed"`
	NeedsHelp       int     `json:"needs_help"`
	AverageProgress float64 `json:"average_progress"`
	CompletionRate  float64 `json:"completion_rate"`
}

// TaskOverviewResponse is the teacher's progress dashboard for one task.
type TaskOverviewResponse struct {
	TaskID      uint                  `json:"task_id"`
	Title       string                `json:"title"`
	Status      string                `json:"status"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Summary     TaskOverviewSummary   `json:"summary"`
	Students    []TaskOverviewStudent `json:"students"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// CompletionCheckResponse reports the result of a completion aggregation.
type CompletionCheckResponse struct {
	TaskID            uint   `json:"task_id"`
	Status            string `json:"status"`
	AssignedCount     int    `json:"assigned_count"`
	CompletedCount    int    `json:"completed_count"`
	TransitionApplied bool   `json:"transition_applied"`
}
